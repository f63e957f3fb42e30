package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// webhookTimeout bounds a single guardrail endpoint call so a slow
// endpoint cannot stall the whole pipeline.
const webhookTimeout = 30 * time.Second

// Webhook calls a configurable HTTP endpoint for content safety checks.
// The endpoint receives the payload and answers with an action and an
// optional rewritten payload.
type Webhook struct {
	name     string
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewWebhook creates a webhook guardrail for the given endpoint.
func NewWebhook(name, endpoint string, headers map[string]string) *Webhook {
	return &Webhook{name: name, endpoint: endpoint, headers: headers, client: &http.Client{Timeout: webhookTimeout}}
}

func (w *Webhook) Name() string {
	if w.name != "" {
		return w.name
	}
	return "webhook_guardrail"
}

func (w *Webhook) SupportedHooks() []Hook { return []Hook{HookPreCall, HookPostCall} }

type webhookResponse struct {
	Action         string                    `json:"action"` // "allow" or "block"
	Message        string                    `json:"message"`
	ModifiedInputs *model.GuardrailAPIInputs `json:"modified_inputs,omitempty"`
}

func (w *Webhook) call(ctx context.Context, hook Hook, inputs model.GuardrailAPIInputs) (webhookResponse, error) {
	body, _ := json.Marshal(map[string]any{
		"inputs":   inputs,
		"metadata": map[string]string{"hook": string(hook)},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return webhookResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return webhookResponse{}, fmt.Errorf("webhook guardrail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return webhookResponse{}, fmt.Errorf("webhook guardrail: status %d", resp.StatusCode)
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return webhookResponse{}, fmt.Errorf("webhook guardrail: decode: %w", err)
	}
	return out, nil
}

func (w *Webhook) Check(ctx context.Context, hook Hook, inputs model.GuardrailAPIInputs) (Result, error) {
	out, err := w.call(ctx, hook, inputs)
	if err != nil {
		return Result{}, err
	}
	if out.Action == "block" {
		return Result{Passed: false, Message: out.Message}, nil
	}
	return Result{Passed: true, ModifiedInputs: out.ModifiedInputs}, nil
}

// Apply implements the single-input-transform capability: a blocking
// verdict surfaces as an error; a rewritten payload replaces the input.
func (w *Webhook) Apply(ctx context.Context, inputs model.GuardrailAPIInputs, requestData map[string]any, inputType string) (model.GuardrailAPIInputs, error) {
	out, err := w.call(ctx, HookPreCall, inputs)
	if err != nil {
		return inputs, err
	}
	if out.Action == "block" {
		return inputs, &BlockedError{GuardrailName: w.Name(), Message: out.Message}
	}
	if out.ModifiedInputs != nil {
		return *out.ModifiedInputs, nil
	}
	return inputs, nil
}
