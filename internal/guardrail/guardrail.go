package guardrail

import (
	"context"
	"fmt"
	"sync"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Hook specifies when a guardrail runs.
type Hook string

const (
	HookPreCall  Hook = "pre_call"
	HookPostCall Hook = "post_call"
)

// Result is returned by a guardrail check.
type Result struct {
	Passed  bool
	Message string
	// ModifiedInputs is set when the guardrail rewrites the payload
	// (e.g., PII redaction).
	ModifiedInputs *model.GuardrailAPIInputs
}

// Guardrail is the interface for content safety checks. Implementations
// live outside the policy engine; the engine only invokes them by name.
type Guardrail interface {
	Name() string
	SupportedHooks() []Hook
	Check(ctx context.Context, hook Hook, inputs model.GuardrailAPIInputs) (Result, error)
}

// Applier is the single-input-transform capability. A guardrail either
// satisfies it or it does not; callers use an interface type assertion
// rather than reflection to find out.
type Applier interface {
	Apply(ctx context.Context, inputs model.GuardrailAPIInputs, requestData map[string]any, inputType string) (model.GuardrailAPIInputs, error)
}

// BlockedError indicates a guardrail blocked the request.
type BlockedError struct {
	GuardrailName string
	Message       string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked by guardrail %q: %s", e.GuardrailName, e.Message)
}

// Registry holds named, initialized guardrails.
type Registry struct {
	mu         sync.RWMutex
	guardrails map[string]Guardrail
}

// NewRegistry creates an empty guardrail registry.
func NewRegistry() *Registry {
	return &Registry{guardrails: make(map[string]Guardrail)}
}

// Register adds a guardrail to the registry, replacing any previous
// guardrail with the same name.
func (r *Registry) Register(g Guardrail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guardrails[g.Name()] = g
}

// Get returns an initialized guardrail by name.
func (r *Registry) Get(name string) (Guardrail, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guardrails[name]
	return g, ok
}

// Names returns all registered guardrail names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.guardrails))
	for name := range r.guardrails {
		names = append(names, name)
	}
	return names
}

// Check runs one guardrail's check at the given hook ("pre_call" or
// "post_call"; empty defaults to pre_call), returning the verdict, the
// guardrail's own message and the possibly-transformed payload.
// Satisfies the pipeline executor's checker interface. An unknown name
// is an error; the pipeline treats that as a failed check, so a step
// referencing a missing guardrail follows its on_fail branch.
func (r *Registry) Check(ctx context.Context, name, hook string, inputs model.GuardrailAPIInputs) (bool, string, model.GuardrailAPIInputs, error) {
	g, ok := r.Get(name)
	if !ok {
		return false, "", inputs, fmt.Errorf("guardrail %q not registered", name)
	}
	h := HookPreCall
	if hook == string(HookPostCall) {
		h = HookPostCall
	}
	result, err := g.Check(ctx, h, inputs)
	if err != nil {
		return false, "", inputs, err
	}
	if result.ModifiedInputs != nil {
		return result.Passed, result.Message, *result.ModifiedInputs, nil
	}
	return result.Passed, result.Message, inputs, nil
}
