package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Checker invokes one guardrail at the pipeline's hook and reports the
// verdict, the guardrail's own message and the possibly-transformed
// payload. Implemented by the guardrail registry.
type Checker interface {
	Check(ctx context.Context, guardrailName, hook string, inputs model.GuardrailAPIInputs) (passed bool, message string, transformed model.GuardrailAPIInputs, err error)
}

// PipelineResult records the outcome of executing a pipeline.
type PipelineResult struct {
	Action  string                     // terminal state: allow, block, modify_response
	Message string                     // message for modify_response, failure detail for block
	Inputs  model.GuardrailAPIInputs   // payload at termination
	Steps   []model.PipelineStepResult // one record per executed step
}

// ExecutePipeline runs the pipeline's steps in order, following
// on_pass/on_fail actions. A guardrail's own error counts as a failed
// check and is recorded on the step; cancellation of ctx is the one
// thing never swallowed; it aborts immediately.
func ExecutePipeline(ctx context.Context, cfg *model.PipelineConfig, checker Checker, inputs model.GuardrailAPIInputs) (PipelineResult, error) {
	result := PipelineResult{Action: model.ActionAllow, Inputs: inputs}
	if cfg == nil || len(cfg.Steps) == 0 {
		return result, nil
	}

	current := inputs
	for _, step := range cfg.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		passed, message, transformed, err := checker.Check(ctx, step.Guardrail, cfg.Mode, current)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			passed = false
		}

		stepResult := model.PipelineStepResult{
			Guardrail: step.Guardrail,
			Passed:    passed,
			Duration:  time.Since(start),
		}
		if err != nil {
			stepResult.Error = err.Error()
		}

		action := step.FailAction()
		if passed {
			action = step.PassAction()
		}
		stepResult.Action = action
		result.Steps = append(result.Steps, stepResult)

		switch action {
		case model.ActionAllow:
			result.Action = model.ActionAllow
			result.Inputs = transformed
			return result, nil
		case model.ActionBlock:
			// Surface the guardrail's own failure detail when it gave one.
			result.Action = model.ActionBlock
			result.Message = stepResult.Error
			if result.Message == "" {
				result.Message = message
			}
			if result.Message == "" {
				result.Message = fmt.Sprintf("blocked by guardrail %q", step.Guardrail)
			}
			result.Inputs = current
			return result, nil
		case model.ActionModifyResponse:
			result.Action = model.ActionModifyResponse
			result.Message = step.ModifyResponseMessage
			result.Inputs = current
			return result, nil
		case model.ActionNext:
			if step.PassData {
				current = transformed
			}
		default:
			result.Action = model.ActionBlock
			result.Message = "unknown pipeline action: " + action
			result.Inputs = current
			return result, nil
		}
	}

	// Every step advanced with "next", so default allow.
	result.Action = model.ActionAllow
	result.Inputs = current
	return result, nil
}
