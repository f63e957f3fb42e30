package policy

import (
	"context"
	"sort"

	"github.com/BerriAI/litellm-sub032/internal/guardrail"
	"github.com/BerriAI/litellm-sub032/internal/model"
)

// GuardrailSource looks up initialized guardrails by name. Satisfied by
// *guardrail.Registry.
type GuardrailSource interface {
	Get(name string) (guardrail.Guardrail, bool)
	Names() []string
}

// Applier resolves the guardrail set for a request and applies it,
// collecting partial failures.
type Applier struct {
	store      *Store
	guardrails GuardrailSource
}

// NewApplier creates an applier. store may be nil or not yet loaded;
// policy-based resolution then degrades to the explicit guardrail list.
func NewApplier(store *Store, guardrails GuardrailSource) *Applier {
	return &Applier{store: store, guardrails: guardrails}
}

// Apply builds the guardrail name set as the union of guardrailNames and
// each named policy's resolved guardrails, then applies them to inputs
// in sorted order. A guardrail that is missing from the registry or does
// not support the transform capability is skipped. A guardrail that
// errors is recorded and skipped; one bad guardrail never blocks the
// others. Only cancellation of ctx aborts the loop.
func (a *Applier) Apply(ctx context.Context, policyNames, guardrailNames []string, inputs model.GuardrailAPIInputs, requestData map[string]any, inputType string) (model.GuardrailAPIInputs, []model.GuardrailError, error) {
	set := make(map[string]struct{}, len(guardrailNames))
	for _, name := range guardrailNames {
		set[name] = struct{}{}
	}
	if a.store != nil && a.store.Initialized() {
		for _, policyName := range policyNames {
			for _, g := range a.store.ResolveGuardrails(policyName, nil).Guardrails {
				set[g] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return inputs, nil, nil
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	current := inputs
	var errs []model.GuardrailError
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return current, errs, err
		}

		g, ok := a.guardrails.Get(name)
		if !ok {
			continue
		}
		applier, ok := g.(guardrail.Applier)
		if !ok {
			continue
		}

		transformed, err := applier.Apply(ctx, current, requestData, inputType)
		if err != nil {
			if ctx.Err() != nil {
				return current, errs, ctx.Err()
			}
			errs = append(errs, model.GuardrailError{GuardrailName: name, Message: err.Error()})
			continue
		}
		current = transformed
	}
	return current, errs, nil
}
