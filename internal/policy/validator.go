package policy

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/BerriAI/litellm-sub032/internal/model"
	"github.com/BerriAI/litellm-sub032/internal/wildcard"
)

// GuardrailDirectory lists the names of registered guardrails.
// Satisfied by *guardrail.Registry.
type GuardrailDirectory interface {
	Names() []string
}

// AliasDirectory checks team/key alias existence against the management
// database. Best-effort: a lookup error never blocks validation.
type AliasDirectory interface {
	TeamAliasExists(ctx context.Context, alias string) (bool, error)
	KeyAliasExists(ctx context.Context, alias string) (bool, error)
}

// ModelDirectory exposes the router's known model names and wildcard
// routes.
type ModelDirectory interface {
	KnownModelNames() []string
	WildcardRoutes() []string
}

// Validator statically and dynamically checks candidate policy
// configurations before they become active. It never mutates the active
// store. Collaborators are optional; a nil collaborator skips its checks.
type Validator struct {
	Guardrails GuardrailDirectory
	Aliases    AliasDirectory
	Models     ModelDirectory
	Store      *Store // active policies, consulted when validateAgainstStore is set
}

// ValidateConfig checks a freshly parsed candidate config. Errors block
// activation; warnings do not. With validateAgainstStore set, inherit
// references may also point at currently active policies.
func (v *Validator) ValidateConfig(ctx context.Context, policies map[string]*model.Policy, attachments []model.PolicyAttachment, validateAgainstStore bool) model.PolicyValidationResult {
	result := model.PolicyValidationResult{Errors: []model.PolicyConfigError{}, Warnings: []model.PolicyConfigError{}}

	known := make(map[string]struct{})
	if v.Guardrails != nil {
		for _, name := range v.Guardrails.Names() {
			known[name] = struct{}{}
		}
	}

	exists := func(name string) bool {
		if _, ok := policies[name]; ok {
			return true
		}
		if validateAgainstStore && v.Store != nil {
			_, ok := v.Store.Policy(name)
			return ok
		}
		return false
	}

	for name, p := range policies {
		v.validateGuardrailRefs(name, p, known, &result)
		v.validatePipeline(name, p, known, &result)
		v.validateInheritance(name, policies, exists, &result)
		v.validateCondition(name, p, &result)
		if p.Scope != nil {
			v.validateScopeDimensions(ctx, name, p.Scope.Teams, p.Scope.Keys, p.Scope.Models, &result)
		}
	}

	for _, a := range attachments {
		if !exists(a.PolicyName) {
			result.Errors = append(result.Errors, model.PolicyConfigError{
				PolicyName: a.PolicyName,
				ErrorType:  model.ErrInvalidScope,
				Message:    fmt.Sprintf("attachment references unknown policy %q", a.PolicyName),
				Field:      "policy",
				Value:      a.PolicyName,
			})
		}
		v.validateScopeDimensions(ctx, a.PolicyName, a.Teams, a.Keys, a.Models, &result)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (v *Validator) validateGuardrailRefs(name string, p *model.Policy, known map[string]struct{}, result *model.PolicyValidationResult) {
	if v.Guardrails == nil {
		return
	}
	for _, g := range p.Guardrails.Add {
		if _, ok := known[g]; !ok {
			result.Errors = append(result.Errors, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrInvalidGuardrail,
				Message:    fmt.Sprintf("guardrail %q is not registered", g),
				Field:      "guardrails.add",
				Value:      g,
			})
		}
	}
	// A stale remove entry is harmless: removing something that cannot
	// be added is a no-op, so it only warrants a warning.
	for _, g := range p.Guardrails.Remove {
		if _, ok := known[g]; !ok {
			result.Warnings = append(result.Warnings, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrInvalidGuardrail,
				Message:    fmt.Sprintf("guardrail %q in remove list is not registered", g),
				Field:      "guardrails.remove",
				Value:      g,
			})
		}
	}
}

func (v *Validator) validatePipeline(name string, p *model.Policy, known map[string]struct{}, result *model.PolicyValidationResult) {
	if p.Pipeline == nil {
		return
	}
	if p.Pipeline.Mode != model.PipelineModePreCall && p.Pipeline.Mode != model.PipelineModePostCall {
		result.Errors = append(result.Errors, model.PolicyConfigError{
			PolicyName: name,
			ErrorType:  model.ErrInvalidSyntax,
			Message:    fmt.Sprintf("pipeline mode must be %q or %q", model.PipelineModePreCall, model.PipelineModePostCall),
			Field:      "pipeline.mode",
			Value:      p.Pipeline.Mode,
		})
	}
	if len(p.Pipeline.Steps) == 0 {
		result.Errors = append(result.Errors, model.PolicyConfigError{
			PolicyName: name,
			ErrorType:  model.ErrInvalidSyntax,
			Message:    "pipeline requires at least one step",
			Field:      "pipeline.steps",
		})
	}

	added := make(map[string]struct{}, len(p.Guardrails.Add))
	for _, g := range p.Guardrails.Add {
		added[g] = struct{}{}
	}
	validActions := map[string]struct{}{
		model.ActionAllow: {}, model.ActionBlock: {}, model.ActionNext: {}, model.ActionModifyResponse: {},
	}

	for i, step := range p.Pipeline.Steps {
		field := fmt.Sprintf("pipeline.steps[%d]", i)
		if _, ok := added[step.Guardrail]; !ok {
			result.Errors = append(result.Errors, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrInvalidGuardrail,
				Message:    fmt.Sprintf("pipeline step guardrail %q is not in this policy's guardrails.add", step.Guardrail),
				Field:      field + ".guardrail",
				Value:      step.Guardrail,
			})
		}
		if v.Guardrails != nil {
			if _, ok := known[step.Guardrail]; !ok {
				result.Errors = append(result.Errors, model.PolicyConfigError{
					PolicyName: name,
					ErrorType:  model.ErrInvalidGuardrail,
					Message:    fmt.Sprintf("pipeline step guardrail %q is not registered", step.Guardrail),
					Field:      field + ".guardrail",
					Value:      step.Guardrail,
				})
			}
		}
		for _, action := range []struct{ field, value string }{
			{field + ".on_pass", step.PassAction()},
			{field + ".on_fail", step.FailAction()},
		} {
			if _, ok := validActions[action.value]; !ok {
				result.Errors = append(result.Errors, model.PolicyConfigError{
					PolicyName: name,
					ErrorType:  model.ErrInvalidSyntax,
					Message:    fmt.Sprintf("unknown pipeline action %q", action.value),
					Field:      action.field,
					Value:      action.value,
				})
			}
		}
	}
}

// validateInheritance is the canonical cycle check: a depth-bounded walk
// with a visited set, reporting the full cycle path. The resolver's
// empty-chain fallback exists only for records that predate validation.
func (v *Validator) validateInheritance(name string, policies map[string]*model.Policy, exists func(string) bool, result *model.PolicyValidationResult) {
	p := policies[name]
	if p.Inherit == nil {
		return
	}
	if !exists(*p.Inherit) {
		result.Errors = append(result.Errors, model.PolicyConfigError{
			PolicyName: name,
			ErrorType:  model.ErrInvalidInheritance,
			Message:    fmt.Sprintf("inherit references unknown policy %q", *p.Inherit),
			Field:      "inherit",
			Value:      *p.Inherit,
		})
		return
	}

	visited := map[string]struct{}{name: {}}
	path := []string{name}
	current := *p.Inherit
	for depth := 0; ; depth++ {
		if depth >= maxInheritanceDepth {
			result.Errors = append(result.Errors, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrCircularInheritance,
				Message:    fmt.Sprintf("inheritance chain exceeds max depth %d", maxInheritanceDepth),
				Field:      "inherit",
			})
			return
		}
		if _, seen := visited[current]; seen {
			path = append(path, current)
			result.Errors = append(result.Errors, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrCircularInheritance,
				Message:    "circular inheritance: " + strings.Join(path, " -> "),
				Field:      "inherit",
				Value:      current,
			})
			return
		}
		visited[current] = struct{}{}
		path = append(path, current)

		next, ok := policies[current]
		if !ok || next.Inherit == nil {
			return
		}
		current = *next.Inherit
	}
}

func (v *Validator) validateCondition(name string, p *model.Policy, result *model.PolicyValidationResult) {
	if p.Condition == nil {
		return
	}
	if pattern, err := ValidateConditionPatterns(p.Condition.Model); err != nil {
		result.Errors = append(result.Errors, model.PolicyConfigError{
			PolicyName: name,
			ErrorType:  model.ErrInvalidSyntax,
			Message:    fmt.Sprintf("condition pattern %q is not a valid regex: %v", pattern, err),
			Field:      "condition.model",
			Value:      pattern,
		})
	}
}

// validateScopeDimensions checks non-wildcard team/key aliases against
// the alias directory (errors) and model names against the router
// (warnings only). Collaborator failures degrade to assume-valid.
func (v *Validator) validateScopeDimensions(ctx context.Context, name string, teams, keys, models []string, result *model.PolicyValidationResult) {
	if v.Aliases != nil {
		for _, team := range teams {
			if isWildcardPattern(team) {
				continue
			}
			ok, err := v.Aliases.TeamAliasExists(ctx, team)
			if err != nil {
				log.Printf("policy validator: team alias lookup for %q failed, assuming valid: %v", team, err)
				continue
			}
			if !ok {
				result.Errors = append(result.Errors, model.PolicyConfigError{
					PolicyName: name,
					ErrorType:  model.ErrInvalidTeam,
					Message:    fmt.Sprintf("team alias %q does not exist", team),
					Field:      "teams",
					Value:      team,
				})
			}
		}
		for _, key := range keys {
			if isWildcardPattern(key) {
				continue
			}
			ok, err := v.Aliases.KeyAliasExists(ctx, key)
			if err != nil {
				log.Printf("policy validator: key alias lookup for %q failed, assuming valid: %v", key, err)
				continue
			}
			if !ok {
				result.Errors = append(result.Errors, model.PolicyConfigError{
					PolicyName: name,
					ErrorType:  model.ErrInvalidKey,
					Message:    fmt.Sprintf("key alias %q does not exist", key),
					Field:      "keys",
					Value:      key,
				})
			}
		}
	}

	if v.Models != nil {
		knownModels := make(map[string]struct{})
		for _, m := range v.Models.KnownModelNames() {
			knownModels[m] = struct{}{}
		}
		routes := v.Models.WildcardRoutes()
		for _, m := range models {
			if isWildcardPattern(m) {
				continue
			}
			if _, ok := knownModels[m]; ok {
				continue
			}
			if wildcard.MatchesAny(routes, m) {
				continue
			}
			result.Warnings = append(result.Warnings, model.PolicyConfigError{
				PolicyName: name,
				ErrorType:  model.ErrInvalidModel,
				Message:    fmt.Sprintf("model %q is not a known model or wildcard route", m),
				Field:      "models",
				Value:      m,
			})
		}
	}
}

func isWildcardPattern(s string) bool {
	return strings.Contains(s, "*")
}
