package policy

import (
	"sort"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// maxInheritanceDepth caps the ancestry walk. The validator is the
// canonical cycle check; this bound only keeps a pathological config
// that slipped past it from walking forever.
const maxInheritanceDepth = 100

// buildChain returns the ancestry of name ordered root first. A repeated
// name or a chain deeper than maxInheritanceDepth signals circular
// inheritance and yields an empty chain. A parent that does not exist
// ends the walk; the part of the chain already collected stands.
func buildChain(name string, policies map[string]*model.Policy) []*model.Policy {
	var chain []*model.Policy // leaf first while walking
	visited := make(map[string]struct{})

	current, ok := policies[name]
	for ok {
		if _, seen := visited[current.Name]; seen {
			return nil
		}
		if len(chain) >= maxInheritanceDepth {
			return nil
		}
		visited[current.Name] = struct{}{}
		chain = append(chain, current)
		if current.Inherit == nil {
			break
		}
		current, ok = policies[*current.Inherit]
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ResolveGuardrails computes the effective guardrail set for one policy
// by walking its inheritance chain root to leaf, applying each node's
// add then remove. When mctx is non-nil, a node whose condition fails is
// skipped entirely; its ancestors' effects stand. Pure over the input
// map; guardrails are returned sorted.
func ResolveGuardrails(name string, policies map[string]*model.Policy, mctx *model.PolicyMatchContext) model.ResolvedPolicy {
	resolved := model.ResolvedPolicy{PolicyName: name, Guardrails: []string{}, InheritanceChain: []string{}}

	chain := buildChain(name, policies)
	if len(chain) == 0 {
		return resolved
	}

	set := make(map[string]struct{})
	for _, p := range chain {
		resolved.InheritanceChain = append(resolved.InheritanceChain, p.Name)
		if mctx != nil && !EvaluateCondition(p.Condition, *mctx) {
			continue
		}
		for _, g := range p.Guardrails.Add {
			set[g] = struct{}{}
		}
		for _, g := range p.Guardrails.Remove {
			delete(set, g)
		}
	}

	for g := range set {
		resolved.Guardrails = append(resolved.Guardrails, g)
	}
	sort.Strings(resolved.Guardrails)
	return resolved
}

// PolicyPipeline pairs a policy name with its pipeline configuration.
type PolicyPipeline struct {
	PolicyName string
	Pipeline   *model.PipelineConfig
}

// pipelinesFor returns the (policy, pipeline) pairs among the given
// policy names, in the given order.
func pipelinesFor(names []string, policies map[string]*model.Policy) []PolicyPipeline {
	var out []PolicyPipeline
	for _, name := range names {
		if p, ok := policies[name]; ok && p.Pipeline != nil && len(p.Pipeline.Steps) > 0 {
			out = append(out, PolicyPipeline{PolicyName: name, Pipeline: p.Pipeline})
		}
	}
	return out
}

// pipelineManagedGuardrails collects the guardrail names consumed by any
// pipeline step, so callers can exclude them from independent execution.
func pipelineManagedGuardrails(pipelines []PolicyPipeline) map[string]struct{} {
	managed := make(map[string]struct{})
	for _, pp := range pipelines {
		for _, step := range pp.Pipeline.Steps {
			managed[step.Guardrail] = struct{}{}
		}
	}
	return managed
}
