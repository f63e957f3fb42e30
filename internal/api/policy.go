package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BerriAI/litellm-sub032/internal/model"
	"github.com/BerriAI/litellm-sub032/internal/policy"
)

// PolicyValidate handles POST /policy/validate: static validation of a
// candidate policy set without activating anything.
func (h *Handlers) PolicyValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policies             map[string]*model.Policy `json:"policies"`
		Attachments          []model.PolicyAttachment `json:"attachments,omitempty"`
		ValidateAgainstStore bool                     `json:"validate_against_store,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	for name, p := range req.Policies {
		if p == nil {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "policy "+name+" has no body")
			return
		}
		p.Name = name
	}

	result := h.Validator.ValidateConfig(r.Context(), req.Policies, req.Attachments, req.ValidateAgainstStore)
	writeJSON(w, http.StatusOK, result)
}

type activePolicy struct {
	model.Policy
	ResolvedGuardrails []string `json:"resolved_guardrails"`
	InheritanceChain   []string `json:"inheritance_chain"`
}

// PolicyActiveList handles GET /policy/active: every active policy with
// its context-free resolution.
func (h *Handlers) PolicyActiveList(w http.ResponseWriter, r *http.Request) {
	out := make([]activePolicy, 0)
	for _, name := range h.Store.PolicyNames() {
		p, ok := h.Store.Policy(name)
		if !ok {
			continue
		}
		rp := h.Store.ResolveGuardrails(name, nil)
		out = append(out, activePolicy{
			Policy:             *p,
			ResolvedGuardrails: rp.Guardrails,
			InheritanceChain:   rp.InheritanceChain,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": out})
}

// PolicyActiveGet handles GET /policy/active/{name}.
func (h *Handlers) PolicyActiveGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := h.Store.Policy(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "policy not found")
		return
	}
	rp := h.Store.ResolveGuardrails(name, nil)
	writeJSON(w, http.StatusOK, activePolicy{
		Policy:             *p,
		ResolvedGuardrails: rp.Guardrails,
		InheritanceChain:   rp.InheritanceChain,
	})
}

// PolicyTestMatch handles POST /policy/test-match: which attachments
// would match a hypothetical request context, with attribution.
func (h *Handlers) PolicyTestMatch(w http.ResponseWriter, r *http.Request) {
	var mctx model.PolicyMatchContext
	if err := decodeJSON(r, &mctx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	matches := h.Store.AttachedPoliciesWithReasons(mctx)
	if matches == nil {
		matches = []model.AttachmentMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// PolicyResolve handles POST /policy/resolve: the full effective
// guardrail set for a context, with per-policy detail.
func (h *Handlers) PolicyResolve(w http.ResponseWriter, r *http.Request) {
	var mctx model.PolicyMatchContext
	if err := decodeJSON(r, &mctx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	matches := h.Store.AttachedPoliciesWithReasons(mctx)
	guardrails, resolved := h.Store.ResolveGuardrailsForContext(mctx)
	if h.Metrics != nil {
		for _, rp := range resolved {
			h.Metrics.RecordEvaluation(rp.PolicyName)
		}
	}
	if matches == nil {
		matches = []model.AttachmentMatch{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"guardrails": guardrails,
		"policies":   resolved,
		"matches":    matches,
	})
}

// PolicyApplyTest handles POST /policy/apply-test: run the resolved
// guardrail set against a sample payload and report the transformed
// payload plus any partial failures.
func (h *Handlers) PolicyApplyTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policies   []string                 `json:"policies,omitempty"`
		Guardrails []string                 `json:"guardrails,omitempty"`
		Inputs     model.GuardrailAPIInputs `json:"inputs"`
		InputType  string                   `json:"input_type,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	if req.InputType == "" {
		req.InputType = "texts"
	}

	start := time.Now()
	out, guardrailErrs, err := h.Applier.Apply(r.Context(), req.Policies, req.Guardrails, req.Inputs, nil, req.InputType)
	if h.Metrics != nil {
		h.Metrics.RecordApplyDuration(req.InputType, time.Since(start))
		for _, ge := range guardrailErrs {
			h.Metrics.RecordGuardrailFailure(ge.GuardrailName)
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "apply guardrails: "+err.Error())
		return
	}
	if guardrailErrs == nil {
		guardrailErrs = []model.GuardrailError{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"inputs": out,
		"errors": guardrailErrs,
	})
}

type pipelineRun struct {
	PolicyName string                     `json:"policy_name"`
	Action     string                     `json:"action"`
	Message    string                     `json:"message,omitempty"`
	Steps      []model.PipelineStepResult `json:"steps"`
	Inputs     model.GuardrailAPIInputs   `json:"inputs"`
}

// PolicyPipelineTest handles POST /policy/pipeline-test: execute every
// pipeline attached for a context against a sample payload, reporting
// each pipeline's terminal action and step records. Guardrails consumed
// by a pipeline step are listed so callers know to exclude them from
// independent application.
func (h *Handlers) PolicyPipelineTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context model.PolicyMatchContext `json:"context"`
		Inputs  model.GuardrailAPIInputs `json:"inputs"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	runs := make([]pipelineRun, 0)
	for _, pp := range h.Store.ResolvePipelinesForContext(req.Context) {
		res, err := policy.ExecutePipeline(r.Context(), pp.Pipeline, h.Guardrails, req.Inputs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "execute pipeline: "+err.Error())
			return
		}
		if h.Metrics != nil {
			h.Metrics.RecordPipelineOutcome(pp.PolicyName, res.Action)
		}
		if res.Steps == nil {
			res.Steps = []model.PipelineStepResult{}
		}
		runs = append(runs, pipelineRun{
			PolicyName: pp.PolicyName,
			Action:     res.Action,
			Message:    res.Message,
			Steps:      res.Steps,
			Inputs:     res.Inputs,
		})
	}

	managed := make([]string, 0)
	for name := range h.Store.PipelineManagedGuardrails(req.Context) {
		managed = append(managed, name)
	}
	sort.Strings(managed)

	writeJSON(w, http.StatusOK, map[string]any{
		"pipelines":          runs,
		"managed_guardrails": managed,
	})
}

// AttachmentImpact handles POST /policy/attachment/impact: estimate the
// blast radius of a proposed attachment before saving it.
func (h *Handlers) AttachmentImpact(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "internal_error", "database not configured")
		return
	}

	var att model.PolicyAttachment
	if err := decodeJSON(r, &att); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	if att.PolicyName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "policy is required")
		return
	}

	est, err := policy.EstimateImpact(r.Context(), h.DB, &att)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "estimate impact: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, est)
}
