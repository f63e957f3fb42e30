package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BerriAI/litellm-sub032/internal/model"
	"github.com/BerriAI/litellm-sub032/internal/policy"
)

func writeLifecycleError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, policy.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, policy.ErrNotDraft), errors.Is(err, policy.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_request_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", action+": "+err.Error())
	}
}

// VersionCreate handles POST /policy/version.
func (h *Handlers) VersionCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}

	var req model.CreatePolicyVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	if req.PolicyName == "" && req.SourceVersionID == nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "policy_name or source_version_id is required")
		return
	}

	v, err := h.Lifecycle.CreateVersion(r.Context(), req)
	if err != nil {
		writeLifecycleError(w, "create version", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// VersionGet handles GET /policy/version/{policy_id}.
func (h *Handlers) VersionGet(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}
	v, err := h.Lifecycle.GetVersion(r.Context(), chi.URLParam(r, "policy_id"))
	if err != nil {
		writeLifecycleError(w, "get version", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// VersionList handles GET /policy/{name}/versions.
func (h *Handlers) VersionList(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}
	versions, err := h.Lifecycle.ListVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeLifecycleError(w, "list versions", err)
		return
	}
	if versions == nil {
		versions = []model.PolicyVersion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// VersionUpdate handles PUT /policy/version/{policy_id}. Draft only.
func (h *Handlers) VersionUpdate(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}

	var req model.UpdatePolicyVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	v, err := h.Lifecycle.EditVersion(r.Context(), chi.URLParam(r, "policy_id"), req)
	if err != nil {
		writeLifecycleError(w, "update version", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// VersionPublish handles POST /policy/version/{policy_id}/publish.
func (h *Handlers) VersionPublish(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}
	v, err := h.Lifecycle.Publish(r.Context(), chi.URLParam(r, "policy_id"))
	if err != nil {
		writeLifecycleError(w, "publish version", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// VersionPromote handles POST /policy/version/{policy_id}/promote.
func (h *Handlers) VersionPromote(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}
	v, err := h.Lifecycle.Promote(r.Context(), chi.URLParam(r, "policy_id"))
	if err != nil {
		writeLifecycleError(w, "promote version", err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.SetActivePolicies(len(h.Store.PolicyNames()))
	}
	writeJSON(w, http.StatusOK, v)
}

// VersionDelete handles DELETE /policy/version/{policy_id}.
func (h *Handlers) VersionDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}
	result, err := h.Lifecycle.DeleteVersion(r.Context(), chi.URLParam(r, "policy_id"))
	if err != nil {
		writeLifecycleError(w, "delete version", err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.SetActivePolicies(len(h.Store.PolicyNames()))
	}
	writeJSON(w, http.StatusOK, result)
}

// VersionCompare handles GET /policy/version/compare?from=&to=.
func (h *Handlers) VersionCompare(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "from and to query parameters are required")
		return
	}

	cmp, err := h.Lifecycle.CompareVersions(r.Context(), from, to)
	if err != nil {
		writeLifecycleError(w, "compare versions", err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
