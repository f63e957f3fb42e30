package api

import (
	"encoding/json"
	"net/http"

	"github.com/BerriAI/litellm-sub032/internal/config"
	"github.com/BerriAI/litellm-sub032/internal/db"
	"github.com/BerriAI/litellm-sub032/internal/guardrail"
	"github.com/BerriAI/litellm-sub032/internal/metrics"
	"github.com/BerriAI/litellm-sub032/internal/model"
	"github.com/BerriAI/litellm-sub032/internal/policy"
)

// Handlers holds dependencies for the management API. Everything is
// passed in; nothing reaches for globals. DB and Lifecycle are nil when
// the engine runs config-only, and the version and attachment endpoints
// answer 503 in that mode.
type Handlers struct {
	Config     *config.EngineConfig
	DB         db.Store
	Store      *policy.Store
	Lifecycle  *policy.Lifecycle
	Validator  *policy.Validator
	Guardrails *guardrail.Registry
	Applier    *policy.Applier
	Metrics    *metrics.Metrics
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error: model.ErrorDetail{Message: message, Type: errType},
	})
}

func (h *Handlers) requireDB(w http.ResponseWriter) bool {
	if h.DB == nil || h.Lifecycle == nil {
		writeError(w, http.StatusServiceUnavailable, "internal_error", "database not configured")
		return false
	}
	return true
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":       "healthy",
		"policy_store": h.Store.Initialized(),
	}
	if h.Guardrails != nil {
		status["guardrails"] = len(h.Guardrails.Names())
	}
	writeJSON(w, http.StatusOK, status)
}
