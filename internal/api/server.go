package api

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a chi router with all management routes configured.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/policy", func(r chi.Router) {
		r.Post("/validate", h.PolicyValidate)
		r.Get("/active", h.PolicyActiveList)
		r.Get("/active/{name}", h.PolicyActiveGet)
		r.Post("/test-match", h.PolicyTestMatch)
		r.Post("/resolve", h.PolicyResolve)
		r.Post("/apply-test", h.PolicyApplyTest)
		r.Post("/pipeline-test", h.PolicyPipelineTest)

		r.Post("/attachment", h.AttachmentCreate)
		r.Post("/attachment/impact", h.AttachmentImpact)
		r.Get("/attachments", h.AttachmentList)
		r.Delete("/attachment/{id}", h.AttachmentDelete)

		r.Post("/version", h.VersionCreate)
		r.Get("/version/compare", h.VersionCompare)
		r.Get("/version/{policy_id}", h.VersionGet)
		r.Put("/version/{policy_id}", h.VersionUpdate)
		r.Post("/version/{policy_id}/publish", h.VersionPublish)
		r.Post("/version/{policy_id}/promote", h.VersionPromote)
		r.Delete("/version/{policy_id}", h.VersionDelete)

		r.Get("/{name}/versions", h.VersionList)
	})

	return r
}
