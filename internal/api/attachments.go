package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BerriAI/litellm-sub032/internal/db"
	"github.com/BerriAI/litellm-sub032/internal/model"
)

// reloadAttachments refreshes the in-memory attachment list after a
// write. Failure is logged, not surfaced: the write succeeded and the
// periodic reload will converge.
func (h *Handlers) reloadAttachments(r *http.Request) {
	rows, err := h.DB.ListPolicyAttachments(r.Context())
	if err != nil {
		log.Printf("policy api: reload attachments after write: %v", err)
		return
	}
	attachments := make([]model.PolicyAttachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.Attachment())
	}
	h.Store.LoadAttachments(attachments)
}

// AttachmentCreate handles POST /policy/attachment.
func (h *Handlers) AttachmentCreate(w http.ResponseWriter, r *http.Request) {
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

	result := h.Validator.ValidateConfig(r.Context(), nil, []model.PolicyAttachment{att}, true)
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}

	row, err := h.DB.CreatePolicyAttachment(r.Context(), db.CreatePolicyAttachmentParams{
		ID:         uuid.New().String(),
		PolicyName: att.PolicyName,
		Scope:      att.Scope,
		Teams:      att.Teams,
		Keys:       att.Keys,
		Models:     att.Models,
		Tags:       att.Tags,
		CreatedBy:  att.CreatedBy,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "create attachment: "+err.Error())
		return
	}

	h.reloadAttachments(r)
	writeJSON(w, http.StatusCreated, row.Attachment())
}

// AttachmentList handles GET /policy/attachments.
func (h *Handlers) AttachmentList(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "internal_error", "database not configured")
		return
	}

	rows, err := h.DB.ListPolicyAttachments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "list attachments: "+err.Error())
		return
	}
	attachments := make([]model.PolicyAttachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.Attachment())
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

// AttachmentDelete handles DELETE /policy/attachment/{id}.
func (h *Handlers) AttachmentDelete(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "internal_error", "database not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.DB.GetPolicyAttachment(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "attachment not found")
		return
	}
	if err := h.DB.DeletePolicyAttachment(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "delete attachment: "+err.Error())
		return
	}

	h.reloadAttachments(r)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}
