package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Pool returns the underlying pgxpool.Pool if the Queries was created with one.
func (q *Queries) Pool() *pgxpool.Pool {
	if p, ok := q.db.(*pgxpool.Pool); ok {
		return p
	}
	return nil
}

// Ping pings the database.
func (q *Queries) Ping(ctx context.Context) error {
	if p := q.Pool(); p != nil {
		return p.Ping(ctx)
	}
	return nil
}

// Policy decodes the row's content fields into a model.Policy.
func (r PolicyVersionTable) Policy() (model.Policy, error) {
	p := model.Policy{
		Name:        r.PolicyName,
		Inherit:     r.Inherit,
		Guardrails:  model.GuardrailSet{Add: r.GuardrailsAdd, Remove: r.GuardrailsRemove},
		Description: r.Description,
	}
	if len(r.Condition) > 0 && string(r.Condition) != "null" {
		var cond model.PolicyCondition
		if err := json.Unmarshal(r.Condition, &cond); err != nil {
			return p, fmt.Errorf("policy %q: decode condition: %w", r.PolicyName, err)
		}
		p.Condition = &cond
	}
	if len(r.Pipeline) > 0 && string(r.Pipeline) != "null" {
		var pipeline model.PipelineConfig
		if err := json.Unmarshal(r.Pipeline, &pipeline); err != nil {
			return p, fmt.Errorf("policy %q: decode pipeline: %w", r.PolicyName, err)
		}
		p.Pipeline = &pipeline
	}
	return p, nil
}

// Version converts the row to its API-facing shape.
func (r PolicyVersionTable) Version() (model.PolicyVersion, error) {
	p, err := r.Policy()
	if err != nil {
		return model.PolicyVersion{}, err
	}
	v := model.PolicyVersion{
		PolicyID:        r.PolicyID,
		PolicyName:      r.PolicyName,
		VersionNumber:   r.VersionNumber,
		VersionStatus:   r.VersionStatus,
		ParentVersionID: r.ParentVersionID,
		IsLatest:        r.IsLatest,
		Policy:          p,
		CreatedBy:       r.CreatedBy,
		UpdatedBy:       r.UpdatedBy,
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time
		v.PublishedAt = &t
	}
	if r.ProductionAt.Valid {
		t := r.ProductionAt.Time
		v.ProductionAt = &t
	}
	if r.CreatedAt.Valid {
		v.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		v.UpdatedAt = r.UpdatedAt.Time
	}
	return v, nil
}

// Attachment converts the row to its model shape.
func (r PolicyAttachmentTable) Attachment() model.PolicyAttachment {
	a := model.PolicyAttachment{
		ID:         r.ID,
		PolicyName: r.PolicyName,
		Scope:      r.Scope,
		Teams:      r.Teams,
		Keys:       r.Keys,
		Models:     r.Models,
		Tags:       r.Tags,
		CreatedBy:  r.CreatedBy,
	}
	if r.CreatedAt.Valid {
		a.CreatedAt = r.CreatedAt.Time
	}
	return a
}

// ProductionPolicies loads the active policy set. Together with
// Attachments this makes *Queries a policy store source.
func (q *Queries) ProductionPolicies(ctx context.Context) (map[string]*model.Policy, error) {
	rows, err := q.ListProductionPolicyVersions(ctx)
	if err != nil {
		return nil, err
	}
	policies := make(map[string]*model.Policy, len(rows))
	for _, row := range rows {
		p, err := row.Policy()
		if err != nil {
			return nil, err
		}
		policies[p.Name] = &p
	}
	return policies, nil
}

// Attachments loads every persisted attachment in creation order.
func (q *Queries) Attachments(ctx context.Context) ([]model.PolicyAttachment, error) {
	rows, err := q.ListPolicyAttachments(ctx)
	if err != nil {
		return nil, err
	}
	attachments := make([]model.PolicyAttachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.Attachment())
	}
	return attachments, nil
}
