package model

import "time"

// Version lifecycle statuses. Transitions: draft → published → production.
const (
	VersionStatusDraft      = "draft"
	VersionStatusPublished  = "published"
	VersionStatusProduction = "production"
)

// PolicyVersion is the API-facing shape of one persisted policy version.
// At most one version per policy name holds production at any instant.
type PolicyVersion struct {
	PolicyID        string     `json:"policy_id"`
	PolicyName      string     `json:"policy_name"`
	VersionNumber   int32      `json:"version_number"`
	VersionStatus   string     `json:"version_status"`
	ParentVersionID *string    `json:"parent_version_id,omitempty"`
	IsLatest        bool       `json:"is_latest"`
	Policy          Policy     `json:"policy"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	ProductionAt    *time.Time `json:"production_at,omitempty"`
	CreatedBy       *string    `json:"created_by,omitempty"`
	UpdatedBy       *string    `json:"updated_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreatePolicyVersionRequest creates version 1 of a new policy name as a
// draft, or (with SourceVersionID set) a max+1 draft copied from an
// existing version.
type CreatePolicyVersionRequest struct {
	PolicyName      string  `json:"policy_name"`
	SourceVersionID *string `json:"source_version_id,omitempty"`
	Policy          *Policy `json:"policy,omitempty"`
	CreatedBy       *string `json:"created_by,omitempty"`
}

// UpdatePolicyVersionRequest edits content fields of a draft version.
// Nil fields are left unchanged.
type UpdatePolicyVersionRequest struct {
	Inherit     *string          `json:"inherit,omitempty"`
	Guardrails  *GuardrailSet    `json:"guardrails,omitempty"`
	Condition   *PolicyCondition `json:"condition,omitempty"`
	Pipeline    *PipelineConfig  `json:"pipeline,omitempty"`
	Description *string          `json:"description,omitempty"`
	UpdatedBy   *string          `json:"updated_by,omitempty"`
}

// VersionFieldDiff is one differing content field between two versions.
type VersionFieldDiff struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// VersionComparison is the field-by-field diff of two versions of the
// same policy name.
type VersionComparison struct {
	PolicyName  string             `json:"policy_name"`
	FromVersion int32              `json:"from_version"`
	ToVersion   int32              `json:"to_version"`
	Differences []VersionFieldDiff `json:"differences"`
}

// DeleteVersionResult reports a deletion. Warning is set when a
// production version was removed from the active store.
type DeleteVersionResult struct {
	PolicyID string `json:"policy_id"`
	Deleted  bool   `json:"deleted"`
	Warning  string `json:"warning,omitempty"`
}
