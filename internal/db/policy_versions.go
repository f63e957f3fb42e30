package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// PolicyVersionTable is one persisted policy version. At most one row
// per policy_name holds version_status = 'production' at any instant.
type PolicyVersionTable struct {
	PolicyID         string             `json:"policy_id"`
	PolicyName       string             `json:"policy_name"`
	VersionNumber    int32              `json:"version_number"`
	VersionStatus    string             `json:"version_status"`
	ParentVersionID  *string            `json:"parent_version_id"`
	IsLatest         bool               `json:"is_latest"`
	Inherit          *string            `json:"inherit"`
	GuardrailsAdd    []string           `json:"guardrails_add"`
	GuardrailsRemove []string           `json:"guardrails_remove"`
	Condition        []byte             `json:"condition"`
	Pipeline         []byte             `json:"pipeline"`
	Description      *string            `json:"description"`
	PublishedAt      pgtype.Timestamptz `json:"published_at"`
	ProductionAt     pgtype.Timestamptz `json:"production_at"`
	CreatedBy        *string            `json:"created_by"`
	UpdatedBy        *string            `json:"updated_by"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

const policyVersionColumns = `policy_id, policy_name, version_number, version_status, parent_version_id, is_latest, inherit, guardrails_add, guardrails_remove, condition, pipeline, description, published_at, production_at, created_by, updated_by, created_at, updated_at`

func scanPolicyVersion(row interface{ Scan(dest ...any) error }) (PolicyVersionTable, error) {
	var i PolicyVersionTable
	err := row.Scan(
		&i.PolicyID,
		&i.PolicyName,
		&i.VersionNumber,
		&i.VersionStatus,
		&i.ParentVersionID,
		&i.IsLatest,
		&i.Inherit,
		&i.GuardrailsAdd,
		&i.GuardrailsRemove,
		&i.Condition,
		&i.Pipeline,
		&i.Description,
		&i.PublishedAt,
		&i.ProductionAt,
		&i.CreatedBy,
		&i.UpdatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPolicyVersion = `-- name: CreatePolicyVersion :one
INSERT INTO "PolicyVersionTable" (policy_id, policy_name, version_number, version_status, parent_version_id, is_latest, inherit, guardrails_add, guardrails_remove, condition, pipeline, description, created_by, updated_by)
VALUES ($1, $2, $3, 'draft', $4, TRUE, $5, $6, $7, $8, $9, $10, $11, $11)
RETURNING ` + policyVersionColumns

type CreatePolicyVersionParams struct {
	PolicyID         string   `json:"policy_id"`
	PolicyName       string   `json:"policy_name"`
	VersionNumber    int32    `json:"version_number"`
	ParentVersionID  *string  `json:"parent_version_id"`
	Inherit          *string  `json:"inherit"`
	GuardrailsAdd    []string `json:"guardrails_add"`
	GuardrailsRemove []string `json:"guardrails_remove"`
	Condition        []byte   `json:"condition"`
	Pipeline         []byte   `json:"pipeline"`
	Description      *string  `json:"description"`
	CreatedBy        *string  `json:"created_by"`
}

func (q *Queries) CreatePolicyVersion(ctx context.Context, arg CreatePolicyVersionParams) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, createPolicyVersion,
		arg.PolicyID,
		arg.PolicyName,
		arg.VersionNumber,
		arg.ParentVersionID,
		arg.Inherit,
		arg.GuardrailsAdd,
		arg.GuardrailsRemove,
		arg.Condition,
		arg.Pipeline,
		arg.Description,
		arg.CreatedBy,
	)
	return scanPolicyVersion(row)
}

const getPolicyVersion = `-- name: GetPolicyVersion :one
SELECT ` + policyVersionColumns + `
FROM "PolicyVersionTable"
WHERE policy_id = $1
`

func (q *Queries) GetPolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, getPolicyVersion, policyID)
	return scanPolicyVersion(row)
}

const listPolicyVersions = `-- name: ListPolicyVersions :many
SELECT ` + policyVersionColumns + `
FROM "PolicyVersionTable"
WHERE policy_name = $1
ORDER BY version_number DESC
`

func (q *Queries) ListPolicyVersions(ctx context.Context, policyName string) ([]PolicyVersionTable, error) {
	rows, err := q.db.Query(ctx, listPolicyVersions, policyName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PolicyVersionTable
	for rows.Next() {
		i, err := scanPolicyVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPolicyVersionByNameStatus = `-- name: GetPolicyVersionByNameStatus :one
SELECT ` + policyVersionColumns + `
FROM "PolicyVersionTable"
WHERE policy_name = $1 AND version_status = $2
`

type GetPolicyVersionByNameStatusParams struct {
	PolicyName    string `json:"policy_name"`
	VersionStatus string `json:"version_status"`
}

func (q *Queries) GetPolicyVersionByNameStatus(ctx context.Context, arg GetPolicyVersionByNameStatusParams) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, getPolicyVersionByNameStatus, arg.PolicyName, arg.VersionStatus)
	return scanPolicyVersion(row)
}

const listProductionPolicyVersions = `-- name: ListProductionPolicyVersions :many
SELECT ` + policyVersionColumns + `
FROM "PolicyVersionTable"
WHERE version_status = 'production'
ORDER BY policy_name
`

func (q *Queries) ListProductionPolicyVersions(ctx context.Context) ([]PolicyVersionTable, error) {
	rows, err := q.db.Query(ctx, listProductionPolicyVersions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PolicyVersionTable
	for rows.Next() {
		i, err := scanPolicyVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const latestVersionNumber = `-- name: LatestVersionNumber :one
SELECT COALESCE(MAX(version_number), 0)::int
FROM "PolicyVersionTable"
WHERE policy_name = $1
`

func (q *Queries) LatestVersionNumber(ctx context.Context, policyName string) (int32, error) {
	row := q.db.QueryRow(ctx, latestVersionNumber, policyName)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const updatePolicyVersionContent = `-- name: UpdatePolicyVersionContent :one
UPDATE "PolicyVersionTable"
SET inherit = $2,
    guardrails_add = $3,
    guardrails_remove = $4,
    condition = $5,
    pipeline = $6,
    description = $7,
    updated_by = $8,
    updated_at = NOW()
WHERE policy_id = $1
RETURNING ` + policyVersionColumns

type UpdatePolicyVersionContentParams struct {
	PolicyID         string   `json:"policy_id"`
	Inherit          *string  `json:"inherit"`
	GuardrailsAdd    []string `json:"guardrails_add"`
	GuardrailsRemove []string `json:"guardrails_remove"`
	Condition        []byte   `json:"condition"`
	Pipeline         []byte   `json:"pipeline"`
	Description      *string  `json:"description"`
	UpdatedBy        *string  `json:"updated_by"`
}

func (q *Queries) UpdatePolicyVersionContent(ctx context.Context, arg UpdatePolicyVersionContentParams) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, updatePolicyVersionContent,
		arg.PolicyID,
		arg.Inherit,
		arg.GuardrailsAdd,
		arg.GuardrailsRemove,
		arg.Condition,
		arg.Pipeline,
		arg.Description,
		arg.UpdatedBy,
	)
	return scanPolicyVersion(row)
}

const publishPolicyVersion = `-- name: PublishPolicyVersion :one
UPDATE "PolicyVersionTable"
SET version_status = 'published', published_at = NOW(), updated_at = NOW()
WHERE policy_id = $1
RETURNING ` + policyVersionColumns

func (q *Queries) PublishPolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, publishPolicyVersion, policyID)
	return scanPolicyVersion(row)
}

const promotePolicyVersion = `-- name: PromotePolicyVersion :one
UPDATE "PolicyVersionTable"
SET version_status = 'production', production_at = NOW(), updated_at = NOW()
WHERE policy_id = $1
RETURNING ` + policyVersionColumns

func (q *Queries) PromotePolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error) {
	row := q.db.QueryRow(ctx, promotePolicyVersion, policyID)
	return scanPolicyVersion(row)
}

const demotePolicyVersion = `-- name: DemotePolicyVersion :exec
UPDATE "PolicyVersionTable"
SET version_status = 'published', updated_at = NOW()
WHERE policy_id = $1
`

func (q *Queries) DemotePolicyVersion(ctx context.Context, policyID string) error {
	_, err := q.db.Exec(ctx, demotePolicyVersion, policyID)
	return err
}

const clearLatestFlag = `-- name: ClearLatestFlag :exec
UPDATE "PolicyVersionTable"
SET is_latest = FALSE
WHERE policy_name = $1
`

func (q *Queries) ClearLatestFlag(ctx context.Context, policyName string) error {
	_, err := q.db.Exec(ctx, clearLatestFlag, policyName)
	return err
}

const deletePolicyVersion = `-- name: DeletePolicyVersion :exec
DELETE FROM "PolicyVersionTable"
WHERE policy_id = $1
`

func (q *Queries) DeletePolicyVersion(ctx context.Context, policyID string) error {
	_, err := q.db.Exec(ctx, deletePolicyVersion, policyID)
	return err
}
