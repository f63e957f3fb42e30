package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// PolicyAttachmentTable binds a policy name to a scope, persisted
// independently of the policy's versions.
type PolicyAttachmentTable struct {
	ID         string             `json:"id"`
	PolicyName string             `json:"policy_name"`
	Scope      *string            `json:"scope"`
	Teams      []string           `json:"teams"`
	Keys       []string           `json:"keys"`
	Models     []string           `json:"models"`
	Tags       []string           `json:"tags"`
	CreatedBy  *string            `json:"created_by"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

const attachmentColumns = `id, policy_name, scope, teams, keys, models, tags, created_by, created_at, updated_at`

func scanAttachment(row interface{ Scan(dest ...any) error }) (PolicyAttachmentTable, error) {
	var i PolicyAttachmentTable
	err := row.Scan(
		&i.ID,
		&i.PolicyName,
		&i.Scope,
		&i.Teams,
		&i.Keys,
		&i.Models,
		&i.Tags,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPolicyAttachment = `-- name: CreatePolicyAttachment :one
INSERT INTO "PolicyAttachmentTable" (id, policy_name, scope, teams, keys, models, tags, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + attachmentColumns

type CreatePolicyAttachmentParams struct {
	ID         string   `json:"id"`
	PolicyName string   `json:"policy_name"`
	Scope      *string  `json:"scope"`
	Teams      []string `json:"teams"`
	Keys       []string `json:"keys"`
	Models     []string `json:"models"`
	Tags       []string `json:"tags"`
	CreatedBy  *string  `json:"created_by"`
}

func (q *Queries) CreatePolicyAttachment(ctx context.Context, arg CreatePolicyAttachmentParams) (PolicyAttachmentTable, error) {
	row := q.db.QueryRow(ctx, createPolicyAttachment,
		arg.ID,
		arg.PolicyName,
		arg.Scope,
		arg.Teams,
		arg.Keys,
		arg.Models,
		arg.Tags,
		arg.CreatedBy,
	)
	return scanAttachment(row)
}

const getPolicyAttachment = `-- name: GetPolicyAttachment :one
SELECT ` + attachmentColumns + `
FROM "PolicyAttachmentTable"
WHERE id = $1
`

func (q *Queries) GetPolicyAttachment(ctx context.Context, id string) (PolicyAttachmentTable, error) {
	row := q.db.QueryRow(ctx, getPolicyAttachment, id)
	return scanAttachment(row)
}

const listPolicyAttachments = `-- name: ListPolicyAttachments :many
SELECT ` + attachmentColumns + `
FROM "PolicyAttachmentTable"
ORDER BY created_at
`

func (q *Queries) ListPolicyAttachments(ctx context.Context) ([]PolicyAttachmentTable, error) {
	rows, err := q.db.Query(ctx, listPolicyAttachments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PolicyAttachmentTable
	for rows.Next() {
		i, err := scanAttachment(rows)
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

const listPolicyAttachmentsByPolicy = `-- name: ListPolicyAttachmentsByPolicy :many
SELECT ` + attachmentColumns + `
FROM "PolicyAttachmentTable"
WHERE policy_name = $1
ORDER BY created_at
`

func (q *Queries) ListPolicyAttachmentsByPolicy(ctx context.Context, policyName string) ([]PolicyAttachmentTable, error) {
	rows, err := q.db.Query(ctx, listPolicyAttachmentsByPolicy, policyName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PolicyAttachmentTable
	for rows.Next() {
		i, err := scanAttachment(rows)
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

const deletePolicyAttachment = `-- name: DeletePolicyAttachment :exec
DELETE FROM "PolicyAttachmentTable"
WHERE id = $1
`

func (q *Queries) DeletePolicyAttachment(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deletePolicyAttachment, id)
	return err
}

const listTeamAliases = `-- name: ListTeamAliases :many
SELECT team_alias FROM "TeamTable" WHERE team_alias IS NOT NULL ORDER BY team_alias
`

func (q *Queries) ListTeamAliases(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listTeamAliases)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		items = append(items, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listKeyAliases = `-- name: ListKeyAliases :many
SELECT key_alias FROM "VerificationToken" WHERE key_alias IS NOT NULL ORDER BY key_alias
`

func (q *Queries) ListKeyAliases(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listKeyAliases)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		items = append(items, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const teamAliasExists = `-- name: TeamAliasExists :one
SELECT EXISTS(SELECT 1 FROM "TeamTable" WHERE team_alias = $1)
`

func (q *Queries) TeamAliasExists(ctx context.Context, alias string) (bool, error) {
	row := q.db.QueryRow(ctx, teamAliasExists, alias)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const keyAliasExists = `-- name: KeyAliasExists :one
SELECT EXISTS(SELECT 1 FROM "VerificationToken" WHERE key_alias = $1)
`

func (q *Queries) KeyAliasExists(ctx context.Context, alias string) (bool, error) {
	row := q.db.QueryRow(ctx, keyAliasExists, alias)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
