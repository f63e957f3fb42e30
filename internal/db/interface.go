package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Store defines the database operations used by the policy engine and
// its HTTP handlers. Satisfied by *Queries (compile-time check below).
type Store interface {
	// Extension methods
	Pool() *pgxpool.Pool
	Ping(ctx context.Context) error

	// Policy versions
	ClearLatestFlag(ctx context.Context, policyName string) error
	CreatePolicyVersion(ctx context.Context, arg CreatePolicyVersionParams) (PolicyVersionTable, error)
	DeletePolicyVersion(ctx context.Context, policyID string) error
	DemotePolicyVersion(ctx context.Context, policyID string) error
	GetPolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error)
	GetPolicyVersionByNameStatus(ctx context.Context, arg GetPolicyVersionByNameStatusParams) (PolicyVersionTable, error)
	LatestVersionNumber(ctx context.Context, policyName string) (int32, error)
	ListPolicyVersions(ctx context.Context, policyName string) ([]PolicyVersionTable, error)
	ListProductionPolicyVersions(ctx context.Context) ([]PolicyVersionTable, error)
	PromotePolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error)
	PublishPolicyVersion(ctx context.Context, policyID string) (PolicyVersionTable, error)
	UpdatePolicyVersionContent(ctx context.Context, arg UpdatePolicyVersionContentParams) (PolicyVersionTable, error)

	// Attachments
	CreatePolicyAttachment(ctx context.Context, arg CreatePolicyAttachmentParams) (PolicyAttachmentTable, error)
	DeletePolicyAttachment(ctx context.Context, id string) error
	GetPolicyAttachment(ctx context.Context, id string) (PolicyAttachmentTable, error)
	ListPolicyAttachments(ctx context.Context) ([]PolicyAttachmentTable, error)
	ListPolicyAttachmentsByPolicy(ctx context.Context, policyName string) ([]PolicyAttachmentTable, error)

	// Team/key aliases (shared gateway tables, read-only here)
	KeyAliasExists(ctx context.Context, alias string) (bool, error)
	ListKeyAliases(ctx context.Context) ([]string, error)
	ListTeamAliases(ctx context.Context) ([]string, error)
	TeamAliasExists(ctx context.Context, alias string) (bool, error)

	// Policy store source
	Attachments(ctx context.Context) ([]model.PolicyAttachment, error)
	ProductionPolicies(ctx context.Context) (map[string]*model.Policy, error)
}

// Compile-time check: *Queries implements Store.
var _ Store = (*Queries)(nil)
