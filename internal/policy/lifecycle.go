package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BerriAI/litellm-sub032/internal/db"
	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Lifecycle-contract violations. Hard failures: the write is stopped
// and persisted/active state is left unchanged.
var (
	ErrVersionNotFound   = errors.New("policy version not found")
	ErrNotDraft          = errors.New("only draft versions can be edited")
	ErrInvalidTransition = errors.New("invalid version status transition")
)

// VersionStore is the persistence needed by the lifecycle manager.
// Satisfied by *db.Queries.
type VersionStore interface {
	ClearLatestFlag(ctx context.Context, policyName string) error
	CreatePolicyVersion(ctx context.Context, arg db.CreatePolicyVersionParams) (db.PolicyVersionTable, error)
	DeletePolicyVersion(ctx context.Context, policyID string) error
	DemotePolicyVersion(ctx context.Context, policyID string) error
	GetPolicyVersion(ctx context.Context, policyID string) (db.PolicyVersionTable, error)
	GetPolicyVersionByNameStatus(ctx context.Context, arg db.GetPolicyVersionByNameStatusParams) (db.PolicyVersionTable, error)
	LatestVersionNumber(ctx context.Context, policyName string) (int32, error)
	ListPolicyVersions(ctx context.Context, policyName string) ([]db.PolicyVersionTable, error)
	PromotePolicyVersion(ctx context.Context, policyID string) (db.PolicyVersionTable, error)
	PublishPolicyVersion(ctx context.Context, policyID string) (db.PolicyVersionTable, error)
	UpdatePolicyVersionContent(ctx context.Context, arg db.UpdatePolicyVersionContentParams) (db.PolicyVersionTable, error)
}

// Lifecycle owns the draft → published → production state machine and
// the swap into the active store. Writes for the same policy name are
// serialized with a per-name mutex: promote is a read-demote-write
// sequence that is not otherwise atomic against a concurrent promotion.
type Lifecycle struct {
	store *Store
	db    VersionStore

	mu    sync.Mutex
	names map[string]*sync.Mutex
}

// NewLifecycle creates a lifecycle manager writing through to vs and
// swapping promoted versions into store.
func NewLifecycle(store *Store, vs VersionStore) *Lifecycle {
	return &Lifecycle{store: store, db: vs, names: make(map[string]*sync.Mutex)}
}

func (l *Lifecycle) nameLock(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.names[name]
	if !ok {
		m = &sync.Mutex{}
		l.names[name] = m
	}
	return m
}

func (l *Lifecycle) get(ctx context.Context, policyID string) (db.PolicyVersionTable, error) {
	row, err := l.db.GetPolicyVersion(ctx, policyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return row, fmt.Errorf("version %q: %w", policyID, ErrVersionNotFound)
	}
	return row, err
}

func marshalContent(cond *model.PolicyCondition, pipeline *model.PipelineConfig) (condJSON, pipelineJSON []byte, err error) {
	if cond != nil {
		if condJSON, err = json.Marshal(cond); err != nil {
			return nil, nil, fmt.Errorf("marshal condition: %w", err)
		}
	}
	if pipeline != nil {
		if pipelineJSON, err = json.Marshal(pipeline); err != nil {
			return nil, nil, fmt.Errorf("marshal pipeline: %w", err)
		}
	}
	return condJSON, pipelineJSON, nil
}

// CreateVersion creates a new draft. With SourceVersionID set, every
// content field is copied from the source version into a max+1 draft
// whose parent_version_id points at the source; otherwise the request's
// policy body seeds version max+1 (1 for a new name). The active store
// is untouched until the draft is eventually promoted.
func (l *Lifecycle) CreateVersion(ctx context.Context, req model.CreatePolicyVersionRequest) (model.PolicyVersion, error) {
	name := req.PolicyName
	var content model.Policy
	var parent *string

	if req.SourceVersionID != nil {
		src, err := l.get(ctx, *req.SourceVersionID)
		if err != nil {
			return model.PolicyVersion{}, err
		}
		content, err = src.Policy()
		if err != nil {
			return model.PolicyVersion{}, err
		}
		name = src.PolicyName
		parent = &src.PolicyID
	} else {
		if name == "" {
			return model.PolicyVersion{}, fmt.Errorf("policy_name is required")
		}
		if req.Policy != nil {
			content = *req.Policy
		}
	}

	lock := l.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	latest, err := l.db.LatestVersionNumber(ctx, name)
	if err != nil {
		return model.PolicyVersion{}, fmt.Errorf("latest version for %q: %w", name, err)
	}

	condJSON, pipelineJSON, err := marshalContent(content.Condition, content.Pipeline)
	if err != nil {
		return model.PolicyVersion{}, err
	}

	if err := l.db.ClearLatestFlag(ctx, name); err != nil {
		return model.PolicyVersion{}, fmt.Errorf("clear latest flag for %q: %w", name, err)
	}

	row, err := l.db.CreatePolicyVersion(ctx, db.CreatePolicyVersionParams{
		PolicyID:         uuid.New().String(),
		PolicyName:       name,
		VersionNumber:    latest + 1,
		ParentVersionID:  parent,
		Inherit:          content.Inherit,
		GuardrailsAdd:    content.Guardrails.Add,
		GuardrailsRemove: content.Guardrails.Remove,
		Condition:        condJSON,
		Pipeline:         pipelineJSON,
		Description:      content.Description,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		return model.PolicyVersion{}, fmt.Errorf("create version of %q: %w", name, err)
	}
	return row.Version()
}

// EditVersion updates content fields of a draft. Editing a published or
// production version fails without touching storage. Nil request fields
// are left unchanged.
func (l *Lifecycle) EditVersion(ctx context.Context, policyID string, req model.UpdatePolicyVersionRequest) (model.PolicyVersion, error) {
	row, err := l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}

	lock := l.nameLock(row.PolicyName)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent publish may have moved the
	// status between the first read and here.
	row, err = l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}
	if row.VersionStatus != model.VersionStatusDraft {
		return model.PolicyVersion{}, fmt.Errorf("version %d of %q has status %q: %w",
			row.VersionNumber, row.PolicyName, row.VersionStatus, ErrNotDraft)
	}

	current, err := row.Policy()
	if err != nil {
		return model.PolicyVersion{}, err
	}
	if req.Inherit != nil {
		current.Inherit = req.Inherit
	}
	if req.Guardrails != nil {
		current.Guardrails = *req.Guardrails
	}
	if req.Condition != nil {
		current.Condition = req.Condition
	}
	if req.Pipeline != nil {
		current.Pipeline = req.Pipeline
	}
	if req.Description != nil {
		current.Description = req.Description
	}

	condJSON, pipelineJSON, err := marshalContent(current.Condition, current.Pipeline)
	if err != nil {
		return model.PolicyVersion{}, err
	}

	updated, err := l.db.UpdatePolicyVersionContent(ctx, db.UpdatePolicyVersionContentParams{
		PolicyID:         policyID,
		Inherit:          current.Inherit,
		GuardrailsAdd:    current.Guardrails.Add,
		GuardrailsRemove: current.Guardrails.Remove,
		Condition:        condJSON,
		Pipeline:         pipelineJSON,
		Description:      current.Description,
		UpdatedBy:        req.UpdatedBy,
	})
	if err != nil {
		return model.PolicyVersion{}, fmt.Errorf("update version %q: %w", policyID, err)
	}
	return updated.Version()
}

// Publish moves a draft to published and stamps published_at.
func (l *Lifecycle) Publish(ctx context.Context, policyID string) (model.PolicyVersion, error) {
	row, err := l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}

	lock := l.nameLock(row.PolicyName)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the status may have moved.
	row, err = l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}
	if row.VersionStatus != model.VersionStatusDraft {
		return model.PolicyVersion{}, fmt.Errorf("cannot publish version %d of %q: status is %q, expected %q: %w",
			row.VersionNumber, row.PolicyName, row.VersionStatus, model.VersionStatusDraft, ErrInvalidTransition)
	}

	published, err := l.db.PublishPolicyVersion(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, fmt.Errorf("publish version %q: %w", policyID, err)
	}
	return published.Version()
}

// Promote moves a published version to production: the record currently
// holding production for the same name is demoted back to published,
// the new record is stamped, and the active store entry is swapped.
// Readers never observe zero or two production policies for one name.
// A draft cannot be promoted directly.
func (l *Lifecycle) Promote(ctx context.Context, policyID string) (model.PolicyVersion, error) {
	row, err := l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}

	lock := l.nameLock(row.PolicyName)
	lock.Lock()
	defer lock.Unlock()

	row, err = l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}
	switch row.VersionStatus {
	case model.VersionStatusPublished:
		// eligible
	case model.VersionStatusDraft:
		return model.PolicyVersion{}, fmt.Errorf("cannot promote version %d of %q: status is %q, publish it first: %w",
			row.VersionNumber, row.PolicyName, row.VersionStatus, ErrInvalidTransition)
	default:
		return model.PolicyVersion{}, fmt.Errorf("cannot promote version %d of %q: status is %q: %w",
			row.VersionNumber, row.PolicyName, row.VersionStatus, ErrInvalidTransition)
	}

	prior, err := l.db.GetPolicyVersionByNameStatus(ctx, db.GetPolicyVersionByNameStatusParams{
		PolicyName:    row.PolicyName,
		VersionStatus: model.VersionStatusProduction,
	})
	switch {
	case err == nil:
		if err := l.db.DemotePolicyVersion(ctx, prior.PolicyID); err != nil {
			return model.PolicyVersion{}, fmt.Errorf("demote version %q: %w", prior.PolicyID, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first promotion for this name
	default:
		return model.PolicyVersion{}, fmt.Errorf("find production version of %q: %w", row.PolicyName, err)
	}

	promoted, err := l.db.PromotePolicyVersion(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, fmt.Errorf("promote version %q: %w", policyID, err)
	}

	p, err := promoted.Policy()
	if err != nil {
		return model.PolicyVersion{}, err
	}
	if l.store != nil {
		l.store.SetPolicy(&p)
	}
	return promoted.Version()
}

// DeleteVersion removes a version record. Deleting the production
// version removes the policy from the active store and returns a
// caller-visible warning; deleting a draft or published version is
// silent.
func (l *Lifecycle) DeleteVersion(ctx context.Context, policyID string) (model.DeleteVersionResult, error) {
	row, err := l.get(ctx, policyID)
	if err != nil {
		return model.DeleteVersionResult{}, err
	}

	lock := l.nameLock(row.PolicyName)
	lock.Lock()
	defer lock.Unlock()

	if err := l.db.DeletePolicyVersion(ctx, policyID); err != nil {
		return model.DeleteVersionResult{}, fmt.Errorf("delete version %q: %w", policyID, err)
	}

	result := model.DeleteVersionResult{PolicyID: policyID, Deleted: true}
	if row.VersionStatus == model.VersionStatusProduction {
		if l.store != nil {
			l.store.RemovePolicy(row.PolicyName)
		}
		result.Warning = fmt.Sprintf("policy %q no longer has a production version and is no longer enforced", row.PolicyName)
	}
	return result, nil
}

// GetVersion returns one version by id.
func (l *Lifecycle) GetVersion(ctx context.Context, policyID string) (model.PolicyVersion, error) {
	row, err := l.get(ctx, policyID)
	if err != nil {
		return model.PolicyVersion{}, err
	}
	return row.Version()
}

// ListVersions returns all versions of a policy name, newest first.
func (l *Lifecycle) ListVersions(ctx context.Context, policyName string) ([]model.PolicyVersion, error) {
	rows, err := l.db.ListPolicyVersions(ctx, policyName)
	if err != nil {
		return nil, err
	}
	versions := make([]model.PolicyVersion, 0, len(rows))
	for _, row := range rows {
		v, err := row.Version()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// CompareVersions diffs the content fields of two versions of the same
// policy name.
func (l *Lifecycle) CompareVersions(ctx context.Context, fromID, toID string) (model.VersionComparison, error) {
	from, err := l.get(ctx, fromID)
	if err != nil {
		return model.VersionComparison{}, err
	}
	to, err := l.get(ctx, toID)
	if err != nil {
		return model.VersionComparison{}, err
	}
	if from.PolicyName != to.PolicyName {
		return model.VersionComparison{}, fmt.Errorf("cannot compare versions of different policies %q and %q", from.PolicyName, to.PolicyName)
	}

	fromPolicy, err := from.Policy()
	if err != nil {
		return model.VersionComparison{}, err
	}
	toPolicy, err := to.Policy()
	if err != nil {
		return model.VersionComparison{}, err
	}

	cmp := model.VersionComparison{
		PolicyName:  from.PolicyName,
		FromVersion: from.VersionNumber,
		ToVersion:   to.VersionNumber,
		Differences: []model.VersionFieldDiff{},
	}
	fields := []struct {
		name     string
		from, to any
	}{
		{"inherit", fromPolicy.Inherit, toPolicy.Inherit},
		{"guardrails.add", fromPolicy.Guardrails.Add, toPolicy.Guardrails.Add},
		{"guardrails.remove", fromPolicy.Guardrails.Remove, toPolicy.Guardrails.Remove},
		{"condition", fromPolicy.Condition, toPolicy.Condition},
		{"pipeline", fromPolicy.Pipeline, toPolicy.Pipeline},
		{"description", fromPolicy.Description, toPolicy.Description},
	}
	for _, f := range fields {
		if !reflect.DeepEqual(f.from, f.to) {
			cmp.Differences = append(cmp.Differences, model.VersionFieldDiff{Field: f.name, From: f.from, To: f.to})
		}
	}
	return cmp, nil
}
