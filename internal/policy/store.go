package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// Source supplies the production policy set and the attachment list,
// typically backed by the database. Satisfied by *db.Queries via an
// adapter in cmd wiring, or by config-file loading.
type Source interface {
	ProductionPolicies(ctx context.Context) (map[string]*model.Policy, error)
	Attachments(ctx context.Context) ([]model.PolicyAttachment, error)
}

// Store holds the active (production) policies and attachments in
// memory. All updates are full replacements: a new map or slice is built
// and swapped in under the write lock, so concurrent readers never
// observe a partially-updated structure.
type Store struct {
	mu          sync.RWMutex
	policies    map[string]*model.Policy
	attachments []model.PolicyAttachment
	initialized bool

	source Source
}

// NewStore creates an empty store. A store with no loaded policies is
// not initialized; resolution against it degrades gracefully.
func NewStore() *Store {
	return &Store{policies: make(map[string]*model.Policy)}
}

// NewStoreWithSource creates a store that Load refreshes from src.
func NewStoreWithSource(src Source) *Store {
	s := NewStore()
	s.source = src
	return s
}

// Load refreshes the store from its source. Called at startup and from
// the hot-reload scheduler job.
func (s *Store) Load(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("policy store has no source configured")
	}
	policies, err := s.source.ProductionPolicies(ctx)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	attachments, err := s.source.Attachments(ctx)
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}

	s.mu.Lock()
	s.policies = policies
	s.attachments = attachments
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// LoadPolicies replaces the whole active policy map.
func (s *Store) LoadPolicies(policies map[string]*model.Policy) {
	if policies == nil {
		policies = make(map[string]*model.Policy)
	}
	s.mu.Lock()
	s.policies = policies
	s.initialized = true
	s.mu.Unlock()
}

// LoadAttachments replaces the whole attachment list. No incremental
// edit exists; correctness relies on full replacement.
func (s *Store) LoadAttachments(attachments []model.PolicyAttachment) {
	s.mu.Lock()
	s.attachments = attachments
	s.mu.Unlock()
}

// SetPolicy swaps a single policy into the active set by building a new
// map, so readers only ever observe the fully-formed entry. Used when a
// version is promoted to production.
func (s *Store) SetPolicy(p *model.Policy) {
	s.mu.Lock()
	next := make(map[string]*model.Policy, len(s.policies)+1)
	for k, v := range s.policies {
		next[k] = v
	}
	next[p.Name] = p
	s.policies = next
	s.initialized = true
	s.mu.Unlock()
}

// RemovePolicy removes a policy from the active set, if present.
func (s *Store) RemovePolicy(name string) {
	s.mu.Lock()
	next := make(map[string]*model.Policy, len(s.policies))
	for k, v := range s.policies {
		if k != name {
			next[k] = v
		}
	}
	s.policies = next
	s.mu.Unlock()
}

// Initialized reports whether any load has completed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Policy returns one active policy by name.
func (s *Store) Policy(name string) (*model.Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[name]
	return p, ok
}

// Policies returns the current policy map snapshot. The map is replaced,
// never mutated, so callers may read it without holding the lock.
func (s *Store) Policies() map[string]*model.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policies
}

// PolicyNames returns the active policy names, sorted.
func (s *Store) PolicyNames() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.policies))
	for name := range s.policies {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (s *Store) snapshot() (map[string]*model.Policy, []model.PolicyAttachment) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policies, s.attachments
}

// AttachedPoliciesWithReasons returns the policies whose attachments
// match the context, with per-policy attribution. Multiple attachments
// resolving to the same policy are de-duplicated; order is the insertion
// order of the first match.
func (s *Store) AttachedPoliciesWithReasons(mctx model.PolicyMatchContext) []model.AttachmentMatch {
	_, attachments := s.snapshot()

	var out []model.AttachmentMatch
	seen := make(map[string]struct{})
	for _, m := range MatchAttachments(attachments, mctx) {
		if _, dup := seen[m.PolicyName]; dup {
			continue
		}
		seen[m.PolicyName] = struct{}{}
		out = append(out, m)
	}
	return out
}

// AttachedPolicies returns just the matching policy names.
func (s *Store) AttachedPolicies(mctx model.PolicyMatchContext) []string {
	matches := s.AttachedPoliciesWithReasons(mctx)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.PolicyName)
	}
	return names
}

// ResolveGuardrails resolves one policy's effective guardrails against
// the active policy set.
func (s *Store) ResolveGuardrails(name string, mctx *model.PolicyMatchContext) model.ResolvedPolicy {
	policies, _ := s.snapshot()
	return ResolveGuardrails(name, policies, mctx)
}

// ResolveGuardrailsForContext unions resolution across every policy
// attached for the context. The result is sorted for determinism.
func (s *Store) ResolveGuardrailsForContext(mctx model.PolicyMatchContext) ([]string, []model.ResolvedPolicy) {
	policies, _ := s.snapshot()

	names := s.AttachedPolicies(mctx)
	union := make(map[string]struct{})
	resolved := make([]model.ResolvedPolicy, 0, len(names))
	for _, name := range names {
		rp := ResolveGuardrails(name, policies, &mctx)
		resolved = append(resolved, rp)
		for _, g := range rp.Guardrails {
			union[g] = struct{}{}
		}
	}

	guardrails := make([]string, 0, len(union))
	for g := range union {
		guardrails = append(guardrails, g)
	}
	sort.Strings(guardrails)
	return guardrails, resolved
}

// ResolvePipelinesForContext returns the (policy, pipeline) pairs among
// the policies attached for the context.
func (s *Store) ResolvePipelinesForContext(mctx model.PolicyMatchContext) []PolicyPipeline {
	policies, _ := s.snapshot()
	return pipelinesFor(s.AttachedPolicies(mctx), policies)
}

// PipelineManagedGuardrails returns the guardrail names consumed by any
// pipeline step among the policies attached for the context. Callers
// must exclude these from independent execution so a guardrail never
// runs twice for one request.
func (s *Store) PipelineManagedGuardrails(mctx model.PolicyMatchContext) map[string]struct{} {
	return pipelineManagedGuardrails(s.ResolvePipelinesForContext(mctx))
}
