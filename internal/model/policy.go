package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Policy is a named bundle of guardrails to add/remove, with optional
// inheritance, an optional model condition, and an optional pipeline.
// Mutable only while its backing version record is a draft.
type Policy struct {
	Name        string           `json:"name" yaml:"-"`
	Inherit     *string          `json:"inherit,omitempty" yaml:"inherit,omitempty"`
	Guardrails  GuardrailSet     `json:"guardrails" yaml:"guardrails"`
	Scope       *PolicyScope     `json:"scope,omitempty" yaml:"scope,omitempty"`
	Condition   *PolicyCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Pipeline    *PipelineConfig  `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Description *string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// GuardrailSet holds the add/remove guardrail names applied during
// inheritance resolution. Add applies before Remove at each node.
type GuardrailSet struct {
	Add    []string `json:"add,omitempty" yaml:"add,omitempty"`
	Remove []string `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// PolicyScope is the legacy inline scope carried on a policy itself.
// Superseded by PolicyAttachment; still validated when present.
type PolicyScope struct {
	Teams  []string `json:"teams,omitempty" yaml:"teams,omitempty"`
	Keys   []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Models []string `json:"models,omitempty" yaml:"models,omitempty"`
}

// PolicyCondition narrows a policy's effect during resolution, after the
// policy is already attached. Patterns are tried exact-first, then as a
// full-match regex.
type PolicyCondition struct {
	Model ConditionPatterns `json:"model" yaml:"model"`
}

// ConditionPatterns accepts either a single pattern or a list of patterns
// in JSON and YAML.
type ConditionPatterns []string

func (p *ConditionPatterns) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*p = ConditionPatterns{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("condition model: expected string or list of strings")
	}
	*p = ConditionPatterns(many)
	return nil
}

func (p *ConditionPatterns) UnmarshalYAML(unmarshal func(any) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		*p = ConditionPatterns{one}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return fmt.Errorf("condition model: expected string or list of strings")
	}
	*p = ConditionPatterns(many)
	return nil
}

// PolicyAttachment binds a policy to a multi-dimensional scope,
// independently of the policy's own definition. An unset dimension
// matches every context.
type PolicyAttachment struct {
	ID         string    `json:"id,omitempty" yaml:"-"`
	PolicyName string    `json:"policy" yaml:"policy"`
	Scope      *string   `json:"scope,omitempty" yaml:"scope,omitempty"` // "*" for global
	Teams      []string  `json:"teams,omitempty" yaml:"teams,omitempty"`
	Keys       []string  `json:"keys,omitempty" yaml:"keys,omitempty"`
	Models     []string  `json:"models,omitempty" yaml:"models,omitempty"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedBy  *string   `json:"created_by,omitempty" yaml:"-"`
	CreatedAt  time.Time `json:"created_at,omitempty" yaml:"-"`
}

// PolicyMatchContext is one inbound request's identity for matching.
// All fields are optional; a nil field only matches "*" patterns.
type PolicyMatchContext struct {
	TeamAlias *string  `json:"team_alias,omitempty"`
	KeyAlias  *string  `json:"key_alias,omitempty"`
	Model     *string  `json:"model,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// AttachmentMatch records one matched policy and the scope dimension that
// matched it, e.g. "scope:*", "team:health-east", "tag:healthcare".
type AttachmentMatch struct {
	PolicyName string `json:"policy_name"`
	MatchedVia string `json:"matched_via"`
}

// ResolvedPolicy is the effective guardrail set for one policy after
// walking its inheritance chain. Derived on demand, never persisted.
type ResolvedPolicy struct {
	PolicyName       string   `json:"policy_name"`
	Guardrails       []string `json:"guardrails"`
	InheritanceChain []string `json:"inheritance_chain"` // root first
}

// Pipeline modes.
const (
	PipelineModePreCall  = "pre_call"
	PipelineModePostCall = "post_call"
)

// Pipeline step actions.
const (
	ActionAllow          = "allow"
	ActionBlock          = "block"
	ActionNext           = "next"
	ActionModifyResponse = "modify_response"
)

// PipelineConfig holds an ordered guardrail pipeline attached to a policy.
type PipelineConfig struct {
	Mode  string         `json:"mode" yaml:"mode"`
	Steps []PipelineStep `json:"steps" yaml:"steps"`
}

// PipelineStep is a single guardrail execution step with branch actions.
// Defaults: OnFail=block, OnPass=allow.
type PipelineStep struct {
	Guardrail             string `json:"guardrail" yaml:"guardrail"`
	OnPass                string `json:"on_pass,omitempty" yaml:"on_pass,omitempty"`
	OnFail                string `json:"on_fail,omitempty" yaml:"on_fail,omitempty"`
	PassData              bool   `json:"pass_data,omitempty" yaml:"pass_data,omitempty"`
	ModifyResponseMessage string `json:"modify_response_message,omitempty" yaml:"modify_response_message,omitempty"`
}

// PassAction returns the configured on_pass action or its default.
func (s PipelineStep) PassAction() string {
	if s.OnPass == "" {
		return ActionAllow
	}
	return s.OnPass
}

// FailAction returns the configured on_fail action or its default.
func (s PipelineStep) FailAction() string {
	if s.OnFail == "" {
		return ActionBlock
	}
	return s.OnFail
}

// PipelineStepResult records one executed step for observability.
type PipelineStepResult struct {
	Guardrail string        `json:"guardrail"`
	Passed    bool          `json:"passed"`
	Action    string        `json:"action"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// GuardrailAPIInputs is the payload guardrails read and may transform.
// Passed by value through the applier/pipeline and replaced wholesale at
// each successful step.
type GuardrailAPIInputs struct {
	Texts    []string           `json:"texts,omitempty"`
	Messages []GuardrailMessage `json:"messages,omitempty"`
}

// GuardrailMessage is one chat message inside GuardrailAPIInputs.
type GuardrailMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GuardrailError is a single guardrail's recorded runtime failure.
// Collected, never thrown: one bad guardrail never blocks the others.
type GuardrailError struct {
	GuardrailName string `json:"guardrail_name"`
	Message       string `json:"message"`
}
