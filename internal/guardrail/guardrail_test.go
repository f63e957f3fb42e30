package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

type staticGuardrail struct {
	name     string
	result   Result
	err      error
	lastHook Hook
}

func (s *staticGuardrail) Name() string           { return s.name }
func (s *staticGuardrail) SupportedHooks() []Hook { return []Hook{HookPreCall} }
func (s *staticGuardrail) Check(_ context.Context, hook Hook, _ model.GuardrailAPIInputs) (Result, error) {
	s.lastHook = hook
	return s.result, s.err
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&staticGuardrail{name: "pii"})
	r.Register(&staticGuardrail{name: "toxicity"})

	g, ok := r.Get("pii")
	require.True(t, ok)
	assert.Equal(t, "pii", g.Name())

	_, ok = r.Get("ghost")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"pii", "toxicity"}, r.Names())

	// Re-registering replaces.
	replacement := &staticGuardrail{name: "pii", result: Result{Passed: true}}
	r.Register(replacement)
	g, _ = r.Get("pii")
	assert.Same(t, replacement, g.(*staticGuardrail))
}

func TestRegistryCheck(t *testing.T) {
	inputs := model.GuardrailAPIInputs{Texts: []string{"hello"}}
	masked := model.GuardrailAPIInputs{Texts: []string{"[MASKED]"}}

	r := NewRegistry()
	passing := &staticGuardrail{name: "pass", result: Result{Passed: true}}
	r.Register(passing)
	r.Register(&staticGuardrail{name: "rewrite", result: Result{Passed: true, ModifiedInputs: &masked}})
	r.Register(&staticGuardrail{name: "fail", result: Result{Passed: false, Message: "nope"}})
	r.Register(&staticGuardrail{name: "broken", err: errors.New("upstream down")})

	passed, msg, out, err := r.Check(context.Background(), "pass", "pre_call", inputs)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Empty(t, msg)
	assert.Equal(t, inputs, out)
	assert.Equal(t, HookPreCall, passing.lastHook)

	passed, _, out, err = r.Check(context.Background(), "rewrite", "pre_call", inputs)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Equal(t, masked, out)

	passed, msg, _, err = r.Check(context.Background(), "fail", "pre_call", inputs)
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Equal(t, "nope", msg)

	passed, _, out, err = r.Check(context.Background(), "broken", "pre_call", inputs)
	require.Error(t, err)
	assert.False(t, passed)
	assert.Equal(t, inputs, out)

	passed, _, _, err = r.Check(context.Background(), "ghost", "pre_call", inputs)
	require.Error(t, err)
	assert.False(t, passed)
}

func TestRegistryCheckHookSelection(t *testing.T) {
	r := NewRegistry()
	g := &staticGuardrail{name: "toxicity", result: Result{Passed: true}}
	r.Register(g)

	_, _, _, err := r.Check(context.Background(), "toxicity", "post_call", model.GuardrailAPIInputs{})
	require.NoError(t, err)
	assert.Equal(t, HookPostCall, g.lastHook)

	// Empty hook defaults to pre-call.
	_, _, _, err = r.Check(context.Background(), "toxicity", "", model.GuardrailAPIInputs{})
	require.NoError(t, err)
	assert.Equal(t, HookPreCall, g.lastHook)
}

func TestBlockedError(t *testing.T) {
	err := &BlockedError{GuardrailName: "pii", Message: "ssn detected"}
	assert.Contains(t, err.Error(), "pii")
	assert.Contains(t, err.Error(), "ssn detected")
}

func TestNewFromConfig(t *testing.T) {
	g, err := NewFromConfig(Config{Name: "hook", Mode: ModeWebhook, APIBase: "http://guard.local/check"})
	require.NoError(t, err)
	assert.Equal(t, "hook", g.Name())
	_, isApplier := g.(Applier)
	assert.True(t, isApplier)

	g, err = NewFromConfig(Config{Name: "filter", Mode: ModeContentFilter})
	require.NoError(t, err)
	assert.Equal(t, "filter", g.Name())

	_, err = NewFromConfig(Config{Name: "hook", Mode: ModeWebhook})
	assert.Error(t, err)

	_, err = NewFromConfig(Config{Mode: ModeContentFilter})
	assert.Error(t, err)

	_, err = NewFromConfig(Config{Name: "x", Mode: "llm_judge"})
	assert.Error(t, err)
}

func TestRegisterFromConfigs(t *testing.T) {
	r := NewRegistry()
	err := RegisterFromConfigs(r, []Config{
		{Name: "filter", Mode: ModeContentFilter},
		{Name: "hook", Mode: ModeWebhook, APIBase: "http://guard.local/check"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"filter", "hook"}, r.Names())

	err = RegisterFromConfigs(NewRegistry(), []Config{{Name: "bad", Mode: "nope"}})
	assert.Error(t, err)
}
