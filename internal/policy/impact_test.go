package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

type fakeAliasLister struct {
	teams []string
	keys  []string
}

func (f fakeAliasLister) ListTeamAliases(context.Context) ([]string, error) { return f.teams, nil }
func (f fakeAliasLister) ListKeyAliases(context.Context) ([]string, error)  { return f.keys, nil }

func TestEstimateImpactScoped(t *testing.T) {
	aliases := fakeAliasLister{
		teams: []string{"health-east", "health-west", "finance-core"},
		keys:  []string{"svc-batch", "svc-chat", "dev-sandbox"},
	}
	att := &model.PolicyAttachment{
		PolicyName: "strict",
		Teams:      []string{"health-*"},
		Keys:       []string{"svc-batch"},
		Models:     []string{"gpt-4*"},
	}

	est, err := EstimateImpact(context.Background(), aliases, att)
	require.NoError(t, err)
	assert.False(t, est.GlobalScope)
	assert.Equal(t, 2, est.AffectedTeams)
	assert.Equal(t, []string{"health-east", "health-west"}, est.SampleTeams)
	assert.Equal(t, 1, est.AffectedKeys)
	assert.Equal(t, []string{"svc-batch"}, est.SampleKeys)
	assert.Equal(t, []string{"gpt-4*"}, est.ModelPatterns)
}

func TestEstimateImpactGlobal(t *testing.T) {
	aliases := fakeAliasLister{teams: []string{"a", "b"}, keys: []string{"k1"}}

	for _, att := range []*model.PolicyAttachment{
		{PolicyName: "baseline", Scope: strPtr("*")},
		{PolicyName: "baseline"}, // no dimensions at all
	} {
		est, err := EstimateImpact(context.Background(), aliases, att)
		require.NoError(t, err)
		assert.True(t, est.GlobalScope)
		assert.Equal(t, 2, est.AffectedTeams)
		assert.Equal(t, 1, est.AffectedKeys)
	}
}

func TestEstimateImpactSampleCap(t *testing.T) {
	var teams []string
	for i := 0; i < 25; i++ {
		teams = append(teams, fmt.Sprintf("team-%02d", i))
	}
	aliases := fakeAliasLister{teams: teams}

	est, err := EstimateImpact(context.Background(), aliases, &model.PolicyAttachment{
		PolicyName: "p",
		Teams:      []string{"team-*"},
	})
	require.NoError(t, err)
	assert.Equal(t, 25, est.AffectedTeams)
	assert.Len(t, est.SampleTeams, impactSampleSize)
}
