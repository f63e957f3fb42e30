package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

const impactSampleSize = 10

// AliasLister enumerates the team and key aliases currently known to
// the gateway. Satisfied by *db.Queries.
type AliasLister interface {
	ListTeamAliases(ctx context.Context) ([]string, error)
	ListKeyAliases(ctx context.Context) ([]string, error)
}

// ImpactEstimate is the blast radius of a proposed attachment: how many
// existing teams and keys its scope patterns reach, before it is saved.
type ImpactEstimate struct {
	PolicyName    string   `json:"policy_name"`
	GlobalScope   bool     `json:"global_scope"`
	AffectedTeams int      `json:"affected_team_count"`
	AffectedKeys  int      `json:"affected_key_count"`
	SampleTeams   []string `json:"sample_teams,omitempty"`
	SampleKeys    []string `json:"sample_keys,omitempty"`
	ModelPatterns []string `json:"model_patterns,omitempty"`
	TagPatterns   []string `json:"tag_patterns,omitempty"`
}

// EstimateImpact evaluates an attachment's scope patterns against the
// aliases known right now. Model and tag patterns are reported verbatim:
// the population of models in flight is not enumerable ahead of time.
func EstimateImpact(ctx context.Context, aliases AliasLister, att *model.PolicyAttachment) (ImpactEstimate, error) {
	est := ImpactEstimate{
		PolicyName:    att.PolicyName,
		ModelPatterns: att.Models,
		TagPatterns:   att.Tags,
	}
	if att.Scope != nil && *att.Scope == "*" {
		est.GlobalScope = true
	}

	unconstrained := est.GlobalScope || (len(att.Teams) == 0 && len(att.Keys) == 0 &&
		len(att.Models) == 0 && len(att.Tags) == 0)

	teams, err := aliases.ListTeamAliases(ctx)
	if err != nil {
		return est, fmt.Errorf("list team aliases: %w", err)
	}
	keys, err := aliases.ListKeyAliases(ctx)
	if err != nil {
		return est, fmt.Errorf("list key aliases: %w", err)
	}

	teamPatterns := att.Teams
	keyPatterns := att.Keys
	if unconstrained {
		est.GlobalScope = true
		teamPatterns = []string{"*"}
		keyPatterns = []string{"*"}
	}

	est.AffectedTeams, est.SampleTeams = countMatching(teams, teamPatterns)
	est.AffectedKeys, est.SampleKeys = countMatching(keys, keyPatterns)
	return est, nil
}

func countMatching(values, patterns []string) (int, []string) {
	if len(patterns) == 0 {
		return 0, nil
	}
	var matched []string
	for _, v := range values {
		v := v
		if MatchValue(&v, patterns) {
			matched = append(matched, v)
		}
	}
	sort.Strings(matched)
	count := len(matched)
	if count > impactSampleSize {
		matched = matched[:impactSampleSize]
	}
	return count, matched
}
