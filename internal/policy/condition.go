package policy

import (
	"regexp"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// EvaluateCondition reports whether a policy's own model condition holds
// for the context. A nil condition always matches. Each pattern is tried
// for exact equality first, then as an anchored regex. A nil context
// model never matches a non-nil condition.
//
// Invalid regex syntax is treated as "no match" here; the validator
// rejects such patterns before a config activates, so this path only
// protects records that predate that check.
func EvaluateCondition(cond *model.PolicyCondition, mctx model.PolicyMatchContext) bool {
	if cond == nil || len(cond.Model) == 0 {
		return true
	}
	if mctx.Model == nil {
		return false
	}
	for _, pattern := range cond.Model {
		if pattern == *mctx.Model {
			return true
		}
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			continue
		}
		if re.MatchString(*mctx.Model) {
			return true
		}
	}
	return false
}

// ValidateConditionPatterns pre-compiles every pattern and returns the
// first invalid one, if any. Used by the validator to surface bad regex
// as a config error instead of a silent request-time non-match.
func ValidateConditionPatterns(patterns []string) (string, error) {
	for _, pattern := range patterns {
		if _, err := regexp.Compile("^(?:" + pattern + ")$"); err != nil {
			return pattern, err
		}
	}
	return "", nil
}
