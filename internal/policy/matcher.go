package policy

import (
	"strings"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// MatchValue reports whether value matches any pattern. "*" matches
// anything; a trailing "*" matches by prefix; otherwise exact equality.
// A nil value matches only when patterns contain "*". Pure.
func MatchValue(value *string, patterns []string) bool {
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if value == nil {
			continue
		}
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(*value, strings.TrimSuffix(p, "*")) {
				return true
			}
		} else if p == *value {
			return true
		}
	}
	return false
}

// matchTags applies OR semantics within the tags dimension: the context
// matches if any context tag matches any pattern. A "*" pattern matches
// even a context with no tags. Returns the matched tag for attribution.
func matchTags(patterns []string, tags []string) (string, bool) {
	for _, p := range patterns {
		if p == "*" {
			return "*", true
		}
	}
	for _, tag := range tags {
		if MatchValue(&tag, patterns) {
			return tag, true
		}
	}
	return "", false
}

// MatchAttachments returns every attachment matching the context, with
// attribution, preserving attachment order. Dimensions AND together;
// an attachment with no dimensions set matches every context.
func MatchAttachments(attachments []model.PolicyAttachment, mctx model.PolicyMatchContext) []model.AttachmentMatch {
	var matched []model.AttachmentMatch
	for _, a := range attachments {
		if via, ok := matchAttachment(a, mctx); ok {
			matched = append(matched, model.AttachmentMatch{PolicyName: a.PolicyName, MatchedVia: via})
		}
	}
	return matched
}

func matchAttachment(a model.PolicyAttachment, mctx model.PolicyMatchContext) (string, bool) {
	if a.Scope != nil && *a.Scope == "*" {
		return "scope:*", true
	}

	// Every specified dimension must match; unset dimensions match all.
	if len(a.Teams) > 0 && !MatchValue(mctx.TeamAlias, a.Teams) {
		return "", false
	}
	if len(a.Keys) > 0 && !MatchValue(mctx.KeyAlias, a.Keys) {
		return "", false
	}
	if len(a.Models) > 0 && !MatchValue(mctx.Model, a.Models) {
		return "", false
	}
	var matchedTag string
	if len(a.Tags) > 0 {
		tag, ok := matchTags(a.Tags, mctx.Tags)
		if !ok {
			return "", false
		}
		matchedTag = tag
	}

	// Attribute the match to the most specific constrained dimension.
	switch {
	case len(a.Teams) > 0 && mctx.TeamAlias != nil:
		return "team:" + *mctx.TeamAlias, true
	case len(a.Keys) > 0 && mctx.KeyAlias != nil:
		return "key:" + *mctx.KeyAlias, true
	case len(a.Models) > 0 && mctx.Model != nil:
		return "model:" + *mctx.Model, true
	case len(a.Tags) > 0:
		return "tag:" + matchedTag, true
	case len(a.Teams)+len(a.Keys)+len(a.Models) > 0:
		// Constrained dimensions matched via "*" against absent context fields.
		return "scope:*", true
	default:
		return "default:*", true
	}
}
