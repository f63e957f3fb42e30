package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// ContentFilter is a built-in keyword filter using regex categories.
type ContentFilter struct {
	name       string
	categories map[string]*regexp.Regexp
	threshold  int // 0=off, higher = stricter
}

// NewContentFilter creates a content filter with default patterns.
func NewContentFilter(name string, threshold int) *ContentFilter {
	if name == "" {
		name = "content_filter"
	}
	return &ContentFilter{
		name: name,
		categories: map[string]*regexp.Regexp{
			"violence":  regexp.MustCompile(`(?i)\b(kill|murder|assault|weapon|bomb|attack|shoot|stab)\b`),
			"hate":      regexp.MustCompile(`(?i)\b(slur|racist|bigot|discriminat|supremac)\b`),
			"self_harm": regexp.MustCompile(`(?i)\b(suicide|self.harm|cut\s+my|end\s+my\s+life)\b`),
			"sexual":    regexp.MustCompile(`(?i)\b(explicit|pornograph|sexual\s+content)\b`),
		},
		threshold: threshold,
	}
}

func (c *ContentFilter) Name() string { return c.name }

func (c *ContentFilter) SupportedHooks() []Hook { return []Hook{HookPreCall, HookPostCall} }

func (c *ContentFilter) flagged(inputs model.GuardrailAPIInputs) []string {
	var content strings.Builder
	for _, t := range inputs.Texts {
		content.WriteString(t)
		content.WriteByte('\n')
	}
	for _, m := range inputs.Messages {
		content.WriteString(m.Content)
		content.WriteByte('\n')
	}

	var flagged []string
	for category, pattern := range c.categories {
		if pattern.MatchString(content.String()) {
			flagged = append(flagged, category)
		}
	}
	return flagged
}

func (c *ContentFilter) Check(_ context.Context, _ Hook, inputs model.GuardrailAPIInputs) (Result, error) {
	if c.threshold == 0 {
		return Result{Passed: true}, nil
	}
	if flagged := c.flagged(inputs); len(flagged) > 0 {
		return Result{
			Passed:  false,
			Message: fmt.Sprintf("content flagged: %s", strings.Join(flagged, ", ")),
		}, nil
	}
	return Result{Passed: true}, nil
}

// Apply blocks flagged content; clean content passes through unchanged.
func (c *ContentFilter) Apply(_ context.Context, inputs model.GuardrailAPIInputs, _ map[string]any, _ string) (model.GuardrailAPIInputs, error) {
	if c.threshold == 0 {
		return inputs, nil
	}
	if flagged := c.flagged(inputs); len(flagged) > 0 {
		return inputs, &BlockedError{
			GuardrailName: c.name,
			Message:       fmt.Sprintf("content flagged: %s", strings.Join(flagged, ", ")),
		}
	}
	return inputs, nil
}
