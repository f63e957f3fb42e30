package guardrail

import "fmt"

// Guardrail modes accepted in config.
const (
	ModeWebhook       = "webhook"
	ModeContentFilter = "content_filter"
)

// Config declares one guardrail in the gateway config file.
type Config struct {
	Name      string            `yaml:"guardrail_name" json:"guardrail_name"`
	Mode      string            `yaml:"mode" json:"mode"`
	APIBase   string            `yaml:"api_base,omitempty" json:"api_base,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Threshold int               `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// NewFromConfig builds a guardrail from one config entry.
func NewFromConfig(cfg Config) (Guardrail, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("guardrail config: guardrail_name is required")
	}
	switch cfg.Mode {
	case ModeWebhook:
		if cfg.APIBase == "" {
			return nil, fmt.Errorf("guardrail %q: webhook mode requires api_base", cfg.Name)
		}
		return NewWebhook(cfg.Name, cfg.APIBase, cfg.Headers), nil
	case ModeContentFilter:
		threshold := cfg.Threshold
		if threshold == 0 {
			threshold = 1
		}
		return NewContentFilter(cfg.Name, threshold), nil
	default:
		return nil, fmt.Errorf("guardrail %q: unknown mode %q", cfg.Name, cfg.Mode)
	}
}

// RegisterFromConfigs builds and registers every configured guardrail.
// The first bad entry aborts registration.
func RegisterFromConfigs(r *Registry, cfgs []Config) error {
	for _, cfg := range cfgs {
		g, err := NewFromConfig(cfg)
		if err != nil {
			return err
		}
		r.Register(g)
	}
	return nil
}
