package config

import (
	"github.com/BerriAI/litellm-sub032/internal/guardrail"
	"github.com/BerriAI/litellm-sub032/internal/model"
)

// EngineConfig represents the top-level policy_config.yaml structure.
// Parsing is strict: an unknown field anywhere in the document is a load
// error, never silently ignored.
type EngineConfig struct {
	ModelList       []ModelConfig            `yaml:"model_list,omitempty"`
	Guardrails      []guardrail.Config       `yaml:"guardrails,omitempty"`
	Policies        map[string]*model.Policy `yaml:"policies,omitempty"`
	Attachments     []model.PolicyAttachment `yaml:"policy_attachments,omitempty"`
	GeneralSettings GeneralSettings          `yaml:"general_settings"`
	Metrics         MetricsConfig            `yaml:"metrics,omitempty"`
	EnvironmentVars map[string]string        `yaml:"environment_variables,omitempty"`
}

// ModelConfig is one routable model entry. The policy engine only needs
// the names and tags for scope validation and tag matching.
type ModelConfig struct {
	ModelName string   `yaml:"model_name"`
	Tags      []string `yaml:"tags,omitempty"`
}

// GeneralSettings holds server-level settings.
type GeneralSettings struct {
	Port                 int    `yaml:"port,omitempty"`
	DatabaseURL          string `yaml:"database_url,omitempty"`
	PolicyReloadInterval int    `yaml:"policy_reload_interval,omitempty"` // seconds
	StoreModelInDB       bool   `yaml:"store_model_in_db,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	Port    int  `yaml:"port,omitempty"`
}

// Defaults applied after a successful parse.
const (
	DefaultPort                 = 4000
	DefaultMetricsPort          = 9090
	DefaultPolicyReloadInterval = 30
)

func setDefaults(cfg *EngineConfig) {
	if cfg.GeneralSettings.Port == 0 {
		cfg.GeneralSettings.Port = DefaultPort
	}
	if cfg.GeneralSettings.PolicyReloadInterval == 0 {
		cfg.GeneralSettings.PolicyReloadInterval = DefaultPolicyReloadInterval
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// KnownModelNames returns model_list names without wildcards.
func (c *EngineConfig) KnownModelNames() []string {
	var names []string
	for _, m := range c.ModelList {
		if !containsWildcard(m.ModelName) {
			names = append(names, m.ModelName)
		}
	}
	return names
}

// WildcardRoutes returns model_list entries containing a wildcard,
// e.g. "azure/*".
func (c *EngineConfig) WildcardRoutes() []string {
	var routes []string
	for _, m := range c.ModelList {
		if containsWildcard(m.ModelName) {
			routes = append(routes, m.ModelName)
		}
	}
	return routes
}

func containsWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '*' {
			return true
		}
	}
	return false
}
