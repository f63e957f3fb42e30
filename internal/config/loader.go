package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a policy_config.yaml file and returns an EngineConfig with
// environment variables resolved. Unknown fields fail the load with the
// decoder's field path, so a typo like "guardrials:" surfaces at startup
// instead of silently configuring nothing.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a config document with strict field checking.
func Parse(data []byte) (*EngineConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg EngineConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnvironmentVariables(&cfg)
	resolveEnvVars(&cfg)
	setDefaults(&cfg)

	// Policies are keyed by name in YAML; stamp the key onto each value.
	for name, p := range cfg.Policies {
		if p == nil {
			return nil, fmt.Errorf("policy %q has no body", name)
		}
		p.Name = name
	}
	return &cfg, nil
}

// applyEnvironmentVariables sets OS env vars from the config's
// environment_variables section.
func applyEnvironmentVariables(cfg *EngineConfig) {
	for k, v := range cfg.EnvironmentVars {
		os.Setenv(k, ResolveEnvVar(v))
	}
}

func resolveEnvVars(cfg *EngineConfig) {
	cfg.GeneralSettings.DatabaseURL = ResolveEnvVar(cfg.GeneralSettings.DatabaseURL)
	for i := range cfg.Guardrails {
		g := &cfg.Guardrails[i]
		g.APIBase = ResolveEnvVar(g.APIBase)
		for k, v := range g.Headers {
			g.Headers[k] = ResolveEnvVar(v)
		}
	}
}

// ResolveEnvVar resolves a value that may reference an environment
// variable using the "os.environ/VAR_NAME" syntax.
func ResolveEnvVar(value string) string {
	if envKey, ok := strings.CutPrefix(value, "os.environ/"); ok {
		if v, found := os.LookupEnv(envKey); found {
			return v
		}
		return ""
	}
	return value
}
