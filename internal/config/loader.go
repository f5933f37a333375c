package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/terraphim/kgsearchd/internal/types"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.Roles) == 0 {
		errs = append(errs, fmt.Errorf("config: at least one role must be defined"))
	}

	if cfg.DefaultRole != "" {
		if _, ok := cfg.Roles[cfg.DefaultRole]; !ok {
			errs = append(errs, fmt.Errorf("config: default_role %q is not defined in roles", cfg.DefaultRole))
		}
	}

	for name, role := range cfg.Roles {
		prefix := fmt.Sprintf("roles[%s]", name)
		errs = append(errs, validateRole(prefix, role)...)
	}

	return errors.Join(errs...)
}

// validateRole checks a single role's coherence and returns the collected errors.
func validateRole(prefix string, role types.Role) []error {
	var errs []error

	if role.RelevanceFunction != "" && !role.RelevanceFunction.IsValid() {
		errs = append(errs, fmt.Errorf("%s.relevance_function %q is invalid", prefix, role.RelevanceFunction))
	}

	if role.KG == nil && role.TerraphimItHub == "" {
		errs = append(errs, fmt.Errorf("%s: must set either kg (local) or kg_remote_url (remote) to build a thesaurus", prefix))
	}

	if role.BlendWeight != nil && (*role.BlendWeight < 0 || *role.BlendWeight > 1) {
		errs = append(errs, fmt.Errorf("%s.blend_weight %.2f is out of range [0, 1]", prefix, *role.BlendWeight))
	}

	seenLocations := make(map[string]int, len(role.Haystacks))
	for i, h := range role.Haystacks {
		hprefix := fmt.Sprintf("%s.haystacks[%d]", prefix, i)
		if h.Location == "" {
			errs = append(errs, fmt.Errorf("%s.location is required", hprefix))
		}
		if !h.Service.IsValid() {
			errs = append(errs, fmt.Errorf("%s.service %q is invalid", hprefix, h.Service))
		}
		if prev, ok := seenLocations[h.Location]; ok {
			errs = append(errs, fmt.Errorf("%s.location %q is a duplicate of haystacks[%d]", hprefix, h.Location, prev))
		}
		seenLocations[h.Location] = i
	}

	return errs
}
