// pkg/config/rules.go
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule validation errors
var (
	ErrInvalidThreshold      = errors.New("missing threshold must be within [0, 1]")
	ErrEmptySentinel         = errors.New("text sentinel cannot be empty")
	ErrDuplicateRenameKey    = errors.New("duplicate rename source column")
	ErrDuplicateRenameTarget = errors.New("duplicate rename target column")
	ErrChainedRename         = errors.New("rename target is also a rename source")
	ErrInvalidBucket         = errors.New("invalid bucket definition")
)

// TransformConfig holds every constant the cleaning steps depend on
type TransformConfig struct {
	MissingThreshold float64        `yaml:"missing_threshold"`
	TextSentinel     string         `yaml:"text_sentinel"`
	NumericFallback  float64        `yaml:"numeric_fallback"`
	NumericColumns   []string       `yaml:"numeric_columns"`
	LowercaseColumns []string       `yaml:"lowercase_columns"`
	ProfileColumns   []string       `yaml:"profile_columns"`
	Rename           []RenameRule   `yaml:"rename"`
	Buckets          []BucketConfig `yaml:"buckets"`
}

// RenameRule maps a raw column name to its descriptive name
type RenameRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// BucketConfig describes a derived categorical column
type BucketConfig struct {
	Name          string       `yaml:"name"`
	Source        string       `yaml:"source"`
	Fallback      string       `yaml:"fallback"`
	MissingValues []string     `yaml:"missing_values"`
	Rules         []BucketRule `yaml:"rules"`
}

// BucketRule assigns Label to any source value in Values
type BucketRule struct {
	Label  string   `yaml:"label"`
	Values []string `yaml:"values"`
}

// DefaultTransformConfig returns the built-in survey rules
func DefaultTransformConfig() (TransformConfig, error) {
	var tc TransformConfig
	if err := yaml.Unmarshal(defaultRulesYAML, &tc); err != nil {
		return TransformConfig{}, fmt.Errorf("failed to parse default rules: %w", err)
	}
	return tc, nil
}

// LoadTransformConfig reads rules from a YAML file, layered over the defaults
func LoadTransformConfig(path string) (TransformConfig, error) {
	tc, err := DefaultTransformConfig()
	if err != nil {
		return TransformConfig{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TransformConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return TransformConfig{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, &tc); err != nil {
		return TransformConfig{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if err := tc.Validate(); err != nil {
		return TransformConfig{}, err
	}
	return tc, nil
}

// Validate checks the rule tables for consistency
func (tc *TransformConfig) Validate() error {
	if tc.MissingThreshold < 0 || tc.MissingThreshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, tc.MissingThreshold)
	}
	if strings.TrimSpace(tc.TextSentinel) == "" {
		return ErrEmptySentinel
	}
	if err := validateRenames(tc.Rename); err != nil {
		return err
	}

	names := make(map[string]bool, len(tc.Buckets))
	for i, b := range tc.Buckets {
		if err := b.validate(); err != nil {
			return fmt.Errorf("bucket %d: %w", i, err)
		}
		if names[b.Name] {
			return fmt.Errorf("%w: duplicate bucket name %q", ErrInvalidBucket, b.Name)
		}
		names[b.Name] = true
	}
	return nil
}

// RenameMap returns the rename table as a lookup
func (tc *TransformConfig) RenameMap() map[string]string {
	m := make(map[string]string, len(tc.Rename))
	for _, r := range tc.Rename {
		m[r.From] = r.To
	}
	return m
}

func validateRenames(rules []RenameRule) error {
	keys := make(map[string]bool, len(rules))
	targets := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.From == "" || r.To == "" {
			return fmt.Errorf("rename rule has empty name: %q -> %q", r.From, r.To)
		}
		if keys[r.From] {
			return fmt.Errorf("%w: %q", ErrDuplicateRenameKey, r.From)
		}
		if targets[r.To] {
			return fmt.Errorf("%w: %q", ErrDuplicateRenameTarget, r.To)
		}
		keys[r.From] = true
		targets[r.To] = true
	}

	for _, r := range rules {
		if keys[r.To] {
			return fmt.Errorf("%w: %q", ErrChainedRename, r.To)
		}
	}
	return nil
}

func (b BucketConfig) validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBucket)
	}
	if b.Source == "" {
		return fmt.Errorf("%w: %s: source is required", ErrInvalidBucket, b.Name)
	}
	if b.Fallback == "" {
		return fmt.Errorf("%w: %s: fallback label is required", ErrInvalidBucket, b.Name)
	}
	if len(b.Rules) == 0 {
		return fmt.Errorf("%w: %s: at least one rule is required", ErrInvalidBucket, b.Name)
	}
	for _, r := range b.Rules {
		if r.Label == "" {
			return fmt.Errorf("%w: %s: rule label is required", ErrInvalidBucket, b.Name)
		}
		if len(r.Values) == 0 {
			return fmt.Errorf("%w: %s: rule %q has no values", ErrInvalidBucket, b.Name, r.Label)
		}
	}
	return nil
}
