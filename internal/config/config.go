// Package config loads the assign CLI configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-assign"
)

// Settings backends.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the CLI configuration.
type Config struct {
	DefinitionsDir    string `yaml:"definitions_dir" env:"ASSIGN_DEFINITIONS_DIR"`
	ConsumersFile     string `yaml:"consumers_file" env:"ASSIGN_CONSUMERS_FILE"`
	LogLevel          string `yaml:"log_level" env:"ASSIGN_LOG_LEVEL"`
	Evaluator         string `yaml:"evaluator" env:"ASSIGN_EVALUATOR"`
	ReferenceWarnings bool   `yaml:"reference_warnings" env:"ASSIGN_REFERENCE_WARNINGS"`

	Settings SettingsConfig `yaml:"settings"`
	Registry RegistryConfig `yaml:"registry"`
	Host     HostConfig     `yaml:"host"`
}

// SettingsConfig selects where preferences are persisted. Path is a
// directory for the yaml backend and a database file for sqlite.
type SettingsConfig struct {
	Backend string `yaml:"backend" env:"ASSIGN_SETTINGS_BACKEND"`
	Path    string `yaml:"path" env:"ASSIGN_SETTINGS_PATH"`
}

// RegistryConfig lists the names definition references may resolve to.
// An empty registry accepts every non-empty name.
type RegistryConfig struct {
	Tags         []string `yaml:"tags,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
	Resources    []string `yaml:"resources,omitempty"`
	Variants     []string `yaml:"variants,omitempty"`
}

// Empty reports whether no names were configured.
func (r RegistryConfig) Empty() bool {
	return len(r.Tags) == 0 && len(r.Capabilities) == 0 && len(r.Resources) == 0 && len(r.Variants) == 0
}

// Build returns the Registry described by r.
func (r RegistryConfig) Build() assign.Registry {
	if r.Empty() {
		return assign.PermissiveRegistry{}
	}
	return assign.NewStaticRegistry(
		assign.WithTags(r.Tags...),
		assign.WithCapabilities(r.Capabilities...),
		assign.WithResources(r.Resources...),
		assign.WithVariants(r.Variants...),
	)
}

// HostConfig mirrors assign.HostState for hosts driven from the CLI.
type HostConfig struct {
	ClassicMode   bool `yaml:"classic_mode" env:"ASSIGN_CLASSIC_MODE"`
	OwnerAssigned bool `yaml:"owner_assigned" env:"ASSIGN_OWNER_ASSIGNED"`
}

// State returns the equivalent assign.HostState.
func (h HostConfig) State() assign.HostState {
	return assign.StaticHostState{Classic: h.ClassicMode, Assigned: h.OwnerAssigned}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		DefinitionsDir: "definitions",
		ConsumersFile:  "consumers.yaml",
		LogLevel:       "info",
		Evaluator:      assign.EngineExpr,
		Settings: SettingsConfig{
			Backend: BackendYAML,
			Path:    ".assign",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects unknown backends, engines and log levels.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DefinitionsDir) == "" {
		errs = append(errs, errors.New("definitions_dir is required"))
	}
	if !slices.Contains([]string{BackendYAML, BackendSQLite, BackendMemory}, c.Settings.Backend) {
		errs = append(errs, fmt.Errorf("unknown settings backend %q", c.Settings.Backend))
	}
	if c.Settings.Backend != BackendMemory && strings.TrimSpace(c.Settings.Path) == "" {
		errs = append(errs, fmt.Errorf("settings path is required for the %s backend", c.Settings.Backend))
	}
	if !slices.Contains([]string{assign.EngineExpr, assign.EngineCEL, assign.EngineJS}, c.Evaluator) {
		errs = append(errs, fmt.Errorf("unknown evaluator %q", c.Evaluator))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

type consumersDocument struct {
	Consumers []*assign.ConsumerDefinition `yaml:"consumers"`
}

// LoadConsumers reads the consumer list from a YAML document of the form
//
//	consumers:
//	  - identity: outlanders
//	    label: Outlander Union
//	    deny: [cannibalism]
func LoadConsumers(path string) ([]*assign.ConsumerDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read consumers: %w", err)
	}
	var doc consumersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse consumers: %w", err)
	}
	return doc.Consumers, nil
}
