// Package pipelineconfig holds the single immutable configuration value
// threaded down the call tree for an entire pipeline run; there is no
// package-level mutable configuration state anywhere in the module.
package pipelineconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the single value every phase reads from; it is never mutated
// once Apply has returned it.
type Config struct {
	InputDir  string
	OutputDir string
	JobFile   string

	ManifestInput  string
	ManifestOutput string
	DatabaseDir    string

	Threads int

	DebugOutput bool

	PerformRemoves   bool
	ForceRemoves     bool
	RemoveUnlisted   bool
	LoadFromDatabase bool
	SaveToDatabase   bool
	DateModifiedHash bool

	PrintMissing    bool
	PrintDuplicates bool
	PrintItemList   bool
	MuteMissing     bool
	HideProgress    bool

	MetricsAddr   string
	EventsNATSURL string

	// CrossLineageDuplicates widens duplicate detection: false (the
	// default) compares (abs_path, type) only within one source lineage.
	CrossLineageDuplicates bool
}

// operatorDefaults mirrors the subset of Config an ogda.yaml file may
// override at the operator level; CLI flags always take precedence over
// these, and these take precedence over the library defaults below.
type operatorDefaults struct {
	Threads         *int    `yaml:"threads,omitempty"`
	DatabaseDir     *string `yaml:"database_dir,omitempty"`
	MetricsAddr     *string `yaml:"metrics_addr,omitempty"`
	EventsNATSURL   *string `yaml:"events_nats_url,omitempty"`
	CrossLineageDup *bool   `yaml:"cross_lineage_duplicates,omitempty"`
}

// DefaultThreads is the hash pool's default worker count.
const DefaultThreads = 8

// loadOperatorDefaults reads an optional ogda.yaml file of operator-wide
// defaults. A missing file is not an error: it yields a zero-value
// operatorDefaults, leaving every Config field to its CLI-flag value.
func loadOperatorDefaults(path string) (operatorDefaults, error) {
	var defaults operatorDefaults
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("read operator defaults %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("parse operator defaults %s: %w", path, err)
	}
	return defaults, nil
}

// LoadEnvOverrides loads .env-style OGDA_* environment overrides before
// flag parsing.
func LoadEnvOverrides(dotenvPath string) {
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	// A missing .env file is expected in most invocations and is not fatal.
	_ = godotenv.Load(dotenvPath)
}

// Apply layers operator-wide yaml defaults (configPath) under the values
// already present on cfg (populated from CLI flags by kong), without
// overriding any flag the operator actually set. Since Config carries plain
// values rather than pointers, "already set" is approximated by treating the
// zero value as "use the default"; this matches every field configPath can
// override (thread count, database dir, metrics/events addresses, the
// duplicate-detection knob), none of which has a meaningful zero-means-set use.
func Apply(cfg Config, configPath string) (Config, error) {
	defaults, err := loadOperatorDefaults(configPath)
	if err != nil {
		return cfg, err
	}
	if cfg.Threads == 0 {
		if defaults.Threads != nil {
			cfg.Threads = *defaults.Threads
		} else {
			cfg.Threads = DefaultThreads
		}
	}
	if cfg.DatabaseDir == "" && defaults.DatabaseDir != nil {
		cfg.DatabaseDir = *defaults.DatabaseDir
	}
	if cfg.MetricsAddr == "" && defaults.MetricsAddr != nil {
		cfg.MetricsAddr = *defaults.MetricsAddr
	}
	if cfg.EventsNATSURL == "" && defaults.EventsNATSURL != nil {
		cfg.EventsNATSURL = *defaults.EventsNATSURL
	}
	if !cfg.CrossLineageDuplicates && defaults.CrossLineageDup != nil {
		cfg.CrossLineageDuplicates = *defaults.CrossLineageDup
	}
	return cfg, nil
}
