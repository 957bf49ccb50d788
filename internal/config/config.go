// Package config handles pipeline configuration loading for conveyor.
// It supports a project-level conveyor.yaml, explicit file paths, and
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/forgefleet/conveyor/internal/runner"
)

// Config holds the full pipeline configuration.
type Config struct {
	// Mappings are the ordered runner mapping rules.
	Mappings []runner.Rule `mapstructure:"mappings"`
	// Bootstrap lists optional barrier phases built before the main graph.
	Bootstrap []BootstrapPhase `mapstructure:"bootstrap"`
	// Mirrors configures the artifact mirrors.
	Mirrors MirrorsConfig `mapstructure:"mirrors"`
	// Report configures the build-report service.
	Report ReportConfig `mapstructure:"report"`
	// Signing configures artifact signing.
	Signing SigningConfig `mapstructure:"signing"`
	// ArtifactPaths are the job artifact paths kept by the CI system.
	ArtifactPaths []string `mapstructure:"artifact_paths"`
}

// BootstrapPhase declares one bootstrap phase by name. The named spec list
// comes from the release set file.
type BootstrapPhase struct {
	// Name is the spec list name in the release set.
	Name string `mapstructure:"name"`
	// CompilerAgnostic strips compiler attributes for this phase.
	CompilerAgnostic bool `mapstructure:"compiler-agnostic"`
}

// MirrorsConfig holds mirror locations. Remote is where published entries
// are checked and uploaded; Local is the per-job scratch mirror directory.
type MirrorsConfig struct {
	Remote string `mapstructure:"remote"`
	Local  string `mapstructure:"local"`
}

// ReportConfig holds build-report service settings.
type ReportConfig struct {
	// Enabled toggles all reporting.
	Enabled bool `mapstructure:"enabled"`
	// URL is the report service base URL.
	URL string `mapstructure:"url"`
	// Project is the report project name.
	Project string `mapstructure:"project"`
	// Site identifies the submitting site.
	Site string `mapstructure:"site"`
	// BuildGroup is the build group jobs are registered under.
	BuildGroup string `mapstructure:"build_group"`
	// Token authenticates build group administration calls.
	Token string `mapstructure:"token"`
}

// SigningConfig holds the signing key material.
type SigningConfig struct {
	// Key is the base64-encoded signing key, usually injected through
	// CONVEYOR_SIGNING_KEY rather than written to disk.
	Key string `mapstructure:"key"`
}

// Load reads configuration from the given path, or from conveyor.yaml in
// the current directory or a parent when path is empty. Environment
// variables override credential fields.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path == "" {
		path = findProjectConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("no conveyor.yaml found in this directory or any parent")
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Credentials come from the environment in CI.
	v.BindEnv("signing.key", "CONVEYOR_SIGNING_KEY")
	v.BindEnv("report.token", "CONVEYOR_REPORT_TOKEN")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Signing.Key = os.ExpandEnv(cfg.Signing.Key)
	cfg.Report.Token = os.ExpandEnv(cfg.Report.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration once at load time, so later stages can
// assume a well-formed config.
func (c *Config) Validate() error {
	if len(c.Mappings) == 0 {
		return fmt.Errorf("config: at least one runner mapping is required")
	}
	for i, rule := range c.Mappings {
		if len(rule.Match) == 0 {
			return fmt.Errorf("config: mapping %d has no match constraints", i)
		}
		if len(rule.RunnerAttributes.Tags) == 0 {
			return fmt.Errorf("config: mapping %d has no runner tags", i)
		}
	}
	if c.Mirrors.Remote == "" {
		return fmt.Errorf("config: mirrors.remote is required")
	}
	for _, phase := range c.Bootstrap {
		if phase.Name == "" {
			return fmt.Errorf("config: bootstrap phase without a name")
		}
	}
	if c.Report.Enabled {
		if c.Report.URL == "" || c.Report.Project == "" || c.Report.Site == "" || c.Report.BuildGroup == "" {
			return fmt.Errorf("config: report.url, report.project, report.site and report.build_group are required when reporting is enabled")
		}
	}
	return nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mirrors.local", "local_mirror")
	v.SetDefault("report.enabled", false)
	v.SetDefault("artifact_paths", []string{
		"jobs_scratch_dir",
		"local_mirror/build_cache",
	})
}

// findProjectConfig searches for conveyor.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, "conveyor.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
