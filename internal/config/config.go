// Package config holds the runtime configuration for branchweight and its
// file/env/flag loading.
package config

import "errors"

// Default values applied when neither config file, environment nor flags
// set them.
const (
	DefaultOutputDir       = "branchweight-reports"
	DefaultTopBreakdown    = 0
	DefaultTableLimit      = 0
	DefaultPromptThreshold = 100

	// DefaultWorkers of zero means one worker per CPU.
	DefaultWorkers = 0
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("workers must be non-negative")
	// ErrInvalidTop indicates the breakdown count is negative.
	ErrInvalidTop = errors.New("top must be non-negative")
	// ErrInvalidLimit indicates the table row limit is negative.
	ErrInvalidLimit = errors.New("limit must be non-negative")
	// ErrEmptyOutputDir indicates no report directory is configured.
	ErrEmptyOutputDir = errors.New("output.dir must not be empty")
)

// Config is the top-level configuration struct for branchweight.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Repo          string              `mapstructure:"repo"`
	Workers       int                 `mapstructure:"workers"`
	Output        OutputConfig        `mapstructure:"output"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// OutputConfig controls report files and terminal rendering.
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Top     int    `mapstructure:"top"`
	Limit   int    `mapstructure:"limit"`
	Plot    bool   `mapstructure:"plot"`
	NoColor bool   `mapstructure:"no_color"`
}

// ObservabilityConfig holds telemetry endpoints and log verbosity.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	LogLevel     string `mapstructure:"log_level"`
	Environment  string `mapstructure:"environment"`
}

// Validate checks value ranges. Zero workers means one per CPU.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Output.Top < 0 {
		return ErrInvalidTop
	}

	if c.Output.Limit < 0 {
		return ErrInvalidLimit
	}

	if c.Output.Dir == "" {
		return ErrEmptyOutputDir
	}

	return nil
}
