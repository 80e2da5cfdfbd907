// Package config handles YAML configuration for kartta.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Run      RunConfig      `yaml:"run"`
	Output   OutputConfig   `yaml:"output"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	OTEL     OTELConfig     `yaml:"otel"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds mapping-service settings.
type APIConfig struct {
	BaseURL            string `yaml:"base_url"`
	TimeoutStr         string        `yaml:"timeout"`
	Timeout            time.Duration `yaml:"-"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// RunConfig holds the default run parameters; CLI flags override them.
type RunConfig struct {
	AppCode string `yaml:"app_code"`
	Segment string `yaml:"segment"`
	Month   string `yaml:"month"`
}

// OutputConfig holds filesystem destinations.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	LogDir      string `yaml:"log_dir"`
	RunLogDir   string `yaml:"runlog_dir"`
	MetricsFile string `yaml:"metrics_file"`
}

// NewRelicConfig holds account-lookup settings. The API key itself
// comes from the environment, never from the file.
type NewRelicConfig struct {
	URL              string `yaml:"url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	DisabledSentinel string `yaml:"disabled_sentinel"`
	TimeoutStr       string        `yaml:"timeout"`
	Timeout          time.Duration `yaml:"-"`
}

// OTELConfig holds OpenTelemetry export settings.
type OTELConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.parseTimeouts(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	_ = cfg.parseTimeouts()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.TimeoutStr == "" {
		c.API.TimeoutStr = "60s"
	}
	if c.Run.Segment == "" {
		c.Run.Segment = "ASIA"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if c.Output.LogDir == "" {
		c.Output.LogDir = os.TempDir()
	}
	if c.Output.RunLogDir == "" {
		c.Output.RunLogDir = c.Output.Dir
	}
	if c.NewRelic.APIKeyEnv == "" {
		c.NewRelic.APIKeyEnv = "NR_API_KEY"
	}
	if c.NewRelic.DisabledSentinel == "" {
		c.NewRelic.DisabledSentinel = "NA"
	}
	if c.NewRelic.TimeoutStr == "" {
		c.NewRelic.TimeoutStr = "30s"
	}
	if c.OTEL.ServiceName == "" {
		c.OTEL.ServiceName = "kartta"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) parseTimeouts() error {
	apiTimeout, err := time.ParseDuration(c.API.TimeoutStr)
	if err != nil {
		return fmt.Errorf("parse api timeout %q: %w", c.API.TimeoutStr, err)
	}
	c.API.Timeout = apiTimeout

	nrTimeout, err := time.ParseDuration(c.NewRelic.TimeoutStr)
	if err != nil {
		return fmt.Errorf("parse newrelic timeout %q: %w", c.NewRelic.TimeoutStr, err)
	}
	c.NewRelic.Timeout = nrTimeout
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api: base_url is required")
	}
	if s := c.NewRelic.DisabledSentinel; s != "NA" && s != "ERROR" {
		return fmt.Errorf("newrelic: disabled_sentinel must be NA or ERROR (got %q)", s)
	}
	return nil
}

// APIKey resolves the New Relic credential from the environment.
// Empty means lookup is disabled for the run.
func (c *Config) APIKey() string {
	return os.Getenv(c.NewRelic.APIKeyEnv)
}
