// Package config handles configuration for se-interpreter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are the workspace config files looked up, in order.
var FileNames = []string{"se-interpreter.yaml", "se-interpreter.yml"}

// Config represents the workspace configuration (se-interpreter.yaml).
type Config struct {
	// Execution settings
	Parallel     int    `yaml:"parallel"`     // Number of lanes
	Driver       string `yaml:"driver"`       // webdriver or mock
	VerifyPolicy string `yaml:"verifyPolicy"` // continue or abort

	// Session settings
	BrowserOptions map[string]interface{} `yaml:"browserOptions"`
	DriverOptions  map[string]interface{} `yaml:"driverOptions"`

	// Timing, in milliseconds
	PollIntervalMs int `yaml:"pollIntervalMs"`
	WaitTimeoutMs  int `yaml:"waitTimeoutMs"`
	ImplicitWaitMs int `yaml:"implicitWaitMs"`

	// Output
	ReportDir string `yaml:"reportDir"`
	LogFile   string `yaml:"logFile"`

	Env map[string]string `yaml:"env"` // Variables for ${NAME} substitution

	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-"`
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}

// LoadFromDir looks for se-interpreter.yaml or se-interpreter.yml in the
// directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{}, nil
}

func (c *Config) validate() error {
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative, got %d", c.Parallel)
	}
	switch c.VerifyPolicy {
	case "", "continue", "abort":
	default:
		return fmt.Errorf("verifyPolicy must be continue or abort, got %q", c.VerifyPolicy)
	}
	for name, v := range map[string]int{
		"pollIntervalMs": c.PollIntervalMs,
		"waitTimeoutMs":  c.WaitTimeoutMs,
		"implicitWaitMs": c.ImplicitWaitMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	return nil
}

// PollInterval returns the configured poll interval, or zero when unset.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// WaitTimeout returns the configured wait timeout, or zero when unset.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMs) * time.Millisecond
}

// ImplicitWait returns the configured implicit wait, or zero when unset.
func (c *Config) ImplicitWait() time.Duration {
	return time.Duration(c.ImplicitWaitMs) * time.Millisecond
}

// LookupEnv resolves a variable from the config env first and the process
// environment second.
func (c *Config) LookupEnv(name string) (string, bool) {
	if v, ok := c.Env[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}
