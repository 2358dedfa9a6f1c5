// Package config provides configuration management for fleetscope.
//
// Config file locations (priority order):
//  1. $FLEETSCOPE_CONFIG
//  2. ./fleetscope.yaml
//  3. $XDG_CONFIG_HOME/fleetscope/config.yaml
//  4. ~/.config/fleetscope/config.yaml
//  5. /etc/fleetscope/config.yaml
//
// Environment variables override the file: FLEETSCOPE_API_KEY, FLEETSCOPE_ORG_ID,
// FLEETSCOPE_BASE_URL, FLEETSCOPE_LOG_LEVEL and FLEETSCOPE_AMQP_URL.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvAPIKey   = "FLEETSCOPE_API_KEY"
	EnvOrgID    = "FLEETSCOPE_ORG_ID"
	EnvBaseURL  = "FLEETSCOPE_BASE_URL"
	EnvLogLevel = "FLEETSCOPE_LOG_LEVEL"
	EnvAMQPURL  = "FLEETSCOPE_AMQP_URL"

	defaultBaseURL = "https://api.meraki.com/api/v1"
	defaultTimeout = 30 * time.Second
	defaultAddr    = ":8080"
)

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides are applied in both cases.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, path, nil
}

// Save writes config to the specified path. The API key is written as well, so the
// file is created readable by the owner only.
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Dashboard.BaseURL == "" {
		c.Dashboard.BaseURL = defaultBaseURL
	}
	if c.Dashboard.Timeout == 0 {
		c.Dashboard.Timeout = Duration(defaultTimeout)
	}
	c.Pace = ParsePace(string(c.Pace))
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Dashboard.APIKey = v
	}
	if v := os.Getenv(EnvOrgID); v != "" {
		c.Organizations = splitList(v)
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Dashboard.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvAMQPURL); v != "" {
		c.Notify.AMQPURL = v
	}
}

// EffectiveFetch returns the pace profile with overrides applied
func (c *Config) EffectiveFetch() FetchProfile {
	base := c.Pace.GetProfile()

	if c.Fetch == nil {
		return base
	}

	if c.Fetch.RatePerSecond != nil && *c.Fetch.RatePerSecond > 0 {
		base.RatePerSecond = *c.Fetch.RatePerSecond
	}
	if c.Fetch.Burst != nil && *c.Fetch.Burst > 0 {
		base.Burst = *c.Fetch.Burst
	}
	if c.Fetch.Workers != nil && *c.Fetch.Workers > 0 {
		base.Workers = *c.Fetch.Workers
	}

	return base
}

// Credentials resolves which (key, organization) pairs to run against.
//
// A configured API key is paired with every configured organization. Without one, the
// legacy credentials file is read (CredentialsFile, or found next to configPath).
func (c *Config) Credentials(configPath string) ([]Credential, error) {
	if c.Dashboard.APIKey != "" {
		if len(c.Organizations) == 0 {
			return nil, fmt.Errorf("api key configured but no organization id (set organizations or %s)", EnvOrgID)
		}
		creds := make([]Credential, 0, len(c.Organizations))
		for _, org := range c.Organizations {
			creds = append(creds, Credential{APIKey: c.Dashboard.APIKey, OrgID: org})
		}
		return creds, nil
	}

	path := c.CredentialsFile
	if path == "" {
		path = FindCredentialsFile(configPath)
	}
	if path == "" {
		return nil, fmt.Errorf("no api key configured (set %s or provide %s)", EnvAPIKey, LegacyCredentialsFile)
	}

	creds, err := LoadCredentialsFile(path)
	if err != nil {
		return nil, err
	}
	if len(c.Organizations) == 0 {
		return creds, nil
	}

	// restrict to the configured organizations
	wanted := make(map[string]bool, len(c.Organizations))
	for _, org := range c.Organizations {
		wanted[org] = true
	}
	var filtered []Credential
	for _, cred := range creds {
		if wanted[cred.OrgID] {
			filtered = append(filtered, cred)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%s has no entry for organizations %v", path, c.Organizations)
	}
	return filtered, nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	fetch := c.EffectiveFetch()

	summary := fmt.Sprintf("API: %s, Pace: %s\n", c.Dashboard.BaseURL, c.Pace)
	summary += fmt.Sprintf("Rate: %.1f/s (burst %d), Workers: %d\n", fetch.RatePerSecond, fetch.Burst, fetch.Workers)
	summary += fmt.Sprintf("Organizations (%d):", len(c.Organizations))
	for _, org := range c.Organizations {
		summary += fmt.Sprintf(" %s", org)
	}

	return summary
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
