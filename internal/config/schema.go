package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version       int             `yaml:"version"`
	Dashboard     DashboardConfig `yaml:"dashboard"`
	Organizations []string        `yaml:"organizations,omitempty"`
	Pace          Pace            `yaml:"pace"`
	Fetch         *FetchOverride  `yaml:"fetch,omitempty"`
	Server        ServerConfig    `yaml:"server"`
	Notify        NotifyConfig    `yaml:"notify,omitempty"`
	Log           LogConfig       `yaml:"log"`

	// CredentialsFile points to a legacy "key,orgid" per line file
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// DashboardConfig holds the cloud API connection settings
type DashboardConfig struct {
	APIKey  string   `yaml:"api_key,omitempty"`
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// FetchOverride allows overriding individual pace profile values
type FetchOverride struct {
	RatePerSecond *float64 `yaml:"rate_per_second,omitempty"`
	Burst         *int     `yaml:"burst,omitempty"`
	Workers       *int     `yaml:"workers,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig configures the AMQP event publisher; an empty URL disables it
type NotifyConfig struct {
	AMQPURL  string `yaml:"amqp_url,omitempty"`
	Exchange string `yaml:"exchange,omitempty"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Credential is one API key and the organization it may read
type Credential struct {
	APIKey string `yaml:"-"`
	OrgID  string `yaml:"org_id"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
