package config

import (
	"fmt"
	"time"
)

// Config represents a crease.yaml configuration file.
// All values are optional and act as defaults for crease flags.
// CLI flags always override config values.
type Config struct {
	Season    string          `yaml:"season"`
	Tables    []string        `yaml:"tables"`
	Source    SourceConfig    `yaml:"source"`
	Store     StoreConfig     `yaml:"store"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SourceConfig holds stats API client defaults.
type SourceConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	Retries *int     `yaml:"retries,omitempty"`
	Backoff Duration `yaml:"backoff"`
}

// StoreConfig holds artifact store defaults.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// WarehouseConfig holds warehouse connection defaults.
type WarehouseConfig struct {
	Driver          string   `yaml:"driver"`
	URL             string   `yaml:"url"`
	PingTimeout     Duration `yaml:"ping_timeout"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateSchema    bool     `yaml:"create_schema"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// MetricsConfig holds metrics export defaults.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
