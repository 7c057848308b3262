package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/timerange"
)

// Source kinds.
const (
	SourceHAE      = "hae"
	SourcePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Source    SourceConfig    `yaml:"source"`
	Backend   BackendConfig   `yaml:"backend"`
	Sync      SyncConfig      `yaml:"sync"`
	Timezone  string          `yaml:"timezone"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
	// Scopes lists the metric kinds the API key may read. Empty grants all.
	Scopes []string `yaml:"scopes"`
}

type SourceConfig struct {
	Kind              string  `yaml:"kind"`
	HAEHost           string  `yaml:"hae_host"`
	HAEPort           int     `yaml:"hae_port"`
	UserID            int     `yaml:"user_id"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type BackendConfig struct {
	URL      string        `yaml:"url"`
	Token    string        `yaml:"token"`
	DeviceID string        `yaml:"device_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	StateDir string `yaml:"state_dir"`
	Days     int    `yaml:"days"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix FITBRIDGE_ and underscore-separated paths:
//
//	FITBRIDGE_SERVER_HOST, FITBRIDGE_SERVER_PORT,
//	FITBRIDGE_DB_HOST, FITBRIDGE_DB_PORT, FITBRIDGE_DB_NAME,
//	FITBRIDGE_DB_USER, FITBRIDGE_DB_PASSWORD, FITBRIDGE_DB_SSLMODE,
//	FITBRIDGE_AUTH_API_KEY, FITBRIDGE_AUTH_SCOPES (comma-separated),
//	FITBRIDGE_SOURCE_KIND, FITBRIDGE_HAE_HOST, FITBRIDGE_HAE_PORT,
//	FITBRIDGE_BACKEND_URL, FITBRIDGE_BACKEND_TOKEN, FITBRIDGE_DEVICE_ID,
//	FITBRIDGE_TIMEZONE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("FITBRIDGE_SERVER_HOST", &cfg.Server.Host)
	num("FITBRIDGE_SERVER_PORT", &cfg.Server.Port)
	str("FITBRIDGE_DB_HOST", &cfg.Database.Host)
	num("FITBRIDGE_DB_PORT", &cfg.Database.Port)
	str("FITBRIDGE_DB_NAME", &cfg.Database.Name)
	str("FITBRIDGE_DB_USER", &cfg.Database.User)
	str("FITBRIDGE_DB_PASSWORD", &cfg.Database.Password)
	str("FITBRIDGE_DB_SSLMODE", &cfg.Database.SSLMode)
	str("FITBRIDGE_AUTH_API_KEY", &cfg.Auth.APIKey)
	if v := os.Getenv("FITBRIDGE_AUTH_SCOPES"); v != "" {
		cfg.Auth.Scopes = strings.Split(v, ",")
	}
	str("FITBRIDGE_SOURCE_KIND", &cfg.Source.Kind)
	str("FITBRIDGE_HAE_HOST", &cfg.Source.HAEHost)
	num("FITBRIDGE_HAE_PORT", &cfg.Source.HAEPort)
	str("FITBRIDGE_BACKEND_URL", &cfg.Backend.URL)
	str("FITBRIDGE_BACKEND_TOKEN", &cfg.Backend.Token)
	str("FITBRIDGE_DEVICE_ID", &cfg.Backend.DeviceID)
	str("FITBRIDGE_TIMEZONE", &cfg.Timezone)
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourcePostgres
	}
	if cfg.Source.UserID == 0 {
		cfg.Source.UserID = 1
	}
	if cfg.Source.RequestsPerSecond == 0 {
		cfg.Source.RequestsPerSecond = 2
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 60 * time.Second
	}
	if cfg.Sync.StateDir == "" {
		cfg.Sync.StateDir = ".fitbridge"
	}
	if cfg.Sync.Days == 0 {
		cfg.Sync.Days = 7
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "fitbridge"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if _, err := c.ScopeKinds(); err != nil {
		return fmt.Errorf("auth.scopes: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Sync.Days < 0 || c.Sync.Days > timerange.MaxDays {
		return fmt.Errorf("sync.days must be between 1 and %d", timerange.MaxDays)
	}

	switch c.Source.Kind {
	case SourcePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case SourceHAE:
		if c.Source.HAEHost == "" {
			return fmt.Errorf("source.hae_host is required")
		}
		if c.Source.HAEPort == 0 {
			return fmt.Errorf("source.hae_port is required")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourcePostgres, SourceHAE, c.Source.Kind)
	}
	return nil
}

// ValidateBackend checks the settings needed to submit records.
func (c *Config) ValidateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.DeviceID == "" {
		return fmt.Errorf("backend.device_id is required")
	}
	return nil
}

// ScopeKinds parses auth.scopes. An empty list grants every kind.
func (c *Config) ScopeKinds() ([]models.MetricKind, error) {
	if len(c.Auth.Scopes) == 0 {
		return models.AllMetricKinds, nil
	}
	kinds := make([]models.MetricKind, 0, len(c.Auth.Scopes))
	for _, s := range c.Auth.Scopes {
		k, err := models.ParseMetricKind(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Location resolves the calendar time zone. Empty means the host's zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
