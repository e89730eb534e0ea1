// Package config provides YAML-based configuration loading for roadwatch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level roadwatch configuration, loaded from config.yaml.
// Secrets (gateway auth tokens, JWT secret) are read from the environment,
// not the config file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	ServiceArea ServiceAreaConfig `yaml:"service_area"`
	Session     SessionConfig     `yaml:"session"`
	Geo         GeoConfig         `yaml:"geo"`
	Report      ReportConfig      `yaml:"report"`
	Twilio      TwilioConfig      `yaml:"twilio"`
	Discord     DiscordConfig     `yaml:"discord"`
	Slack       SlackConfig       `yaml:"slack"`
	Media       MediaConfig       `yaml:"media"`
	Auth        AuthConfig        `yaml:"auth"`
}

// ServerConfig holds HTTP listener settings for the webhook and admin API.
type ServerConfig struct {
	Port          int    `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// DatabaseConfig selects the storage backend. Driver "mysql" for
// deployments, "sqlite" for local development.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file path
}

// ServiceAreaConfig is the coarse bounding rectangle covering every
// division polygon. Points outside it are rejected without polygon tests.
type ServiceAreaConfig struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// SessionConfig controls conversation session lifecycle.
type SessionConfig struct {
	IdleTimeoutHours int `yaml:"idle_timeout_hours"`
}

// GeoConfig controls the division resolver cache.
type GeoConfig struct {
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
	KeyPrecision    int `yaml:"key_precision"`
}

// ReportConfig controls the submission pipeline.
type ReportConfig struct {
	MaxNotify         int  `yaml:"max_notify"`
	PersistUnnotified bool `yaml:"persist_unnotified"`
}

// TwilioConfig holds WhatsApp gateway settings. The auth token comes from
// the TWILIO_AUTH_TOKEN environment variable.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	From       string `yaml:"from"`     // e.g. "whatsapp:+14155238886"
	SMSFrom    string `yaml:"sms_from"` // optional SMS number for OTP fallback delivery
}

// DiscordConfig enables the secondary citizen channel. The bot token comes
// from the DISCORD_BOT_TOKEN environment variable.
type DiscordConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SlackConfig holds ops alerting settings. The API token comes from the
// SLACK_API_TOKEN environment variable.
type SlackConfig struct {
	Channel string `yaml:"channel"`
}

// MediaConfig holds S3 media store settings.
type MediaConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Folder string `yaml:"folder"`
}

// AuthConfig controls admin OTP and token issuance.
type AuthConfig struct {
	OTPTTLMinutes int `yaml:"otp_ttl_minutes"`
	JWTTTLHours   int `yaml:"jwt_ttl_hours"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IdleTimeout returns the session inactivity window as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutHours) * time.Hour
}

// CacheTTL returns the geo-cache entry lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Geo.CacheTTLMinutes) * time.Minute
}

// OTPTTL returns the admin one-time-code lifetime as a duration.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.Auth.OTPTTLMinutes) * time.Minute
}

// JWTTTL returns the admin bearer-token lifetime as a duration.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.Auth.JWTTTLHours) * time.Hour
}

// JoinFormURL returns the public URL of the team application form.
func (c *Config) JoinFormURL(token string) string {
	return fmt.Sprintf("%s/join?session=%s", strings.TrimRight(c.Server.PublicBaseURL, "/"), token)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "roadwatch"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Path == "" {
		c.Database.Path = "roadwatch.db"
	}
	if c.Session.IdleTimeoutHours == 0 {
		c.Session.IdleTimeoutHours = 48
	}
	if c.Geo.CacheTTLMinutes == 0 {
		c.Geo.CacheTTLMinutes = 60
	}
	if c.Geo.KeyPrecision == 0 {
		c.Geo.KeyPrecision = 4
	}
	if c.Report.MaxNotify == 0 {
		c.Report.MaxNotify = 2
	}
	if c.Media.Folder == "" {
		c.Media.Folder = "reports"
	}
	if c.Auth.OTPTTLMinutes == 0 {
		c.Auth.OTPTTLMinutes = 10
	}
	if c.Auth.JWTTTLHours == 0 {
		c.Auth.JWTTTLHours = 24
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	sa := c.ServiceArea
	if sa.MinLat == 0 && sa.MaxLat == 0 && sa.MinLng == 0 && sa.MaxLng == 0 {
		errs = append(errs, "service_area bounds are required")
	} else {
		if sa.MinLat >= sa.MaxLat {
			errs = append(errs, "service_area.min_lat must be less than max_lat")
		}
		if sa.MinLng >= sa.MaxLng {
			errs = append(errs, "service_area.min_lng must be less than max_lng")
		}
	}
	if c.Report.MaxNotify < 0 {
		errs = append(errs, "report.max_notify must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
