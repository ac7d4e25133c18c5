package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for specviewer.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Session  SessionConfig  `yaml:"session"`
	Auth     AuthConfig     `yaml:"auth"`
	Page     PageConfig     `yaml:"page"`
	Demos    []Demo         `yaml:"demos" validate:"dive"`

	DemosFiles []string `yaml:"demos_files"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" validate:"required"`
	CORSOrigins []string        `yaml:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains per-IP rate limit settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" validate:"gte=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" validate:"oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ViewerConfig contains the built-in demo identifiers.
type ViewerConfig struct {
	DefaultSpec    string        `yaml:"default_spec" validate:"required"`
	NewVersionSpec string        `yaml:"new_version_spec"`
	CORSProxy      string        `yaml:"cors_proxy" validate:"required,url"`
	DefaultColor   string        `yaml:"default_color" validate:"required"`
	ThemeDebounce  time.Duration `yaml:"theme_debounce" validate:"gt=0"`
}

// SessionConfig contains per-tab session settings.
type SessionConfig struct {
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
	MaxSessions     int           `yaml:"max_sessions" validate:"gte=0"`
}

// AuthConfig contains the admin credentials guarding catalog edits.
type AuthConfig struct {
	Admin AdminConfig `yaml:"admin"`
}

// AdminConfig is a single admin user. PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Enabled reports whether admin routes are available.
func (a AdminConfig) Enabled() bool {
	return a.Username != "" && a.PasswordHash != ""
}

// PageConfig contains presentation settings of the demo page.
type PageConfig struct {
	Title string `yaml:"title"`
	// Intro is markdown shown above the controls.
	Intro string `yaml:"intro"`
}

// Demo is an entry of the source picker.
type Demo struct {
	Value string `yaml:"value" validate:"required"`
	Label string `yaml:"label" validate:"required"`
}

var validate = validator.New()

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, filepath.Dir(path))
}

// Parse parses configuration data. Relative demos_files are resolved against
// configDir.
func Parse(data []byte, configDir string) (*Config, error) {
	// Expand environment variables.
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDemoFiles(&cfg, configDir); err != nil {
		return nil, fmt.Errorf("loading demo files: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadDemoFiles appends demos listed in external files.
func loadDemoFiles(cfg *Config, configDir string) error {
	for _, demoFile := range cfg.DemosFiles {
		demoPath := demoFile
		if !filepath.IsAbs(demoPath) {
			demoPath = filepath.Join(configDir, demoPath)
		}

		data, err := os.ReadFile(demoPath)
		if err != nil {
			return fmt.Errorf("reading demo file %s: %w", demoFile, err)
		}

		var demos []Demo
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &demos); err != nil {
			return fmt.Errorf("parsing demo file %s: %w", demoFile, err)
		}

		cfg.Demos = append(cfg.Demos, demos...)
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	bareEnvVar   = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// expandEnvVars replaces ${VAR} and $VAR patterns with environment variable
// values. Unknown variables are left untouched.
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}

		return match
	})

	return bareEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[1:]); ok {
			return val
		}

		return match
	})
}

// applyDefaults sets default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}

	if cfg.Server.RateLimit.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.RequestsPerMinute = 120
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}

	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "./specviewer.db"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}

	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	defaults := viewer.DefaultSettings()

	if cfg.Viewer.DefaultSpec == "" {
		cfg.Viewer.DefaultSpec = defaults.DefaultSpec
	}

	if cfg.Viewer.NewVersionSpec == "" {
		cfg.Viewer.NewVersionSpec = defaults.NewVersionSpec
	}

	if cfg.Viewer.CORSProxy == "" {
		cfg.Viewer.CORSProxy = defaults.CORSProxy
	}

	if cfg.Viewer.DefaultColor == "" {
		cfg.Viewer.DefaultColor = defaults.DefaultColor
	}

	if cfg.Viewer.ThemeDebounce == 0 {
		cfg.Viewer.ThemeDebounce = defaults.ThemeDelay
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}

	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = time.Minute
	}

	if cfg.Page.Title == "" {
		cfg.Page.Title = "API documentation viewer"
	}

	if len(cfg.Demos) == 0 {
		cfg.Demos = DefaultDemos()
	}
}

// DefaultDemos returns the stock source picker entries.
func DefaultDemos() []Demo {
	return []Demo{
		{Value: "openapi-3-1.yaml", Label: "Petstore OpenAPI 3.1"},
		{Value: "https://api.apis.guru/v2/specs/instagram.com/1.0.0/swagger.yaml", Label: "Instagram"},
		{Value: "https://api.apis.guru/v2/specs/googleapis.com/calendar/v3/openapi.yaml", Label: "Google Calendar"},
		{Value: "https://api.apis.guru/v2/specs/slack.com/1.7.0/openapi.yaml", Label: "Slack"},
		{Value: "https://api.apis.guru/v2/specs/zoom.us/2.0.0/openapi.yaml", Label: "Zoom.us"},
		{Value: "https://docs.graphhopper.com/openapi.json", Label: "GraphHopper"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return convertValidationError(err)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required when driver is sqlite")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required when driver is postgres")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required when driver is postgres")
		}
	}

	if (c.Auth.Admin.Username == "") != (c.Auth.Admin.PasswordHash == "") {
		return fmt.Errorf("auth.admin requires both username and password_hash")
	}

	if c.Session.CleanupInterval > c.Session.IdleTimeout {
		return fmt.Errorf("session.cleanup_interval must not exceed session.idle_timeout")
	}

	seen := make(map[string]bool, len(c.Demos))

	for _, demo := range c.Demos {
		if seen[demo.Value] {
			return fmt.Errorf("duplicate demo value: %s", demo.Value)
		}

		seen[demo.Value] = true
	}

	return nil
}

// convertValidationError reports the first failing field by its yaml path.
func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}

	fe := ves[0]

	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return fmt.Errorf("%s failed validation for tag '%s'", strings.Join(parts, "."), fe.Tag())
}

// ViewerSettings converts the viewer section into controller settings.
func (c *Config) ViewerSettings() viewer.Settings {
	return viewer.Settings{
		DefaultSpec:    c.Viewer.DefaultSpec,
		NewVersionSpec: c.Viewer.NewVersionSpec,
		CORSProxy:      c.Viewer.CORSProxy,
		DefaultColor:   c.Viewer.DefaultColor,
		ThemeDelay:     c.Viewer.ThemeDebounce,
	}
}

// GetDSN returns the database connection string.
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "sqlite":
		return c.Database.SQLite.Path
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Postgres.Host,
			c.Database.Postgres.Port,
			c.Database.Postgres.User,
			c.Database.Postgres.Password,
			c.Database.Postgres.Database,
			c.Database.Postgres.SSLMode,
		)
	default:
		return ""
	}
}

// String returns a sanitized string representation of the config (no secrets).
func (c *Config) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Server: listen=%s rate_limit=%t\n", c.Server.Listen, c.Server.RateLimit.Enabled))
	sb.WriteString(fmt.Sprintf("Database: driver=%s\n", c.Database.Driver))
	sb.WriteString(fmt.Sprintf("Viewer: default_spec=%s new_version_spec=%s cors_proxy=%s theme_debounce=%s\n",
		c.Viewer.DefaultSpec, c.Viewer.NewVersionSpec, c.Viewer.CORSProxy, c.Viewer.ThemeDebounce))
	sb.WriteString(fmt.Sprintf("Session: idle_timeout=%s max_sessions=%d\n",
		c.Session.IdleTimeout, c.Session.MaxSessions))
	sb.WriteString(fmt.Sprintf("Auth: admin=%t\n", c.Auth.Admin.Enabled()))
	sb.WriteString(fmt.Sprintf("Demos: %d\n", len(c.Demos)))

	return sb.String()
}
