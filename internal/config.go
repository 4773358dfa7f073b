package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"
	"golang.org/x/text/language"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Content ContentConfig     `yaml:"content" toml:"content"`
	SQLite  SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
	Live    LiveConfig        `yaml:"live" toml:"live"`
}

// Validate validates every section, stopping at the first failure.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    config.Validator
	}{
		{"app", &c.App},
		{"content", &c.Content},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"live", &c.Live},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig locates the posts.
//
// Root is the content directory; Pattern selects post files relative to it;
// Language is the BCP 47 tag used to order taxonomy labels ("und" for the
// root collation).
type ContentConfig struct {
	Root     string `yaml:"root" toml:"root"`
	Pattern  string `yaml:"pattern" toml:"pattern"`
	Language string `yaml:"language" toml:"language"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	if c.Pattern == "" {
		c.Pattern = content.DefaultPattern
	}
	if c.Language == "" {
		c.Language = language.Und.String()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Pattern, validation.By(func(any) error {
			_, err := glob.Compile(c.Pattern, '/')
			return err
		})),
		validation.Field(&c.Language, validation.By(func(any) error {
			_, err := language.Parse(c.Language)
			return err
		})),
	)
}

// Tag returns the parsed collation language, or language.Und when unset or invalid.
func (c *ContentConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und
	}
	return tag
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LiveConfig controls file watching and the event stream.
//
// Debounce is the quiet period before a burst of file events is applied.
// TaxonomyThrottle bounds how often taxonomy.updated is sent. Heartbeat is the
// interval of keep-alive comments on idle event streams; zero disables them.
type LiveConfig struct {
	Watch            bool            `yaml:"watch" toml:"watch"`
	Debounce         config.Duration `yaml:"debounce" toml:"debounce"`
	TaxonomyThrottle config.Duration `yaml:"taxonomy_throttle" toml:"taxonomy_throttle"`
	Heartbeat        config.Duration `yaml:"heartbeat" toml:"heartbeat"`
}

// Validate validates the live configuration.
func (c *LiveConfig) Validate() error {
	if c.Debounce < 0 || c.TaxonomyThrottle < 0 || c.Heartbeat < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Heartbeat > 0 && c.Heartbeat.Std() < time.Second {
		return fmt.Errorf("heartbeat %s is below 1s", c.Heartbeat)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:     "./docs/src",
			Pattern:  content.DefaultPattern,
			Language: language.Und.String(),
		},
		SQLite: SQLiteConfig{
			Path: "./folio.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Live: LiveConfig{
			Watch:            true,
			Debounce:         config.Duration(index.DefaultDebounce),
			TaxonomyThrottle: config.Duration(2 * time.Second),
			Heartbeat:        config.Duration(30 * time.Second),
		},
	}
}
