package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/slipbox/internal/reconcile"
	"github.com/starford/slipbox/internal/workspace"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// WorkspaceConfig locates the slip box. NotesDir, Manifest and Template are
// relative to Root.
type WorkspaceConfig struct {
	Root      string `yaml:"root"`
	NotesDir  string `yaml:"notes_dir"`
	Manifest  string `yaml:"manifest"`
	Template  string `yaml:"template"`
	Extension string `yaml:"extension"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.NotesDir, validation.Required, validation.By(relative)),
		validation.Field(&c.Manifest, validation.Required, validation.By(relative)),
		validation.Field(&c.Template, validation.By(relative)),
		validation.Field(&c.Extension, validation.Required, validation.By(func(v any) error {
			if s, _ := v.(string); !strings.HasPrefix(s, ".") {
				return fmt.Errorf("must start with a dot")
			}
			return nil
		})),
	)
}

// Layout returns the workspace layout.
func (c *WorkspaceConfig) Layout() workspace.Layout {
	return workspace.Layout{
		NotesDir:  filepath.ToSlash(c.NotesDir),
		Manifest:  filepath.ToSlash(c.Manifest),
		Template:  filepath.ToSlash(c.Template),
		Extension: c.Extension,
	}
}

// NotesPath returns the notes directory joined onto Root.
func (c *WorkspaceConfig) NotesPath() string {
	return filepath.Join(c.Root, c.NotesDir)
}

func relative(v any) error {
	if s, _ := v.(string); filepath.IsAbs(s) {
		return fmt.Errorf("must be relative to the workspace root")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
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
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
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
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.MinInterval, validation.Min(time.Duration(0))),
	)
}

// Options converts the configuration to watcher options.
func (c *WatchConfig) Options() reconcile.WatchOptions {
	return reconcile.WatchOptions{Debounce: c.Debounce, MinInterval: c.MinInterval}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	layout := workspace.DefaultLayout()
	watch := reconcile.DefaultWatchOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Root:      ".",
			NotesDir:  layout.NotesDir,
			Manifest:  layout.Manifest,
			Template:  layout.Template,
			Extension: layout.Extension,
		},
		SQLite: SQLiteConfig{
			Path: "./slipbox.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Debounce:    watch.Debounce,
			MinInterval: watch.MinInterval,
		},
	}
}
