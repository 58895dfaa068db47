package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vango-dev/vbridge/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vbridge.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "VBRIDGE"

	// DefaultKeyPrefix prefixes generated element keys.
	DefaultKeyPrefix = "elem_"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "vbridge"

	// DefaultAddr is the default serve address.
	DefaultAddr = ":8080"

	// DefaultQueryTimeout bounds a remote element query.
	DefaultQueryTimeout = 5 * time.Second
)

// Sanitize policies accepted by Markup.Sanitize.
const (
	SanitizeNone   = "none"
	SanitizeUGC    = "ugc"
	SanitizeStrict = "strict"
)

// Config represents the complete vbridge.json configuration.
type Config struct {
	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Session contains session configuration.
	Session SessionConfig `json:"session,omitempty"`

	// Markup contains SetMarkup handling configuration.
	Markup MarkupConfig `json:"markup,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Serve contains the HTTP server configuration.
	Serve ServeConfig `json:"serve,omitempty"`

	// Remote contains the websocket renderer configuration.
	Remote RemoteConfig `json:"remote,omitempty"`

	// Output is where a rendered document is written: a file path,
	// "-" for stdout, or an s3://bucket/key URL.
	Output string `json:"output,omitempty"`

	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// SessionConfig contains session settings.
type SessionConfig struct {
	// KeyPrefix prefixes keys generated for script-created elements.
	KeyPrefix string `json:"keyPrefix,omitempty" split_words:"true"`
}

// MarkupConfig contains markup settings.
type MarkupConfig struct {
	// Sanitize is the policy applied to SetMarkup input: none, ugc or strict.
	Sanitize string `json:"sanitize,omitempty"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// ServeConfig contains HTTP server settings.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`
}

// RemoteConfig contains remote renderer settings.
type RemoteConfig struct {
	// QueryTimeout bounds how long a query waits for the renderer (e.g., "5s").
	QueryTimeout string `json:"queryTimeout,omitempty" split_words:"true"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			KeyPrefix: DefaultKeyPrefix,
		},
		Markup: MarkupConfig{
			Sanitize: SanitizeUGC,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Serve: ServeConfig{
			Addr: DefaultAddr,
		},
		Remote: RemoteConfig{
			QueryTimeout: DefaultQueryTimeout.String(),
		},
	}
}

// Load reads vbridge.json from dir and applies environment overrides.
// A missing file is not an error: defaults and the environment are used.
func Load(dir string) (*Config, error) {
	if !Exists(dir) {
		cfg := New()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("B401").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Check the --config flag or create the file")
		}
		return nil, errors.New("B401").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("B401").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays VBRIDGE_* environment variables onto c. Names follow
// the JSON nesting (VBRIDGE_SESSION_KEY_PREFIX). Variables that are not set
// leave the current value untouched.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return errors.New("B401").
			WithDetail("Invalid environment override").
			Wrap(err)
	}
	return nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("B401").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("B401").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	d := New()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = d.Session.KeyPrefix
	}
	if c.Markup.Sanitize == "" {
		c.Markup.Sanitize = d.Markup.Sanitize
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
	if c.Remote.QueryTimeout == "" {
		c.Remote.QueryTimeout = d.Remote.QueryTimeout
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("B402").
			WithDetailf("log.format %q is not text or json", c.Log.Format)
	}
	switch c.Markup.Sanitize {
	case SanitizeNone, SanitizeUGC, SanitizeStrict:
	default:
		return errors.New("B402").
			WithDetailf("markup.sanitize %q is not none, ugc or strict", c.Markup.Sanitize)
	}
	if c.Session.KeyPrefix == "" {
		return errors.New("B402").WithDetail("session.keyPrefix must not be empty")
	}
	if d, err := time.ParseDuration(c.Remote.QueryTimeout); err != nil || d <= 0 {
		return errors.New("B402").
			WithDetailf("remote.queryTimeout %q is not a positive duration", c.Remote.QueryTimeout)
	}
	return nil
}

// QueryTimeout returns the remote query timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Remote.QueryTimeout)
	if err != nil || d <= 0 {
		return DefaultQueryTimeout
	}
	return d
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.New("B402").
		WithDetailf("log.level %q is not debug, info, warn or error", s)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
