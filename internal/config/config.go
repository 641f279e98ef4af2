// Package config loads quizqti settings from a YAML file with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/quizqti/internal/mathcache"
)

// Environment variables that override file settings.
const (
	EnvLatexRenderURL = "QUIZQTI_LATEX_RENDER_URL"
	EnvJWTSecret      = "QUIZQTI_JWT_SECRET"
	EnvCacheDSN       = "QUIZQTI_CACHE_DSN"
)

// Config is the quizqti configuration.
type Config struct {
	LatexRenderURL string `yaml:"latex_render_url"`
	PandocMathML   bool   `yaml:"pandoc_mathml"`
	RunCodeBlocks  bool   `yaml:"run_code_blocks"`
	ImagesBase64   bool   `yaml:"images_base64"`
	HighlightStyle string `yaml:"highlight_style"`

	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// CacheConfig configures the persistent MathML cache.
type CacheConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	MaxEntries int    `yaml:"max_entries"`
	MaxUnused  int    `yaml:"max_unused"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`
	RateLimit      int      `yaml:"rate_limit"` // requests per minute per client, 0 disables
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// LogConfig selects log level and format. Empty values let the caller
// decide: commands log warnings, the server logs requests, and the format
// follows the terminal.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Driver:     string(mathcache.DriverSQLite),
			MaxEntries: mathcache.DefaultMaxEntries,
			MaxUnused:  mathcache.DefaultMaxUnused,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimit:      60,
			MaxUploadBytes: 10 << 20,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/quizqti/config.yaml, falling back
// to the platform user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "quizqti", "config.yaml")
}

// getenv is replaced in tests.
var getenv = os.Getenv

// Load reads the file at path over the defaults and applies environment
// overrides. An empty path means DefaultPath; a missing default file is
// not an error, a missing explicit one is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if cfg, err = Parse(data); err != nil {
				return Config{}, fmt.Errorf("%s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Parse decodes one YAML document over the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	var next yaml.Node
	if err := decoder.Decode(&next); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("parse config: multiple YAML documents are not supported")
		}
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := getenv(EnvLatexRenderURL); v != "" {
		c.LatexRenderURL = v
	}
	if v := getenv(EnvJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
	if v := getenv(EnvCacheDSN); v != "" {
		c.Cache.DSN = v
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	switch mathcache.Driver(c.Cache.Driver) {
	case mathcache.DriverSQLite, mathcache.DriverPostgres, mathcache.DriverMemory:
	default:
		return fmt.Errorf("cache.driver: unsupported driver %q", c.Cache.Driver)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries: must not be negative")
	}
	if c.Cache.MaxUnused < 0 {
		return fmt.Errorf("cache.max_unused: must not be negative")
	}
	if c.LatexRenderURL != "" && !strings.HasPrefix(c.LatexRenderURL, "http://") && !strings.HasPrefix(c.LatexRenderURL, "https://") {
		return fmt.Errorf("latex_render_url: %q is not an http(s) URL", c.LatexRenderURL)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit: must not be negative")
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes: must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format: %q is not json or text", c.Log.Format)
	}
	return nil
}

// MathCache returns the cache settings in mathcache form.
func (c Config) MathCache() mathcache.Config {
	return mathcache.Config{
		Driver:     mathcache.Driver(c.Cache.Driver),
		DSN:        c.Cache.DSN,
		MaxEntries: c.Cache.MaxEntries,
		MaxUnused:  c.Cache.MaxUnused,
	}
}
