// Package config loads process configuration from a TOML file, optional .env files and OXY_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OXY_"

// WindowConfig configures the demo window.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Config is the process configuration.
type Config struct {
	// FramesInFlight is the replication factor of every resource set.
	FramesInFlight int `toml:"frames_in_flight"`
	// Backend selects the renderer backend: "host" or "wgpu".
	Backend string `toml:"backend"`
	// HostCoherent makes host backend buffers coherent.
	HostCoherent bool `toml:"host_coherent"`
	// ForceSoftware requests a software WebGPU adapter.
	ForceSoftware bool `toml:"force_software"`
	// LogLevel is a logrus level name.
	LogLevel string `toml:"log_level"`
	// Profiling enables the frame profiler.
	Profiling bool `toml:"profiling"`

	Window WindowConfig `toml:"window"`
}

// Default returns the configuration used when nothing overrides it.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		FramesInFlight: 2,
		Backend:        renderer.BackendTypeHost.String(),
		LogLevel:       logrus.InfoLevel.String(),
		Window: WindowConfig{
			Title:  "oxy",
			Width:  1280,
			Height: 720,
		},
	}
}

type loader struct {
	envFiles []string
	lookup   func(string) (string, bool)
}

// ConfigBuilderOption is a functional option applied to Load.
type ConfigBuilderOption func(*loader)

// WithEnvFiles adds .env files whose variables apply beneath the real environment.
// Missing files are skipped.
//
// Parameters:
//   - files: the .env file paths
//
// Returns:
//   - ConfigBuilderOption: a function that applies the env files option
func WithEnvFiles(files ...string) ConfigBuilderOption {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, files...)
	}
}

// WithLookupEnv replaces os.LookupEnv as the environment source.
//
// Parameters:
//   - lookup: the lookup function
//
// Returns:
//   - ConfigBuilderOption: a function that applies the lookup option
func WithLookupEnv(lookup func(string) (string, bool)) ConfigBuilderOption {
	return func(l *loader) {
		l.lookup = lookup
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if path is not
// empty), then .env files, then the environment.
//
// Parameters:
//   - path: the TOML file, or "" for none
//   - options: variadic list of ConfigBuilderOption functions
//
// Returns:
//   - Config: the loaded configuration
//   - error: an error if a file cannot be parsed or the result is invalid
func Load(path string, options ...ConfigBuilderOption) (Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range options {
		opt(l)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	dotenv := make(map[string]string)
	for _, f := range l.envFiles {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("env file %s: %w", f, err)
		}
		for k, v := range vars {
			dotenv[k] = v
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode parses TOML into cfg, rejecting unknown keys.
//
// Parameters:
//   - data: the TOML document
//   - cfg: the configuration to fill
//
// Returns:
//   - error: a parse error
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Encode renders the configuration as TOML.
//
// Returns:
//   - []byte: the TOML document
//   - error: an encoding error
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
		return nil
	}
	flag := func(name string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}

	str("BACKEND", &c.Backend)
	str("LOG_LEVEL", &c.LogLevel)
	str("WINDOW_TITLE", &c.Window.Title)
	return errors.Join(
		num("FRAMES_IN_FLIGHT", &c.FramesInFlight),
		num("WINDOW_WIDTH", &c.Window.Width),
		num("WINDOW_HEIGHT", &c.Window.Height),
		flag("HOST_COHERENT", &c.HostCoherent),
		flag("FORCE_SOFTWARE", &c.ForceSoftware),
		flag("PROFILING", &c.Profiling),
	)
}

// Validate checks every field.
//
// Returns:
//   - error: every problem found, joined
func (c Config) Validate() error {
	var errs []error
	if c.FramesInFlight < 1 {
		errs = append(errs, fmt.Errorf("frames_in_flight must be at least 1, got %d", c.FramesInFlight))
	}
	if _, err := c.BackendType(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	return errors.Join(errs...)
}

// BackendType returns the configured renderer backend.
//
// Returns:
//   - renderer.RendererBackendType: the backend type
//   - error: an error for an unknown backend name
func (c Config) BackendType() (renderer.RendererBackendType, error) {
	return renderer.ParseBackendType(c.Backend)
}

// NewLogger returns a logger at the configured level.
//
// Returns:
//   - *logrus.Logger: the logger
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// RendererOptions converts the backend settings to renderer builder options.
//
// Parameters:
//   - logger: the logger the backend should use
//
// Returns:
//   - []renderer.RendererBuilderOption: the options
func (c Config) RendererOptions(logger logrus.FieldLogger) []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithLogger(logger),
		renderer.WithHostCoherent(c.HostCoherent),
		renderer.WithForceSoftwareRenderer(c.ForceSoftware),
	}
}
