// Package config loads the preload library settings from the environment
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/majorcontext/interpose/internal/pathcanon"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "KICKSTART_PREFIX"
	EnvConfigFile = "KICKSTART_INTERPOSE_CONFIG"
	EnvFilter     = "KICKSTART_INTERPOSE_FILTER"
	EnvDebug      = "KICKSTART_INTERPOSE_DEBUG"
	EnvDebugDir   = "KICKSTART_INTERPOSE_DEBUG_DIR"
)

// ErrNoPrefix means KICKSTART_PREFIX is unset, which disables tracing.
var ErrNoPrefix = errors.New(EnvPrefix + " not set in environment")

// Config holds the library settings.
type Config struct {
	// Prefix is the trace file prefix; the trace is "<Prefix>.<pid>".
	// Only the environment sets it.
	Prefix string `yaml:"-"`

	// FilterPrefixes lists path prefixes that are never traced.
	FilterPrefixes []string `yaml:"filter_prefixes"`

	Debug         bool   `yaml:"debug"`
	DebugDir      string `yaml:"debug_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FilterPrefixes: append([]string(nil), pathcanon.DefaultFilterPrefixes...),
	}
}

// Load builds the configuration from getenv (os.Getenv in production).
// Precedence: environment, then the file named by KICKSTART_INTERPOSE_CONFIG,
// then defaults. A broken config file is reported in the error but the
// returned config is always usable.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	var errs []error
	if path := getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Prefix = getenv(EnvPrefix)

	if v := getenv(EnvFilter); v != "" {
		cfg.FilterPrefixes = splitList(v)
	}
	if v := getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvDebug, err))
		} else {
			cfg.Debug = debug
		}
	}
	if v := getenv(EnvDebugDir); v != "" {
		cfg.DebugDir = v
	}

	return cfg, errors.Join(errs...)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	fileCfg := Default()
	if err := yaml.Unmarshal(data, fileCfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	*c = *fileCfg
	return nil
}

// TracingEnabled reports whether a trace file can be named.
func (c *Config) TracingEnabled() bool {
	return c.Prefix != ""
}

// TracePrefix returns the trace prefix or ErrNoPrefix.
func (c *Config) TracePrefix() (string, error) {
	if !c.TracingEnabled() {
		return "", ErrNoPrefix
	}
	return c.Prefix, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
