// Package config loads reqgraph settings from reqgraph.yaml, REQGRAPH_*
// environment variables and built-in defaults, in that order of precedence
// (environment wins over the file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file name without extension.
const FileName = "reqgraph"

// EnvPrefix is the prefix of environment overrides, e.g. REQGRAPH_DATA_DIR.
const EnvPrefix = "REQGRAPH"

// Config holds the runtime settings.
type Config struct {
	// DataDir holds the SQLite database.
	DataDir string `mapstructure:"data_dir"`
	// Project scopes CLI commands; MCP tools take the project per call.
	Project string `mapstructure:"project"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// PadLength is the zero-pad width of allocated requirement IDs.
	PadLength int `mapstructure:"pad_length"`
	// Tracing enables the OpenTelemetry stdout exporters.
	Tracing bool `mapstructure:"tracing"`
	// OTLPEndpoint, when set with Tracing, also ships spans over OTLP/gRPC.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// DefaultDataDir returns ~/.reqgraph, falling back to ./.reqgraph when the
// home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reqgraph"
	}
	return filepath.Join(home, ".reqgraph")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:   DefaultDataDir(),
		Project:   "default",
		LogLevel:  "info",
		PadLength: 3,
	}
}

// Load reads the configuration. An explicit path must exist; otherwise
// reqgraph.yaml is looked up in the data dir and the working directory and
// may be absent.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDataDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("project", d.Project)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("pad_length", d.PadLength)
	v.SetDefault("tracing", d.Tracing)
	v.SetDefault("otlp_endpoint", d.OTLPEndpoint)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must not be empty")
	}
	if strings.TrimSpace(c.Project) == "" {
		return errors.New("project must not be empty")
	}
	if c.PadLength < 0 {
		return fmt.Errorf("pad_length must be >= 0, got %d", c.PadLength)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be one of: debug, info, warn, error", c.LogLevel)
	}
	return nil
}
