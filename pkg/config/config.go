// Package config loads and validates the server configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (QUILLNFS_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	// Server holds network and export settings.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds network and export settings.
type ServerConfig struct {
	// BindAddress is the interface to listen on; empty means all.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port serving NFS, MOUNT and PORTMAP.
	Port uint16 `mapstructure:"port" validate:"required" yaml:"port"`

	// ExportName is the dirpath clients mount, e.g. "/export".
	ExportName string `mapstructure:"export_name" validate:"required,startswith=/" yaml:"export_name"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics HTTP listener on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the HTTP address for /metrics.
	Listen string `mapstructure:"listen" validate:"required_if=Enabled true,omitempty,hostname_port" yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: "",
			Port:        11111,
			ExportName:  "/export",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}

// Load reads the configuration from the given file path (optional),
// applying environment overrides and defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("server.bind_address", defaults.Server.BindAddress)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.export_name", defaults.Server.ExportName)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.listen", defaults.Metrics.Listen)

	v.SetEnvPrefix("QUILLNFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("configuration validation: %w", err)
	}
	return nil
}

// WriteSample writes a commented sample configuration file. Refuses to
// overwrite unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal sample config: %w", err)
	}

	header := "# quillnfs configuration\n# Environment overrides use the QUILLNFS_ prefix, e.g. QUILLNFS_SERVER_PORT.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
