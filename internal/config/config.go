package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/mortality-audit/internal/utils"
)

const (
	envPrefix = "MORTAUDIT"
	dirName   = ".mortaudit"
)

// Global configuration structure.
type Global struct {
	// HTTP server
	ServerHost         string `mapstructure:"server_host" yaml:"server_host"`
	ServerPort         int    `mapstructure:"server_port" yaml:"server_port"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Sessions
	SessionTTLMin int `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	SessionMax    int `mapstructure:"session_max" yaml:"session_max"`

	// Uploads
	UploadMaxBytes int64 `mapstructure:"upload_max_bytes" yaml:"upload_max_bytes"`
	MaxRows        int   `mapstructure:"max_rows" yaml:"max_rows"`
	PreviewRows    int   `mapstructure:"preview_rows" yaml:"preview_rows"`

	// Per-client request limits; rate_limit_rps <= 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`

	HistogramBins int `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	DurationBins  int `mapstructure:"duration_bins" yaml:"duration_bins"`
}

// LogConfig is the subset of settings used to build the logger.
type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Log returns the logger settings; logs go to stderr so command output stays clean.
func (c *Global) Log() LogConfig {
	return LogConfig{Level: c.LogLevel, Format: c.LogFormat, OutputPath: "stderr"}
}

// Addr is the host:port the dashboard listens on.
func (c *Global) Addr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

// SessionTTL is the idle lifetime of a dashboard session.
func (c *Global) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// Validate reports settings that cannot work.
func (c *Global) Validate() error {
	switch {
	case c.ServerPort <= 0 || c.ServerPort > 65535:
		return fmt.Errorf("server_port out of range: %d", c.ServerPort)
	case c.UploadMaxBytes <= 0:
		return fmt.Errorf("upload_max_bytes must be positive")
	case c.MaxRows < 0:
		return fmt.Errorf("max_rows must not be negative")
	case c.HistogramBins < 1 || c.DurationBins < 1:
		return fmt.Errorf("histogram_bins and duration_bins must be at least 1")
	case c.LogFormat != "json" && c.LogFormat != "console":
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// DefaultPath returns ~/.mortaudit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.mortaudit/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("read_timeout_sec", 30)
	v.SetDefault("write_timeout_sec", 60)
	v.SetDefault("shutdown_timeout_sec", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("session_ttl_min", 120)
	v.SetDefault("session_max", 1000)
	v.SetDefault("upload_max_bytes", 20<<20)
	v.SetDefault("max_rows", 200000)
	v.SetDefault("preview_rows", 20)
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("histogram_bins", 20)
	v.SetDefault("duration_bins", 10)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, dirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file falls back to env and defaults
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
