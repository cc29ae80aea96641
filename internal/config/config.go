package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/logger"
)

// Config holds every input of an update run that can be preset.
type Config struct {
	// URL is the download source.
	URL string `yaml:"url" split_words:"true"`
	// OutputPath is the file replaced by the download.
	OutputPath string `yaml:"out" split_words:"true"`
	// BufferSize is the streaming buffer hint in bytes.
	BufferSize int `yaml:"buffer_size" split_words:"true"`
	// NoBackup disables the backup of an existing target.
	NoBackup bool `yaml:"no_backup" split_words:"true"`
	// KeepBackup keeps the backup after a successful download.
	KeepBackup bool `yaml:"keep_backup" split_words:"true"`
	// Restart starts the new executable after a successful download.
	Restart bool `yaml:"restart" split_words:"true"`
	// ConnectTimeout bounds dialing and waiting for response headers.
	ConnectTimeout time.Duration `yaml:"connect_timeout" split_words:"true"`
	// LogLevel is the minimum level of log lines.
	LogLevel string `yaml:"log_level" split_words:"true"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "self-updater-settings.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SELF_UPDATER"

	// DefaultConnectTimeout is the default dial and response header timeout.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadLogLevel is returned for unknown log levels.
	errBadLogLevel = errors.New("unknown log level")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BufferSize:     domain.DefaultBufferSize,
		ConnectTimeout: DefaultConnectTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads settings from path on top of the defaults and applies environment overrides.
// When optional is true a missing file is not an error.
// Load does not require URL and OutputPath; call Validate once flags are merged.
func Load(path string, optional bool) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// Validate checks that the settings can start an update and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%s: %w", cfg.LogLevel, errBadLogLevel)
	}

	req := cfg.Request()

	return req.Validate()
}

// Request converts the settings into an update request.
func (c *Config) Request() domain.Request {
	return domain.Request{
		URL:          c.URL,
		TargetPath:   c.OutputPath,
		BufferSize:   c.BufferSize,
		SkipBackup:   c.NoBackup,
		KeepBackup:   c.KeepBackup,
		RestartAfter: c.Restart,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = domain.DefaultBufferSize
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}
