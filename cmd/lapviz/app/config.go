package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/align"
	"github.com/roman-kulish/lap-telemetry/internal/storage"
	"gopkg.in/yaml.v3"
)

const (
	ProviderArchive ProviderType = "archive"
	ProviderCommand ProviderType = "command"

	LightTheme Theme = "light"
	DarkTheme  Theme = "dark"

	defaultDBPath       = "lapviz.db"
	defaultArchiveRoot  = "sessions"
	defaultRenderWidth  = 1280
	defaultRenderHeight = 800
	defaultFontSize     = 14.0
)

// ProviderType selects the upstream telemetry source
type ProviderType string

// Theme selects the background of rendered frames
type Theme string

// Config represents the main application configuration
type Config struct {
	LogLevel string         `yaml:"logLevel"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Align    AlignConfig    `yaml:"align"`
	Render   RenderConfig   `yaml:"render"`
}

// StorageConfig represents the local telemetry cache settings
type StorageConfig struct {
	Path          string        `yaml:"path"`
	IngestTimeout time.Duration `yaml:"ingestTimeout"`
}

// ProviderConfig represents the upstream telemetry source settings
type ProviderConfig struct {
	Type    ProviderType          `yaml:"type"`
	Archive ArchiveProviderConfig `yaml:"archive"`
	Command CommandProviderConfig `yaml:"command"`
}

// ArchiveProviderConfig configures reading session dumps from YAML files
type ArchiveProviderConfig struct {
	Root string `yaml:"root"`
}

// CommandProviderConfig configures running an external exporter
type CommandProviderConfig struct {
	Path                 string   `yaml:"path"`
	Args                 []string `yaml:"args"`
	ParseErrorsThreshold uint8    `yaml:"parseErrorsThreshold"`
}

// AlignConfig represents the lap alignment settings
type AlignConfig struct {
	FrameCount int `yaml:"frameCount"`
}

// RenderConfig represents the frame rendering settings
type RenderConfig struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	Theme    Theme   `yaml:"theme"`
	FontSize float64 `yaml:"fontSize"`
}

// NewConfig returns a configuration with defaults
func NewConfig() *Config {
	return &Config{
		LogLevel: slog.LevelInfo.String(),
		Storage: StorageConfig{
			Path:          defaultDBPath,
			IngestTimeout: storage.DefaultIngestTimeout,
		},
		Provider: ProviderConfig{
			Type:    ProviderArchive,
			Archive: ArchiveProviderConfig{Root: defaultArchiveRoot},
		},
		Align: AlignConfig{FrameCount: align.DefaultFrameCount},
		Render: RenderConfig{
			Width:    defaultRenderWidth,
			Height:   defaultRenderHeight,
			Theme:    LightTheme,
			FontSize: defaultFontSize,
		},
	}
}

// LoadConfig reads the configuration file at path on top of the defaults. An empty
// path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, c.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err = dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Level returns the configured log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level: %q", c.LogLevel)
	}
	return level, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}

	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage path is required"))
	}
	if c.Storage.IngestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid ingest timeout: %s", c.Storage.IngestTimeout))
	}

	switch c.Provider.Type {
	case ProviderArchive:
		if c.Provider.Archive.Root == "" {
			errs = append(errs, errors.New("archive provider root is required"))
		}
	case ProviderCommand:
		if c.Provider.Command.Path == "" {
			errs = append(errs, errors.New("command provider path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider type: %q", c.Provider.Type))
	}

	if c.Align.FrameCount <= 0 {
		errs = append(errs, fmt.Errorf("invalid frame count: %d", c.Align.FrameCount))
	}

	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid render size: %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Render.Theme != LightTheme && c.Render.Theme != DarkTheme {
		errs = append(errs, fmt.Errorf("unknown theme: %q", c.Render.Theme))
	}
	if c.Render.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid font size: %v", c.Render.FontSize))
	}

	return errors.Join(errs...)
}
