package dieselshare

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the configuration shared by the demo and plugin hosts.
type Config struct {
	Surface SurfaceConfig `mapstructure:"surface"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Handoff HandoffConfig `mapstructure:"handoff"`
	Window  WindowConfig  `mapstructure:"window"`
	Vulkan  VulkanConfig  `mapstructure:"vulkan"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type SurfaceConfig struct {
	Name   string `mapstructure:"name"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Format string `mapstructure:"format"`
}

type BrokerConfig struct {
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	// Duplication selects how an opener obtains the creator's handles:
	// "rights" (passed over the channel) or "pidfd" (linux, pulled from the creator).
	Duplication string `mapstructure:"duplication"`
}

type HandoffConfig struct {
	FenceTimeout time.Duration `mapstructure:"fence_timeout"`
	// Frames stops the demo loop after this many frames, 0 runs until the window closes.
	Frames int `mapstructure:"frames"`
}

type WindowConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Title  string `mapstructure:"title"`
}

type VulkanConfig struct {
	AppName        string `mapstructure:"app_name"`
	Validation     bool   `mapstructure:"validation"`
	VertexShader   string `mapstructure:"vertex_shader"`
	FragmentShader string `mapstructure:"fragment_shader"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Surface: SurfaceConfig{
			Name:   "demo",
			Width:  1280,
			Height: 720,
			Format: "rgba8",
		},
		Broker: BrokerConfig{
			OpenTimeout: 500 * time.Millisecond,
			Duplication: "rights",
		},
		Handoff: HandoffConfig{
			FenceTimeout: 100 * time.Millisecond,
			Frames:       0,
		},
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			Title:  "dieselshare",
		},
		Vulkan: VulkanConfig{
			AppName:        "dieselshare",
			Validation:     false,
			VertexShader:   "shaders/triangle.vert.spv",
			FragmentShader: "shaders/triangle.frag.spv",
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "",
			Console: true,
		},
	}
}

// LoadConfig reads configuration from file, environment and defaults into v.
// Flags bound to v by the caller take precedence.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dieselshare"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("dieselshare")
	}

	v.SetEnvPrefix("DIESELSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Surface.Name == "" {
		return errors.New("surface.name must not be empty")
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return errors.New("surface.width and surface.height must be positive")
	}
	f, err := ParseFormat(c.Surface.Format)
	if err != nil {
		return err
	}
	if !f.Valid() {
		return fmt.Errorf("surface.format must be one of: %v", []string{"rgba8", "depth32"})
	}
	if c.Broker.OpenTimeout <= 0 {
		return errors.New("broker.open_timeout must be positive")
	}
	switch c.Broker.Duplication {
	case "rights", "pidfd":
	default:
		return fmt.Errorf("broker.duplication must be one of: %v", []string{"rights", "pidfd"})
	}
	if c.Handoff.FenceTimeout <= 0 {
		return errors.New("handoff.fence_timeout must be positive")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.New("window.width and window.height must be positive")
	}
	return nil
}

// SurfaceFormat is the parsed surface.format value.
func (c *Config) SurfaceFormat() Format {
	f, _ := ParseFormat(c.Surface.Format)
	return f
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("surface.name", cfg.Surface.Name)
	v.SetDefault("surface.width", cfg.Surface.Width)
	v.SetDefault("surface.height", cfg.Surface.Height)
	v.SetDefault("surface.format", cfg.Surface.Format)

	v.SetDefault("broker.open_timeout", cfg.Broker.OpenTimeout)
	v.SetDefault("broker.duplication", cfg.Broker.Duplication)

	v.SetDefault("handoff.fence_timeout", cfg.Handoff.FenceTimeout)
	v.SetDefault("handoff.frames", cfg.Handoff.Frames)

	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("window.title", cfg.Window.Title)

	v.SetDefault("vulkan.app_name", cfg.Vulkan.AppName)
	v.SetDefault("vulkan.validation", cfg.Vulkan.Validation)
	v.SetDefault("vulkan.vertex_shader", cfg.Vulkan.VertexShader)
	v.SetDefault("vulkan.fragment_shader", cfg.Vulkan.FragmentShader)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
