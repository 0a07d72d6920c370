package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	UI     UIConfig    `json:"ui" mapstructure:"ui"`
	Data   DataConfig  `json:"data" mapstructure:"data"`
	Images ImageConfig `json:"images" mapstructure:"images"`
	Log    LogConfig   `json:"log" mapstructure:"log"`
}

// UIConfig represents UI configuration
type UIConfig struct {
	Theme        string `json:"theme" mapstructure:"theme"`
	WindowWidth  int    `json:"window_width" mapstructure:"window_width"`
	WindowHeight int    `json:"window_height" mapstructure:"window_height"`
}

// DataConfig represents data storage configuration
type DataConfig struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	Backend    string `json:"backend" mapstructure:"backend"` // "json" or "sqlite"
	DebounceMS int    `json:"debounce_ms" mapstructure:"debounce_ms"`
}

// ImageConfig controls how attached images are stored
type ImageConfig struct {
	JPEGQuality  int `json:"jpeg_quality" mapstructure:"jpeg_quality"`
	MaxDimension int `json:"max_dimension" mapstructure:"max_dimension"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Debug bool   `json:"debug" mapstructure:"debug"`
}

// DebounceWindow returns the autosave quiet period
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Data.DebounceMS) * time.Millisecond
}

// DefaultConfig returns the configuration written on first run
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			Theme:        "light",
			WindowWidth:  1000,
			WindowHeight: 700,
		},
		Data: DataConfig{
			Dir:        defaultDataDir(),
			Backend:    "json",
			DebounceMS: 500,
		},
		Images: ImageConfig{
			JPEGQuality:  DefaultJPEGQuality,
			MaxDimension: DefaultMaxDimension,
		},
		Log: LogConfig{
			Dir: filepath.Join(defaultDataDir(), "logs"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("ui.theme", def.UI.Theme)
	v.SetDefault("ui.window_width", def.UI.WindowWidth)
	v.SetDefault("ui.window_height", def.UI.WindowHeight)
	v.SetDefault("data.dir", def.Data.Dir)
	v.SetDefault("data.backend", def.Data.Backend)
	v.SetDefault("data.debounce_ms", def.Data.DebounceMS)
	v.SetDefault("images.jpeg_quality", def.Images.JPEGQuality)
	v.SetDefault("images.max_dimension", def.Images.MaxDimension)
	v.SetDefault("log.dir", def.Log.Dir)
	v.SetDefault("log.debug", def.Log.Debug)
}

// LoadConfig loads configuration from file, filling unset keys with defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Expand paths
	config.Data.Dir = expandPath(config.Data.Dir)
	config.Log.Dir = expandPath(config.Log.Dir)

	return &config, nil
}

// Validate rejects values the application cannot run with
func (c *Config) Validate() error {
	switch c.Data.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid data.backend %q (want \"json\" or \"sqlite\")", c.Data.Backend)
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	if c.Data.DebounceMS < 0 {
		return fmt.Errorf("data.debounce_ms must not be negative")
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return fmt.Errorf("images.jpeg_quality must be between 1 and 100")
	}
	if c.Images.MaxDimension < 0 {
		return fmt.Errorf("images.max_dimension must not be negative")
	}
	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := WriteFileAtomic(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	// Expand ~
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// Make absolute
	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

func defaultDataDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(configDir, "notechat")
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to current directory
		return "./config/notechat.json"
	}

	return filepath.Join(configDir, "notechat", "config.json")
}

// EnsureDefaultConfig creates a default config file at configPath if it doesn't exist
func EnsureDefaultConfig(configPath string) (string, error) {
	if configPath == "" {
		configPath = GetConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	if err := SaveConfig(configPath, DefaultConfig()); err != nil {
		return "", err
	}

	return configPath, nil
}
