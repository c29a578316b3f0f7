package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	configFileName = "config.json"
	configDirName  = "pagemark"

	DefaultFontSize    = 14
	DefaultFontFamily  = "Helvetica"
	DefaultTheme       = "dark"
	DefaultLogLevel    = "info"
	DefaultSettleDelay = 100 * time.Millisecond
	DefaultFlash       = 3 * time.Second

	DefaultMetaWarmup        = time.Second
	DefaultMetaRetries       = 15
	DefaultMetaRetryInterval = 500 * time.Millisecond
)

// Duration is a time.Duration that reads and writes as a string ("100ms")
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ReadingConfig holds reader preferences that survive across sessions
type ReadingConfig struct {
	FontSize      int      `json:"font_size"`
	FontFamily    string   `json:"font_family"`
	Theme         string   `json:"theme"`
	SettleDelay   Duration `json:"settle_delay"`
	FlashDuration Duration `json:"flash_duration"`
}

// MetadataConfig controls the bounded metadata retry loop
type MetadataConfig struct {
	Warmup        Duration `json:"warmup"`
	MaxRetries    int      `json:"max_retries"`
	RetryInterval Duration `json:"retry_interval"`
}

// Config holds the application configuration
type Config struct {
	DataDir   string         `json:"data_dir"`
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format,omitempty"`
	Reading   ReadingConfig  `json:"reading"`
	Metadata  MetadataConfig `json:"metadata"`

	// Path to config file (not persisted)
	path string `json:"-"`
}

// Default returns a configuration with every field set to its default
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Reading: ReadingConfig{
			FontSize:      DefaultFontSize,
			FontFamily:    DefaultFontFamily,
			Theme:         DefaultTheme,
			SettleDelay:   Duration(DefaultSettleDelay),
			FlashDuration: Duration(DefaultFlash),
		},
		Metadata: MetadataConfig{
			Warmup:        Duration(DefaultMetaWarmup),
			MaxRetries:    DefaultMetaRetries,
			RetryInterval: Duration(DefaultMetaRetryInterval),
		},
	}
}

// Load loads configuration from the config file
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(configDir, configFileName))
}

// LoadFrom loads configuration from an explicit path
func LoadFrom(configPath string) (*Config, error) {
	cfg := Default()
	cfg.path = configPath

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		// Config doesn't exist, return defaults
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.path = configPath
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(filepath.Dir(c.path), "data")
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Reading.FontSize == 0 {
		c.Reading.FontSize = DefaultFontSize
	}
	if c.Reading.FontFamily == "" {
		c.Reading.FontFamily = DefaultFontFamily
	}
	if c.Reading.Theme == "" {
		c.Reading.Theme = DefaultTheme
	}
	if c.Reading.SettleDelay <= 0 {
		c.Reading.SettleDelay = Duration(DefaultSettleDelay)
	}
	if c.Reading.FlashDuration <= 0 {
		c.Reading.FlashDuration = Duration(DefaultFlash)
	}
	if c.Metadata.MaxRetries <= 0 {
		c.Metadata.MaxRetries = DefaultMetaRetries
	}
	if c.Metadata.RetryInterval <= 0 {
		c.Metadata.RetryInterval = Duration(DefaultMetaRetryInterval)
	}
	if c.Metadata.Warmup < 0 {
		c.Metadata.Warmup = 0
	}
}

// Save persists the configuration to disk
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

// Path returns the file the configuration is stored in
func (c *Config) Path() string {
	return c.path
}

// SetReadingPrefs updates font and theme preferences and saves
func (c *Config) SetReadingPrefs(fontSize int, fontFamily, theme string) error {
	if c.Reading.FontSize == fontSize && c.Reading.FontFamily == fontFamily && c.Reading.Theme == theme {
		return nil
	}
	c.Reading.FontSize = fontSize
	c.Reading.FontFamily = fontFamily
	c.Reading.Theme = theme
	return c.Save()
}

// BooksDir returns the directory imported book files are copied into
func (c *Config) BooksDir() string {
	return filepath.Join(c.DataDir, "books")
}

// CoversDir returns the directory extracted cover images are written to
func (c *Config) CoversDir() string {
	return filepath.Join(c.DataDir, "covers")
}

// DatabasePath returns the path of the library database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "library.sqlite")
}

// getConfigDir returns the directory holding the config file
func getConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}

	return filepath.Join(configDir, configDirName), nil
}
