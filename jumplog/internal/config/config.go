// CLAUDE:SUMMARY gjump config structs, YAML loading with env expansion, defaults and ozzo validation.
// Package config handles gjump configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/gjump/capture"
	"github.com/hazyhaar/gjump/entrylog"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config is the top-level gjump configuration.
type Config struct {
	Browser BrowserConfig    `yaml:"browser"`
	Capture capture.Settings `yaml:"capture"`
	Log     LogConfig        `yaml:"log"`
	Store   StoreConfig      `yaml:"store"`
	HTTP    HTTPConfig       `yaml:"http"`
	Sinks   []SinkConfig     `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle and the observed page.
type BrowserConfig struct {
	URL              string        `yaml:"url"`
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
}

// LogConfig bounds the entry log.
type LogConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// StoreConfig selects where the entry snapshot is persisted.
type StoreConfig struct {
	Driver string      `yaml:"driver"` // sqlite | redis | memory
	Path   string      `yaml:"path"`   // sqlite
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig addresses a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HTTPConfig is the panel API listener. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SinkConfig defines an output backend for rendered entry lists.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ReadFile reads a YAML configuration file and applies defaults without
// validating, so callers can override fields first. ${VAR} references are
// expanded from the environment before parsing.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Decode decodes a YAML document and applies defaults.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	c.Capture.Defaults()
	if c.Log.MaxEntries <= 0 {
		c.Log.MaxEntries = entrylog.DefaultMaxEntries
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		c.Store.Path = "gjump.db"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "gjump:"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if err := validation.ValidateStruct(&c.Capture,
		validation.Field(&c.Capture.TopFraction, validation.Max(1.0)),
	); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.MaxEntries, validation.Min(1), validation.Max(100000)),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	for i := range c.Sinks {
		if err := c.Sinks[i].Validate(); err != nil {
			return fmt.Errorf("sinks[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate validates the browser configuration.
func (c *BrowserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Stealth, validation.In("headless", "headful")),
	)
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverRedis, DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver == DriverSQLite, validation.Required)),
		validation.Field(&c.Redis, validation.When(c.Driver == DriverRedis, validation.By(func(any) error {
			if c.Redis.Addr == "" {
				return fmt.Errorf("addr is required")
			}
			return nil
		}))),
	)
}

// Validate validates a sink definition.
func (c *SinkConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.Required, validation.In("stdout", "webhook")),
		validation.Field(&c.URL, validation.When(c.Type == "webhook", validation.Required)),
	)
}
