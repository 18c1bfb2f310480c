package jumplog

import (
	"github.com/hazyhaar/gjump/jumplog/internal/config"
)

// Config is the top-level gjump configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle and the observed page.
type BrowserConfig = config.BrowserConfig

// StoreConfig selects where the entry snapshot is persisted.
type StoreConfig = config.StoreConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// Store drivers.
const (
	DriverSQLite = config.DriverSQLite
	DriverRedis  = config.DriverRedis
	DriverMemory = config.DriverMemory
)

// LoadConfigFile reads, defaults and validates a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ReadConfigFile reads a YAML configuration file and applies defaults
// without validating. Call Validate after applying overrides.
func ReadConfigFile(path string) (*Config, error) {
	return config.ReadFile(path)
}

// DefaultConfig returns a configuration with every default applied. The
// page URL is left empty.
func DefaultConfig() *Config {
	return config.Default()
}
