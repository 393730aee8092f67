package configs

import (
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/google/uuid"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultCacheTTL is how long a new passphrase stays cached.
const DefaultCacheTTL = 15 * time.Minute

type Config struct {
	InstallationID string      `toml:"installation_id"`
	Store          StoreConfig `toml:"store"`
	Cache          CacheConfig `toml:"cache"`
	KDF            KDFConfig   `toml:"kdf"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`

	// Path overrides the backend's default location under the data directory.
	Path string `toml:"path,omitempty"`
}

type CacheConfig struct {
	// TTL is a Go duration string such as "15m". "0s" disables caching.
	TTL string `toml:"ttl"`
}

type KDFConfig struct {
	Time      uint32 `toml:"time"`
	MemoryKiB uint32 `toml:"memory_kib"`
	Threads   uint8  `toml:"threads"`
}

// GlobalConfig is loaded by the root command before any subcommand runs.
var GlobalConfig *Config

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendFile},
		Cache: CacheConfig{TTL: DefaultCacheTTL.String()},
		KDF: KDFConfig{
			Time:      keys.DefaultKDFParams.Time,
			MemoryKiB: keys.DefaultKDFParams.MemoryKiB,
			Threads:   keys.DefaultKDFParams.Threads,
		},
	}
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", kerrors.ErrUnknownBackend, c.Store.Backend)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.KDF.Time == 0 || c.KDF.Threads == 0 || c.KDF.MemoryKiB < 8*uint32(c.KDF.Threads) {
		return fmt.Errorf("invalid kdf parameters: time=%d memory_kib=%d threads=%d", c.KDF.Time, c.KDF.MemoryKiB, c.KDF.Threads)
	}
	return nil
}

// CacheTTL parses the cache TTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("invalid cache ttl %q: must not be negative", c.Cache.TTL)
	}
	return ttl, nil
}

// KDFParams returns the argon2id costs for newly sealed secrets.
func (c *Config) KDFParams() keys.KDFParams {
	return keys.KDFParams{Time: c.KDF.Time, MemoryKiB: c.KDF.MemoryKiB, Threads: c.KDF.Threads}
}

// StorePath returns the configured store path, or the backend default.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return UserSettings.DefaultStorePath(c.Store.Backend)
}

// LoadConfig loads the config file. A missing file yields the defaults.
// Keys absent from the file keep their default values.
func LoadConfig() (*Config, error) {
	configPath := UserSettings.ConfigFile()

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the config file.
func SaveConfig(config *Config) error {
	if err := SaveTOML(UserSettings.ConfigFile(), config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// GenerateInstallationID generates a new UUID identifying this installation in audit records.
func GenerateInstallationID() string {
	return uuid.New().String()
}

// EnsureConfig ensures the config file exists and has an installation ID.
func EnsureConfig() (*Config, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if _, statErr := os.Stat(UserSettings.ConfigFile()); os.IsNotExist(statErr) || config.InstallationID == "" {
		if config.InstallationID == "" {
			config.InstallationID = GenerateInstallationID()
		}
		if err := SaveConfig(config); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return config, nil
}
