package configs

import (
	"log"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/keysmith/internal/utils"
)

// Settings holds the per-user paths keysmith reads and writes.
type Settings struct {
	ConfigPath string
	DataPath   string
	Username   string
}

// UserSettings is initialized at startup. Tests point its paths at temp dirs.
var UserSettings *Settings

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")

	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	username, err := utils.GetUsername()
	if err != nil {
		username = "unknown"
	}

	UserSettings = &Settings{
		ConfigPath: filepath.Join(configDir, "keysmith"),
		DataPath:   filepath.Join(dataDir, "keysmith"),
		Username:   username,
	}
}

// ConfigFile is the path of config.toml.
func (s *Settings) ConfigFile() string {
	return filepath.Join(s.ConfigPath, "config.toml")
}

// AuditLogPath is the path of the audit trail.
func (s *Settings) AuditLogPath() string {
	return filepath.Join(s.DataPath, "audit.jsonl")
}

// DefaultStorePath returns where a backend keeps its keys when the config
// does not say otherwise.
func (s *Settings) DefaultStorePath(backend string) string {
	if backend == BackendSQLite {
		return filepath.Join(s.DataPath, "keys.db")
	}
	return filepath.Join(s.DataPath, "keys")
}
