package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
)

func withTempSettings(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	old := *UserSettings
	UserSettings.ConfigPath = filepath.Join(tempDir, "config")
	UserSettings.DataPath = filepath.Join(tempDir, "data")
	t.Cleanup(func() {
		*UserSettings = old
	})
	return tempDir
}

func TestGenerateInstallationID(t *testing.T) {
	id := GenerateInstallationID()
	if id == "" {
		t.Fatal("GenerateInstallationID returned empty string")
	}

	if len(id) != 36 {
		t.Fatalf("Expected UUID length 36, got %d", len(id))
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if config.Store.Backend != BackendFile {
		t.Errorf("Expected backend %q, got %q", BackendFile, config.Store.Backend)
	}
	ttl, err := config.CacheTTL()
	if err != nil {
		t.Fatalf("CacheTTL failed: %v", err)
	}
	if ttl != DefaultCacheTTL {
		t.Errorf("Expected TTL %v, got %v", DefaultCacheTTL, ttl)
	}
	if config.KDFParams() != keys.DefaultKDFParams {
		t.Errorf("Expected default KDF params, got %+v", config.KDFParams())
	}
}

func TestLoadConfigNonExistent(t *testing.T) {
	withTempSettings(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Store.Backend != BackendFile {
		t.Errorf("Expected default backend, got %q", config.Store.Backend)
	}
	if config.InstallationID != "" {
		t.Errorf("Expected no installation ID, got %q", config.InstallationID)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	withTempSettings(t)

	config := DefaultConfig()
	config.InstallationID = "test-installation"
	config.Store = StoreConfig{Backend: BackendSQLite, Path: "/tmp/keys.db"}
	config.Cache.TTL = "90s"
	config.KDF = KDFConfig{Time: 2, MemoryKiB: 1024, Threads: 2}

	if err := SaveConfig(config); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.InstallationID != config.InstallationID {
		t.Errorf("Expected installation ID %q, got %q", config.InstallationID, loaded.InstallationID)
	}
	if loaded.Store != config.Store {
		t.Errorf("Expected store %+v, got %+v", config.Store, loaded.Store)
	}
	if ttl, _ := loaded.CacheTTL(); ttl != 90*time.Second {
		t.Errorf("Expected TTL 90s, got %v", ttl)
	}
	if loaded.KDF != config.KDF {
		t.Errorf("Expected KDF %+v, got %+v", config.KDF, loaded.KDF)
	}
	if loaded.StorePath() != "/tmp/keys.db" {
		t.Errorf("Expected configured store path, got %q", loaded.StorePath())
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	withTempSettings(t)

	if err := os.MkdirAll(UserSettings.ConfigPath, 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	content := "[store]\nbackend = \"sqlite\"\n"
	if err := os.WriteFile(UserSettings.ConfigFile(), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Store.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", config.Store.Backend)
	}
	if config.Cache.TTL != DefaultCacheTTL.String() {
		t.Errorf("Expected default TTL to survive, got %q", config.Cache.TTL)
	}
	expected := filepath.Join(UserSettings.DataPath, "keys.db")
	if config.StorePath() != expected {
		t.Errorf("Expected store path %q, got %q", expected, config.StorePath())
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"UnknownBackend", "[store]\nbackend = \"postgres\"\n", kerrors.ErrUnknownBackend},
		{"BadTTL", "[cache]\nttl = \"soon\"\n", nil},
		{"ZeroThreads", "[kdf]\ntime = 1\nmemory_kib = 64\nthreads = 0\n", nil},
		{"Malformed", "this is not toml", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withTempSettings(t)
			if err := os.MkdirAll(UserSettings.ConfigPath, 0700); err != nil {
				t.Fatalf("MkdirAll failed: %v", err)
			}
			if err := os.WriteFile(UserSettings.ConfigFile(), []byte(tc.content), 0600); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestEnsureConfigCreatesInstallationID(t *testing.T) {
	withTempSettings(t)

	config, err := EnsureConfig()
	if err != nil {
		t.Fatalf("EnsureConfig failed: %v", err)
	}

	if config.InstallationID == "" {
		t.Fatal("EnsureConfig did not generate an installation ID")
	}
	if _, err := os.Stat(UserSettings.ConfigFile()); err != nil {
		t.Fatalf("Expected config file to exist: %v", err)
	}

	again, err := EnsureConfig()
	if err != nil {
		t.Fatalf("EnsureConfig failed: %v", err)
	}
	if again.InstallationID != config.InstallationID {
		t.Errorf("Installation ID changed: expected %q, got %q", config.InstallationID, again.InstallationID)
	}
}

func TestSettingsPaths(t *testing.T) {
	tempDir := withTempSettings(t)

	if got := UserSettings.AuditLogPath(); got != filepath.Join(tempDir, "data", "audit.jsonl") {
		t.Errorf("Unexpected audit log path %q", got)
	}
	if got := UserSettings.DefaultStorePath(BackendFile); got != filepath.Join(tempDir, "data", "keys") {
		t.Errorf("Unexpected file store path %q", got)
	}
	if got := UserSettings.DefaultStorePath(BackendSQLite); got != filepath.Join(tempDir, "data", "keys.db") {
		t.Errorf("Unexpected sqlite store path %q", got)
	}
}
