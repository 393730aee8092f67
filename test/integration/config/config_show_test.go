package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/PolarWolf314/keysmith/internal/configs"
	"github.com/PolarWolf314/keysmith/test/integration/shared"
)

// TestConfigShow contains tests for the `keysmith config show` command.
func TestConfigShow(t *testing.T) {
	t.Run("ShowConfig", func(t *testing.T) {
		testConfigShowConfig(t)
	})

	t.Run("ShowConfigJSON", func(t *testing.T) {
		testConfigShowConfigJSON(t)
	})

	t.Run("ShowDefaultsWithoutConfig", func(t *testing.T) {
		testConfigShowDefaultsWithoutConfig(t)
	})
}

// testConfigShowConfig tests showing the configuration.
func testConfigShowConfig(t *testing.T) {
	shared.SetupTestEnvironment(t, configs.BackendSQLite)

	output := runConfig(t, "show")
	for _, want := range []string{"Configuration", shared.TestInstallationID, "sqlite", "keys.db", "1m", "audit.jsonl"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

// testConfigShowConfigJSON tests showing the configuration in JSON format.
func testConfigShowConfigJSON(t *testing.T) {
	shared.SetupTestEnvironment(t, configs.BackendFile)

	output := runConfig(t, "show", "--json")

	var shown configs.Config
	if err := json.NewDecoder(strings.NewReader(output[strings.Index(output, "{"):])).Decode(&shown); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\n%s", err, output)
	}
	if shown.InstallationID != shared.TestInstallationID || shown.Store.Backend != configs.BackendFile {
		t.Errorf("Unexpected config %+v", shown)
	}
	if shown.KDF.MemoryKiB != 64 {
		t.Errorf("Expected test kdf memory 64, got %d", shown.KDF.MemoryKiB)
	}
}

// testConfigShowDefaultsWithoutConfig tests that defaults are shown when no file exists.
func testConfigShowDefaultsWithoutConfig(t *testing.T) {
	shared.SetupTestEnvironmentWithoutConfig(t)

	output := runConfig(t, "show")
	if !strings.Contains(output, "not yet assigned") {
		t.Errorf("Expected missing installation id note, got: %s", output)
	}
	if !strings.Contains(output, configs.BackendFile) {
		t.Errorf("Expected default backend in output, got: %s", output)
	}
}
