// Package shared contains testing utilities shared between integration tests.
// This file provides common functions for setting up test environments,
// capturing output, and running the CLI against a temporary store.
package shared

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/keysmith/cmd"
	"github.com/PolarWolf314/keysmith/internal/configs"
	logger "github.com/PolarWolf314/keysmith/internal/logging"
	"github.com/spf13/cobra"
)

// TestUserID is the user id the integration tests bind to new keys.
const TestUserID = "Test User <testuser@example.com>"

// TestInstallationID is written to the test configuration.
const TestInstallationID = "00000000-0000-4000-8000-000000000001"

// SetupTestEnvironment points the user settings at a temp directory and
// writes a configuration for the given backend with cheap key derivation.
func SetupTestEnvironment(t *testing.T, backend string) string {
	tempUserDir := SetupTestEnvironmentWithoutConfig(t)

	config := configs.DefaultConfig()
	config.InstallationID = TestInstallationID
	config.Store.Backend = backend
	config.Cache.TTL = "1m"
	config.KDF = configs.KDFConfig{Time: 1, MemoryKiB: 64, Threads: 1}
	if err := configs.SaveConfig(config); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	return tempUserDir
}

// SetupTestEnvironmentWithoutConfig points the user settings at a temp
// directory without writing a configuration file.
func SetupTestEnvironmentWithoutConfig(t *testing.T) string {
	tempUserDir := t.TempDir()

	originalUserSettings := configs.UserSettings
	originalConfig := configs.GlobalConfig

	// Cleanup function to restore original state
	t.Cleanup(func() {
		configs.UserSettings = originalUserSettings
		configs.GlobalConfig = originalConfig
		cmd.ResetGlobalState()
		cmd.ResetConfigState()
	})

	// Override user settings to use temp directory
	configs.UserSettings = &configs.Settings{
		ConfigPath: filepath.Join(tempUserDir, "config"),
		DataPath:   filepath.Join(tempUserDir, "data"),
		Username:   "testuser",
	}
	configs.GlobalConfig = nil

	return tempUserDir
}

// CaptureOutput captures both stdout and stderr during function execution.
func CaptureOutput(fn func() error) (string, error) {
	// Save original stdout and stderr
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	// Create pipes to capture output
	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	// Replace stdout and stderr
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	// Channel to collect output
	outputChan := make(chan string, 2)

	// Start goroutines to read from pipes
	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stdoutReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stderrReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	// Execute the function
	err := fn()

	// Close writers to signal EOF
	stdoutWriter.Close()
	stderrWriter.Close()

	// Restore original stdout and stderr
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	// Collect output
	stdout := <-outputChan
	stderr := <-outputChan

	return stdout + stderr, err
}

// CreateTestCLI creates a complete CLI instance running "keys" with the given arguments.
func CreateTestCLI(args ...string) *cobra.Command {
	cmd.ResetGlobalState()
	cmd.SetLogger(logger.Logger{})

	// Create a fresh root command for this test
	rootCmd := &cobra.Command{
		Use:   "keysmith",
		Short: "keysmith - create and edit signing keys from declarative change-sets.",
	}
	rootCmd.AddCommand(cmd.GetKeysCmd())

	// Set args to run the specified subcommand
	rootCmd.SetArgs(append([]string{"keys"}, args...))

	// Reset the persistent flags on the keys command
	for _, name := range []string{"verbose", "debug"} {
		if err := cmd.GetKeysCmd().PersistentFlags().Set(name, "false"); err != nil {
			log.Fatalf("Failed to set %s flag for testing: %s", name, err)
		}
	}

	return rootCmd
}

// CreateConfigTestCLI creates a complete CLI instance running "config" with the given arguments.
func CreateConfigTestCLI(args ...string) *cobra.Command {
	cmd.ResetConfigState()

	rootCmd := &cobra.Command{
		Use:   "keysmith",
		Short: "keysmith - create and edit signing keys from declarative change-sets.",
	}
	rootCmd.AddCommand(cmd.GetConfigCmd())
	rootCmd.SetArgs(append([]string{"config"}, args...))

	for _, name := range []string{"verbose", "debug"} {
		if err := cmd.GetConfigCmd().PersistentFlags().Set(name, "false"); err != nil {
			log.Fatalf("Failed to set %s flag for testing: %s", name, err)
		}
	}

	return rootCmd
}

// RunKeys runs "keys" with the given arguments and returns its output.
func RunKeys(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return CaptureOutput(func() error {
		return CreateTestCLI(args...).Execute()
	})
}

// CreateUnprotectedKey creates a key without a passphrase for userID and returns its id.
func CreateUnprotectedKey(t *testing.T, userID string) string {
	t.Helper()

	output, err := RunKeys(t, "create", "--uid", userID, "--no-passphrase")
	if err != nil {
		t.Fatalf("Failed to create key: %v\n%s", err, output)
	}

	for _, k := range ListKeys(t) {
		if k.UserID == userID {
			return k.ID
		}
	}
	t.Fatalf("Created key for %q not found in list", userID)
	return ""
}

// ListedKey is one entry of "keys list --json".
type ListedKey struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	SubKeys int    `json:"sub_keys"`
	Revoked bool   `json:"revoked"`
}

// ListKeys runs "keys list --all --json" and decodes its output.
func ListKeys(t *testing.T) []ListedKey {
	t.Helper()

	output, err := RunKeys(t, "list", "--all", "--json")
	if err != nil {
		t.Fatalf("Failed to list keys: %v\n%s", err, output)
	}

	var listed []ListedKey
	if err := json.NewDecoder(strings.NewReader(jsonPart(output))).Decode(&listed); err != nil {
		t.Fatalf("Failed to parse key list: %v\n%s", err, output)
	}
	return listed
}

// WriteChangeSet writes a change-set file into dir and returns its path.
func WriteChangeSet(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "changes.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write change-set: %v", err)
	}
	return path
}

// jsonPart strips anything printed before the JSON document.
func jsonPart(output string) string {
	if i := strings.IndexAny(output, "[{"); i >= 0 {
		return output[i:]
	}
	return output
}
