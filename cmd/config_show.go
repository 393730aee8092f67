package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/keysmith/internal/configs"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configShowJSON bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
	ConfigCmd.AddCommand(configShowCmd)
}

// resetConfigShowState resets the config show command's global state for testing.
func resetConfigShowState() {
	configShowJSON = false
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Displays the effective keysmith configuration.

Values missing from the configuration file are shown with their defaults.

Examples:
  keysmith config show
  keysmith config show --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigLogger.Infof("Starting config show command")
		ConfigLogger.Debugf("Loading config from %s", configs.UserSettings.ConfigFile())

		config, err := configs.LoadConfig()
		if err != nil {
			fmt.Println(color.RedString("✗") + " " + err.Error())
			return nil
		}

		if configShowJSON {
			ConfigLogger.Debugf("Outputting config as JSON")
			output, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return ConfigLogger.ErrorfAndReturn("Failed to marshal config to JSON: %v", err)
			}
			fmt.Println(string(output))
			return nil
		}

		outputConfigText(config)
		return nil
	},
}

// outputConfigText outputs the config in human-readable format.
func outputConfigText(config *configs.Config) {
	fmt.Println(color.CyanString("Configuration") + " (" + configs.UserSettings.ConfigFile() + "):")
	fmt.Println()
	installation := config.InstallationID
	if installation == "" {
		installation = "(not yet assigned)"
	}
	fmt.Printf("  %-14s %s\n", "Installation:", color.YellowString(installation))
	fmt.Printf("  %-14s %s\n", "Store:", color.GreenString(config.Store.Backend))
	fmt.Printf("  %-14s %s\n", "Store path:", color.GreenString(config.StorePath()))
	fmt.Printf("  %-14s %s\n", "Cache TTL:", color.GreenString(config.Cache.TTL))
	fmt.Printf("  %-14s %s\n", "Audit log:", color.GreenString(configs.UserSettings.AuditLogPath()))
	fmt.Println()
	fmt.Println(color.CyanString("Key derivation (argon2id):"))
	fmt.Printf("  %-14s %d\n", "Time:", config.KDF.Time)
	fmt.Printf("  %-14s %d KiB\n", "Memory:", config.KDF.MemoryKiB)
	fmt.Printf("  %-14s %d\n", "Threads:", config.KDF.Threads)
}
