package cmd

import (
	"github.com/PolarWolf314/keysmith/internal/configs"
	logger "github.com/PolarWolf314/keysmith/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	KeysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Create, edit and inspect keys",
		Long:  `Provides creation, editing, listing and inspection of keys, and access to the audit log of key operations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing keys command with verbose=%t, debug=%t", verbose, debug)

			config, err := configs.EnsureConfig()
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to load configuration: %v", err)
			}
			configs.GlobalConfig = config
			Logger.Debugf("Using %s store at %s", config.Store.Backend, config.StorePath())
			return nil
		},
	}
)

func init() {
	KeysCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	KeysCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	KeysCmd.AddCommand(keysCreateCmd)
	KeysCmd.AddCommand(keysEditCmd)
	KeysCmd.AddCommand(keysListCmd)
	KeysCmd.AddCommand(keysShowCmd)
	KeysCmd.AddCommand(keysLogCmd)
}

// Helper functions for testing

// GetKeysCmd returns the KeysCmd for testing.
func GetKeysCmd() *cobra.Command {
	return KeysCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetCreateCommandState()
	resetEditCommandState()
	resetListCommandState()
	resetShowCommandState()
	resetLogCommandState()
}

// SetVerbose sets the verbose flag for testing.
func SetVerbose(v bool) {
	verbose = v
}

// SetDebug sets the debug flag for testing.
func SetDebug(d bool) {
	debug = d
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
