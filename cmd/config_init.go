package cmd

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/keysmith/internal/audit"
	"github.com/PolarWolf314/keysmith/internal/configs"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configInitBackend    string
	configInitStorePath  string
	configInitCacheTTL   string
	configInitKDFTime    uint32
	configInitKDFMemory  uint32
	configInitKDFThreads uint8
	configInitForce      bool
)

func init() {
	defaults := configs.DefaultConfig()
	configInitCmd.Flags().StringVar(&configInitBackend, "backend", defaults.Store.Backend, "key store backend (file or sqlite)")
	configInitCmd.Flags().StringVar(&configInitStorePath, "store-path", "", "key store location (defaults to the data directory)")
	configInitCmd.Flags().StringVar(&configInitCacheTTL, "cache-ttl", defaults.Cache.TTL, "how long new passphrases stay cached (0s disables)")
	configInitCmd.Flags().Uint32Var(&configInitKDFTime, "kdf-time", defaults.KDF.Time, "argon2id time cost")
	configInitCmd.Flags().Uint32Var(&configInitKDFMemory, "kdf-memory", defaults.KDF.MemoryKiB, "argon2id memory cost in KiB")
	configInitCmd.Flags().Uint8Var(&configInitKDFThreads, "kdf-threads", defaults.KDF.Threads, "argon2id parallelism")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing configuration")
	ConfigCmd.AddCommand(configInitCmd)
}

// resetConfigInitState resets the config init command's global state for testing.
func resetConfigInitState() {
	defaults := configs.DefaultConfig()
	configInitBackend = defaults.Store.Backend
	configInitStorePath = ""
	configInitCacheTTL = defaults.Cache.TTL
	configInitKDFTime = defaults.KDF.Time
	configInitKDFMemory = defaults.KDF.MemoryKiB
	configInitKDFThreads = defaults.KDF.Threads
	configInitForce = false
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long: `Writes the keysmith configuration file.

An existing configuration is kept unless --force is given. The installation
id of an existing configuration survives a forced rewrite.

Examples:
  # Defaults: file store, 15 minute cache
  keysmith config init

  # SQLite store without passphrase caching
  keysmith config init --backend sqlite --cache-ttl 0s

  # Cheaper key derivation on a small machine
  keysmith config init --kdf-memory 19456 --kdf-threads 1 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigLogger.Infof("Starting config init command")

		path := configs.UserSettings.ConfigFile()
		existing, err := configs.LoadConfig()
		if err != nil && !configInitForce {
			fmt.Println(color.RedString("✗") + " " + err.Error())
			fmt.Println(color.CyanString("→") + " Run with " + color.YellowString("--force") + " to overwrite it")
			return nil
		}

		if _, statErr := os.Stat(path); statErr == nil && !configInitForce {
			ConfigLogger.Infof("Configuration already exists at %s", path)
			fmt.Println(color.GreenString("✓") + " Configuration already exists at " + color.YellowString(path))
			fmt.Println(color.CyanString("→") + " Run with " + color.YellowString("--force") + " to overwrite it")
			return nil
		}

		config := &configs.Config{
			Store: configs.StoreConfig{Backend: configInitBackend, Path: configInitStorePath},
			Cache: configs.CacheConfig{TTL: configInitCacheTTL},
			KDF: configs.KDFConfig{
				Time:      configInitKDFTime,
				MemoryKiB: configInitKDFMemory,
				Threads:   configInitKDFThreads,
			},
		}
		if existing != nil {
			config.InstallationID = existing.InstallationID
		}
		if config.InstallationID == "" {
			config.InstallationID = configs.GenerateInstallationID()
		}

		if err := config.Validate(); err != nil {
			fmt.Println(color.RedString("✗") + " " + err.Error())
			return nil
		}

		ConfigLogger.Debugf("Saving config to %s", path)
		if err := configs.SaveConfig(config); err != nil {
			return ConfigLogger.ErrorfAndReturn("Failed to save config: %v", err)
		}

		configs.GlobalConfig = config
		entry := audit.LogWithUser("config-init")
		entry.Outcome = "success"
		audit.Log(entry)

		fmt.Println(color.GreenString("✓") + " Configuration saved to " + color.YellowString(path))
		fmt.Println()
		fmt.Println("Your settings:")
		fmt.Println("  Store:     " + color.CyanString(config.Store.Backend) + " at " + color.CyanString(config.StorePath()))
		fmt.Println("  Cache TTL: " + color.CyanString(config.Cache.TTL))
		fmt.Printf("  KDF:       time=%d memory=%dKiB threads=%d\n", config.KDF.Time, config.KDF.MemoryKiB, config.KDF.Threads)
		return nil
	},
}
