package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/keysmith/cmd"
	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keysmith",
	Short: "keysmith - create and edit signing keys from declarative change-sets.",
	Long: `keysmith creates master keys with subkeys and user ids, and applies
change-sets to them. Private keys are sealed under a passphrase, every
operation leaves a replayable log in the audit trail, and long operations
report progress and can be cancelled until they start writing.

Usage:
  keysmith <command> [flags]

Available Commands:
  keys       Create, edit and inspect keys
  config     Manage keysmith configuration

Run 'keysmith help <command>' for more details on a specific command.
`,
	Run: func(cmd *cobra.Command, args []string) {
		banner := figure.NewColorFigure("keysmith", "small", "cyan", true)
		banner.Print()
		fmt.Println()
		fmt.Println("Run 'keysmith --help' to see available commands.")
	},
}

func init() {
	rootCmd.AddCommand(cmd.KeysCmd)
	rootCmd.AddCommand(cmd.ConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
