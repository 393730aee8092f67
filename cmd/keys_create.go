package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/utils"
	"github.com/spf13/cobra"
)

var (
	createUserIDs      []string
	createMasterFlags  string
	createSubKeys      []string
	createExpiry       string
	createNoPassphrase bool
)

func init() {
	defineCreateFlags()
}

// defineCreateFlags registers the create flags with their defaults.
func defineCreateFlags() {
	keysCreateCmd.Flags().StringArrayVarP(&createUserIDs, "uid", "u", nil, "user id to bind, e.g. \"Alice <alice@example.com>\" (repeatable, first is primary)")
	keysCreateCmd.Flags().StringVar(&createMasterFlags, "master", "certify,sign", "capabilities of the master key")
	keysCreateCmd.Flags().StringArrayVar(&createSubKeys, "subkey", []string{"encrypt"}, "capabilities of an additional subkey (repeatable)")
	keysCreateCmd.Flags().StringVar(&createExpiry, "expiry", "", "expiry date of all subkeys (YYYY-MM-DD)")
	keysCreateCmd.Flags().BoolVar(&createNoPassphrase, "no-passphrase", false, "store the key without a passphrase")
}

// resetCreateCommandState resets the create command's global state for testing.
func resetCreateCommandState() {
	keysCreateCmd.ResetFlags()
	defineCreateFlags()
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new key",
	Long: `Generates a new master key with subkeys and binds user ids to it.

The first subkey is the master key and must be able to certify. Unless
--no-passphrase is given you are asked for a passphrase that protects every
subkey.

Examples:
  keysmith keys create --uid "Alice <alice@example.com>"
  keysmith keys create --uid "Alice <alice@example.com>" --subkey encrypt --subkey auth
  keysmith keys create --uid "CI bot" --no-passphrase --expiry 2027-01-01`,
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting create command")

	changes, err := buildCreateChangeSet()
	if err != nil {
		return Logger.ErrorfAndReturn("Invalid arguments: %v", err)
	}

	if !createNoPassphrase {
		if !utils.IsTTYAvailable() {
			return Logger.ErrorfAndReturn("A passphrase is required but no terminal is available (use --no-passphrase)")
		}
		passphrase, err := readNewPassphrase()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}
		changes.NewUnlock = &keys.NewUnlock{Passphrase: string(passphrase)}
		utils.ZeroBytes(passphrase)
	}

	spinner, cleanup := startSpinner("Generating key...", verbose)
	defer cleanup()

	res, err := runEdit(context.Background(), spinner, "Generating key...", changes, createUserIDs[0])
	if err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error()
		return err
	}

	outcome, ok := res.Payload()
	if !ok {
		spinner.FinalMSG = formatEditResult(res, "")
		if res.IsFatal() && !res.IsCancelled() {
			return res.Err()
		}
		return nil
	}

	spinner.FinalMSG = formatEditResult(res, "Created key "+ui.Highlight.Sprint(outcome.KeyID.String())+" for "+ui.Highlight.Sprint(createUserIDs[0]))
	return nil
}

// buildCreateChangeSet turns the create flags into a change-set.
func buildCreateChangeSet() (*keys.ChangeSet, error) {
	if len(createUserIDs) == 0 {
		return nil, fmt.Errorf("at least one --uid is required")
	}

	var expiry *time.Time
	if createExpiry != "" {
		t, err := time.Parse("2006-01-02", createExpiry)
		if err != nil {
			return nil, fmt.Errorf("--expiry must be YYYY-MM-DD: %w", err)
		}
		expiry = &t
	}

	masterFlags, err := keys.ParseFlags(createMasterFlags)
	if err != nil {
		return nil, err
	}
	changes := &keys.ChangeSet{
		AddUserIDs: append([]string(nil), createUserIDs...),
		AddSubKeys: []keys.SubKeyAdd{{Flags: masterFlags, Expiry: expiry}},
	}
	for _, s := range createSubKeys {
		flags, err := keys.ParseFlags(s)
		if err != nil {
			return nil, err
		}
		changes.AddSubKeys = append(changes.AddSubKeys, keys.SubKeyAdd{Flags: flags, Expiry: expiry})
	}

	for _, uid := range createUserIDs {
		if email, ok := utils.UserIDEmail(uid); ok && !utils.IsValidEmail(email) {
			Logger.Warnf("User id %q has an unusual email address %q", uid, email)
		}
	}
	return changes, nil
}
