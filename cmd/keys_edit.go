package cmd

import (
	"context"

	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/utils"
	"github.com/spf13/cobra"
)

var editNewPassphrase bool

func init() {
	keysEditCmd.Flags().BoolVar(&editNewPassphrase, "new-passphrase", false, "set a new passphrase for every subkey")
}

// resetEditCommandState resets the edit command's global state for testing.
func resetEditCommandState() {
	editNewPassphrase = false
}

var keysEditCmd = &cobra.Command{
	Use:   "edit <change-set>",
	Short: "Apply a change-set to a key",
	Long: `Applies a YAML or JSON change-set to an existing key.

The change-set names the key with master_key_id and lists the user ids and
subkeys to add, change or revoke. Use "-" to read the change-set from stdin.
If the key is protected you are asked for its passphrase.

Examples:
  keysmith keys edit changes.yaml
  cat changes.yaml | keysmith keys edit -
  keysmith keys edit changes.yaml --new-passphrase`,
	Args: cobra.ExactArgs(1),
	RunE: runEditCmd,
}

func runEditCmd(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting edit command")

	var (
		changes *keys.ChangeSet
		err     error
	)
	if args[0] == "-" {
		data, rerr := utils.ReadStdin()
		if rerr != nil {
			return Logger.ErrorfAndReturn("Failed to read change-set from stdin: %v", rerr)
		}
		changes, err = keys.ParseChangeSet(data)
	} else {
		Logger.Debugf("Loading change-set from %s", args[0])
		changes, err = keys.LoadChangeSet(args[0])
	}
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load change-set: %v", err)
	}

	if changes.IsCreate() {
		return Logger.ErrorfAndReturn("The change-set has no master_key_id, use %s to create keys", ui.Code.Sprint("keysmith keys create"))
	}

	if editNewPassphrase {
		if !utils.IsTTYAvailable() {
			return Logger.ErrorfAndReturn("No terminal is available to read the new passphrase")
		}
		passphrase, err := readNewPassphrase()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}
		changes.NewUnlock = &keys.NewUnlock{Passphrase: string(passphrase)}
		utils.ZeroBytes(passphrase)
	}

	spinner, cleanup := startSpinner("Editing key...", verbose)
	defer cleanup()

	id := *changes.MasterKeyID
	res, err := runEdit(context.Background(), spinner, "Editing key...", changes, id.String())
	if err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error()
		return err
	}

	if _, ok := res.Payload(); !ok {
		spinner.FinalMSG = formatEditResult(res, "")
		if res.IsFatal() && !res.IsCancelled() {
			return res.Err()
		}
		return nil
	}

	spinner.FinalMSG = formatEditResult(res, "Updated key "+ui.Highlight.Sprint(id.String()))
	return nil
}
