package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	listAll  bool
	listJSON bool
)

func init() {
	keysListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include revoked keys")
	keysListCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")
}

// resetListCommandState resets the list command's global state for testing.
func resetListCommandState() {
	listAll = false
	listJSON = false
}

// keySummaryJSON is the JSON form of a listed key.
type keySummaryJSON struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	UserIDs  int    `json:"user_ids"`
	SubKeys  int    `json:"sub_keys"`
	Revoked  bool   `json:"revoked"`
	Expired  bool   `json:"expired"`
	Modified string `json:"modified"`
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	Long: `Lists the keys in the configured store with their primary user id.

Revoked keys are hidden unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting list command")

	store, err := openStore()
	if err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " Failed to open key store: " + err.Error())
		return err
	}
	defer store.Close()

	summaries, err := workflows.ListKeys(context.Background(), store, workflows.ListKeysOptions{IncludeRevoked: listAll})
	if err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
		return err
	}
	Logger.Debugf("Found %d keys", len(summaries))

	if listJSON {
		out := make([]keySummaryJSON, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, keySummaryJSON{
				ID:       s.ID.String(),
				UserID:   s.PrimaryID,
				UserIDs:  s.UserIDs,
				SubKeys:  s.SubKeys,
				Revoked:  s.Revoked,
				Expired:  s.Expired,
				Modified: workflows.FormatTime(s.Modified),
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal keys to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(summaries) == 0 {
		fmt.Println("No keys found.")
		fmt.Println(ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keysmith keys create --uid <user id>") + " to create one")
		return nil
	}

	for _, s := range summaries {
		state := ""
		switch {
		case s.Revoked:
			state = " " + ui.Muted.Sprint("revoked")
		case s.Expired:
			state = " " + ui.Muted.Sprint("expired")
		}
		fmt.Printf("%s  %s  %d subkeys%s\n", ui.Highlight.Sprint(s.ID.String()), s.PrimaryID, s.SubKeys, state)
	}
	return nil
}
