package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/workflows"
	"github.com/spf13/cobra"
)

var showJSON bool

func init() {
	keysShowCmd.Flags().BoolVar(&showJSON, "json", false, "output in JSON format")
}

// resetShowCommandState resets the show command's global state for testing.
func resetShowCommandState() {
	showJSON = false
}

type subKeyJSON struct {
	ID        string `json:"id"`
	Flags     string `json:"flags"`
	Created   string `json:"created"`
	Expiry    string `json:"expiry,omitempty"`
	Revoked   bool   `json:"revoked"`
	Protected bool   `json:"protected"`
	OnToken   bool   `json:"on_token"`
}

type userIDJSON struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Revoked bool   `json:"revoked"`
}

// keyJSON is the public JSON form of a key. Secret material is never included.
type keyJSON struct {
	ID       string       `json:"id"`
	Created  string       `json:"created"`
	Modified string       `json:"modified"`
	UserIDs  []userIDJSON `json:"user_ids"`
	SubKeys  []subKeyJSON `json:"sub_keys"`
}

var keysShowCmd = &cobra.Command{
	Use:   "show <key id>",
	Short: "Show a key's user ids and subkeys",
	Long: `Shows the user ids and subkeys of a key. The id may be the master key id
or the id of any of its subkeys.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting show command")

	id, err := keys.ParseKeyID(args[0])
	if err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " " + ui.Highlight.Sprint(args[0]) + " is not a valid key id")
		return nil
	}

	store, err := openStore()
	if err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " Failed to open key store: " + err.Error())
		return err
	}
	defer store.Close()

	ring, err := workflows.ShowKey(context.Background(), store, id)
	if err != nil {
		if errors.Is(err, kerrors.ErrKeyNotFound) {
			fmt.Println(ui.Error.Sprint("✗") + " No key with id " + ui.Highlight.Sprint(id.String()))
			return nil
		}
		fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
		return err
	}

	if showJSON {
		data, err := json.MarshalIndent(toKeyJSON(ring), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal key to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(formatKey(ring, time.Now()))
	return nil
}

func toKeyJSON(ring *keys.KeyRing) keyJSON {
	out := keyJSON{
		ID:       ring.MasterKeyID.String(),
		Created:  workflows.FormatTime(ring.Created),
		Modified: workflows.FormatTime(ring.Modified),
		UserIDs:  make([]userIDJSON, 0, len(ring.UserIDs)),
		SubKeys:  make([]subKeyJSON, 0, len(ring.SubKeys)),
	}
	for _, uid := range ring.UserIDs {
		out.UserIDs = append(out.UserIDs, userIDJSON{Value: uid.Value, Primary: uid.Primary, Revoked: uid.Revoked})
	}
	for _, sk := range ring.SubKeys {
		s := subKeyJSON{
			ID:        sk.ID.String(),
			Flags:     sk.Flags.String(),
			Created:   workflows.FormatTime(sk.Created),
			Revoked:   sk.Revoked,
			Protected: !sk.Secret.IsEmpty() && !sk.Secret.Unprotected,
			OnToken:   sk.OnToken,
		}
		if sk.Expiry != nil {
			s.Expiry = workflows.FormatTime(*sk.Expiry)
		}
		out.SubKeys = append(out.SubKeys, s)
	}
	return out
}

func formatKey(ring *keys.KeyRing, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key %s\n", ui.Highlight.Sprint(ring.MasterKeyID.String()))
	fmt.Fprintf(&b, "  Created:  %s\n", workflows.FormatTime(ring.Created))
	fmt.Fprintf(&b, "  Modified: %s\n", workflows.FormatTime(ring.Modified))

	b.WriteString("\nUser ids:\n")
	for _, uid := range ring.UserIDs {
		var tags []string
		if uid.Primary {
			tags = append(tags, "primary")
		}
		if uid.Revoked {
			tags = append(tags, "revoked")
		}
		line := "  " + uid.Value
		if len(tags) > 0 {
			line += " " + ui.Muted.Sprint(strings.Join(tags, ", "))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nSubkeys:\n")
	for i, sk := range ring.SubKeys {
		var tags []string
		if i == 0 {
			tags = append(tags, "master")
		}
		switch {
		case sk.OnToken:
			tags = append(tags, "on token")
		case sk.Secret.Unprotected:
			tags = append(tags, "unprotected")
		}
		if sk.Revoked {
			tags = append(tags, "revoked")
		} else if sk.Expired(now) {
			tags = append(tags, "expired")
		}
		expiry := "never"
		if sk.Expiry != nil {
			expiry = sk.Expiry.UTC().Format("2006-01-02")
		}
		line := fmt.Sprintf("  %s  %-22s expires %s", sk.ID, sk.Flags, expiry)
		if len(tags) > 0 {
			line += " " + ui.Muted.Sprint(strings.Join(tags, ", "))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
