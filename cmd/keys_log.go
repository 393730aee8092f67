package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PolarWolf314/keysmith/internal/audit"
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	logLimit     int
	logReverse   bool
	logUser      string
	logOperation string
	logKeyID     string
	logOutcome   string
	logSince     string
	logUntil     string
	logOneline   bool
	logJSON      bool
	logDetails   bool
)

func init() {
	keysLogCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	keysLogCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	keysLogCmd.Flags().StringVar(&logUser, "user", "", "filter by user@host")
	keysLogCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	keysLogCmd.Flags().StringVar(&logKeyID, "key", "", "filter by master key id")
	keysLogCmd.Flags().StringVar(&logOutcome, "outcome", "", "filter by outcome (success, error, pending, cancelled)")
	keysLogCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	keysLogCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	keysLogCmd.Flags().BoolVar(&logOneline, "oneline", false, "compact one-line format")
	keysLogCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
	keysLogCmd.Flags().BoolVar(&logDetails, "details", false, "replay the operation log of each entry")
}

// resetLogCommandState resets the log command's global state for testing.
func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logOperation = ""
	logKeyID = ""
	logOutcome = ""
	logSince = ""
	logUntil = ""
	logOneline = false
	logJSON = false
	logDetails = false
}

var keysLogCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays the audit log of key operations.

Shows who created or edited which key, when, and how it ended. Every entry
carries the operation's full log, which --details replays.

Examples:
  keysmith keys log                             # View full log
  keysmith keys log -n 10                       # Last 10 entries
  keysmith keys log --reverse                   # Most recent first
  keysmith keys log --key 1A2B3C4D5E6F7081      # Filter by key
  keysmith keys log --outcome error --details   # Failures with their logs
  keysmith keys log --since 2024-01-01          # Filter by date
  keysmith keys log --json                      # JSON output`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting log command")

	spinner, cleanup := startSpinner("Loading audit log...", verbose)
	defer cleanup()

	opts := workflows.LogOptions{
		Limit:      logLimit,
		Reverse:    logReverse,
		User:       logUser,
		Operations: logOperation,
		KeyID:      logKeyID,
		Outcome:    logOutcome,
		Since:      logSince,
		Until:      logUntil,
	}

	result, err := workflows.Log(context.Background(), opts)
	if err != nil {
		spinner.FinalMSG = formatLogError(err)
		if isLogUnexpectedError(err) {
			return err
		}
		return nil
	}

	Logger.Debugf("Parsed %d entries from audit log", result.TotalEntriesBeforeFilter)
	Logger.Debugf("After filtering: %d entries", len(result.Entries))

	spinner.FinalMSG = ""
	if len(result.Entries) == 0 {
		if result.TotalEntriesBeforeFilter == 0 {
			fmt.Println("No audit log entries found.")
		} else {
			fmt.Println("No audit log entries found matching the filters.")
		}
		return nil
	}

	if logJSON {
		return outputLogJSON(result.Entries)
	}

	if logOneline {
		outputLogOneline(result.Entries)
		return nil
	}

	outputLogDefault(result.Entries)
	return nil
}

// formatLogError formats a log error for display to the user.
func formatLogError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrNoAuditLog):
		return ui.Info.Sprint("ℹ") + " No audit log found. Operations will be logged after running any keys command.\n"

	case errors.Is(err, kerrors.ErrInvalidDateFormat):
		return ui.Error.Sprint("✗") + " " + err.Error()

	default:
		return ui.Error.Sprint("✗") + " Failed to read audit log: " + err.Error()
	}
}

// isLogUnexpectedError returns true if the error is unexpected and should cause a non-zero exit.
func isLogUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrNoAuditLog),
		errors.Is(err, kerrors.ErrInvalidDateFormat):
		return false
	default:
		return true
	}
}

func outputLogJSON(entries []audit.Entry) error {
	if !logDetails {
		stripped := make([]audit.Entry, len(entries))
		for i, e := range entries {
			e.Log = nil
			stripped[i] = e
		}
		entries = stripped
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputLogOneline(entries []audit.Entry) {
	for _, e := range entries {
		date := workflows.FormatDate(e.Timestamp)
		fmt.Printf("%s %s %s %s %s\n", date, e.User, e.Operation, e.Outcome, shortKeyID(e.KeyID))
	}
}

func outputLogDefault(entries []audit.Entry) {
	for _, e := range entries {
		datetime := workflows.FormatDateTime(e.Timestamp)
		details := workflows.FormatDetails(e)
		fmt.Printf("%-19s  %-25s  %-6s  %-9s  %-16s  %s\n", datetime, e.User, e.Operation, e.Outcome, e.KeyID, details)
		if logDetails && e.Log != nil {
			for _, line := range strings.SplitAfter(ui.RenderLog(e.Log, debug), "\n") {
				if line != "" {
					fmt.Print("    " + line)
				}
			}
		}
	}
}

// shortKeyID returns the last eight hex digits of a key id.
func shortKeyID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	if id == "" {
		return "-"
	}
	return id
}
