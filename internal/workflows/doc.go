// Package workflows provides high-level orchestration for keysmith commands.
//
// Workflows coordinate the key engine, the key store, the passphrase cache,
// sync notifiers and the audit trail to implement complete user-facing
// features. Each workflow handles a single command's business logic,
// independent of CLI concerns like flag parsing, spinners, and output
// formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Fetching and committing keys
//   - Answering interactive input requests
//   - Recording audit trail entries
//
// # Available Workflows
//
//   - RunEditKey: Creates or edits one key from a change-set
//   - RunEditKeyInteractive: RunEditKey, answering Pending results with a Prompter
//   - ListKeys: Summarizes stored keys
//   - ShowKey: Loads one key by master or subkey id
//   - Log: Reads and filters the audit trail
//
// # The Edit Pipeline
//
// RunEditKey runs these phases in order:
//
//	Start -> Fetching -> Engine -> CancelCheck -> Committing -> Caching -> Done
//
// Creation skips Fetching. Every failure, Pending and Cancelled result
// leaves the store untouched. Once CancelCheck passes, cancellation is
// disabled for the rest of the run and the commit completes even when the
// caller's context is cancelled.
//
// Progress is reported as 0 at start, 10 before the engine, 60 after it,
// 95 after the commit and 100 when done. The engine and the store report
// into the 10..60 and 60..95 bands.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	res := workflows.RunEditKey(ctx, deps, changes, input, sink, token)
//	if errors.Is(res.Err(), kerrors.ErrKeyNotFound) {
//	    // Show user-friendly message
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// This enables cancellation, timeouts, and passing request-scoped values.
package workflows
