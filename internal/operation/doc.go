// Package operation holds the shared vocabulary of multi-step key operations.
//
// # Results
//
// Every operation returns a Result with one of four statuses:
//
//   - Success: carries a typed payload and the log
//   - Error: carries the log and a categorized error (see internal/errors)
//   - Pending: carries the log and a PendingReason naming one missing secret
//   - Cancelled: carries the log; the user aborted before the commit checkpoint
//
// Error and Cancelled stop the remaining stages. Pending is not a failure:
// the caller obtains the named secret (prompt, hardware token) and calls
// the same operation again with an augmented CryptoInput. Nothing was
// persisted, so the operation restarts from its first stage.
//
// # Cancellation
//
// A CancelToken is shared by reference. Each invocation takes a
// CancelScope from it; after the scope's PreventCancel the token is
// ignored for that invocation.
package operation
