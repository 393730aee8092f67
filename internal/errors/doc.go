// Package errors provides typed error values for keysmith.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
//   - Lookup errors: the referenced key or component is absent (ErrKeyNotFound)
//   - Request errors: the change-set is missing or malformed (ErrNoChangeSet)
//   - Crypto errors: the key engine rejected the change (ErrEngineFailure, ErrBadPassphrase)
//   - Storage errors: the key store failed (ErrStorageFailure)
//
// Pending and cancelled outcomes are not errors. They are statuses on an
// operation.Result and never show up here.
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("%w: subkey %s", errors.ErrUnknownSubKey, id)
//
// Handle errors in the CLI layer:
//
//	if errors.Is(result.Err(), kerrors.ErrKeyNotFound) {
//	    // Show user-friendly message
//	}
package errors
