package errors

import "errors"

// Lookup errors indicate a referenced key or part of a key could not be located.
var (
	// ErrKeyNotFound indicates the referenced key is not in the key store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnknownSubKey indicates a change-set references a subkey the key does not have.
	ErrUnknownSubKey = errors.New("subkey not found on key")

	// ErrUnknownUserID indicates a change-set references a user id the key does not have.
	ErrUnknownUserID = errors.New("user id not found on key")
)

// Request errors indicate the edit request itself is unusable.
var (
	// ErrNoChangeSet indicates the operation was started without a change-set.
	ErrNoChangeSet = errors.New("no change-set supplied")

	// ErrInvalidChangeSet indicates the change-set is malformed or contradictory.
	ErrInvalidChangeSet = errors.New("invalid change-set")
)

// Cryptographic errors indicate the key engine rejected the change-set.
var (
	// ErrEngineFailure indicates the key engine could not apply the change-set.
	ErrEngineFailure = errors.New("key engine failed")

	// ErrBadPassphrase indicates a supplied passphrase did not unlock the subkey.
	ErrBadPassphrase = errors.New("bad passphrase")

	// ErrBadTokenSignature indicates a hardware token response did not verify.
	ErrBadTokenSignature = errors.New("token signature did not verify")

	// ErrKeyRevoked indicates the master key is revoked and cannot be modified.
	ErrKeyRevoked = errors.New("key is revoked")
)

// Storage errors indicate the key store could not read or persist a key.
var (
	// ErrStorageFailure indicates a key could not be read from or written to the store.
	// Partially applied writes must not be assumed persisted.
	ErrStorageFailure = errors.New("key storage failed")

	// ErrUnknownBackend indicates the configured store backend is not supported.
	ErrUnknownBackend = errors.New("unknown key store backend")
)

// ErrOperationFailed is the fallback for failed results that carry no specific cause.
var ErrOperationFailed = errors.New("operation failed")

// Interaction and query errors.
var (
	// ErrTooManyAttempts indicates the interactive retry loop gave up.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrInputAborted indicates the user declined to supply a requested secret.
	ErrInputAborted = errors.New("input aborted")

	// ErrInvalidDateFormat indicates a date filter is not in YYYY-MM-DD format.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// ErrNoAuditLog indicates no audit log has been written yet.
	ErrNoAuditLog = errors.New("no audit log found")
)
