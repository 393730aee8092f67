package oplog

import "fmt"

// Level classifies an entry for rendering.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelStart
	LevelOK
	LevelCancelled
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelStart:
		return "start"
	case LevelOK:
		return "ok"
	case LevelCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Kind identifies what a log entry records. Kinds are never renumbered
// when logs are merged; they serialize by name.
type Kind int

const (
	KindUnknown Kind = iota

	// Key edit pipeline.
	KindEdit
	KindEditErrorNoChangeSet
	KindEditErrorInvalid
	KindEditFetching
	KindEditErrorKeyNotFound
	KindEditErrorFetch
	KindEditCachingNew
	KindEditCacheFailed
	KindEditSuccess
	KindOperationCancelled

	// Key creation.
	KindCreate
	KindCreateSubKey
	KindCreateUserID
	KindCreateUnprotected
	KindCreateSuccess

	// Key modification.
	KindModify
	KindModifyErrorRevoked
	KindModifyUnlocking
	KindModifyPendingPassphrase
	KindModifyPendingToken
	KindModifyErrorBadPassphrase
	KindModifyErrorBadToken
	KindModifyUserIDAdd
	KindModifyUserIDPrimary
	KindModifyUserIDRevoke
	KindModifyErrorUnknownUserID
	KindModifySubKeyAdd
	KindModifySubKeyChange
	KindModifySubKeyRevoke
	KindModifyErrorUnknownSubKey
	KindModifyPassphrase
	KindModifySuccess

	// Shared engine failures.
	KindEngineErrorInternal
	KindEngineErrorInvalid

	// Key store.
	KindSave
	KindSaveInsert
	KindSaveUpdate
	KindSaveSubKeys
	KindSaveErrorIO
	KindSaveSuccess
)

type kindInfo struct {
	name   string
	level  Level
	format string
}

var kinds = map[Kind]kindInfo{
	KindUnknown: {"unknown", LevelDebug, "Unknown log entry"},

	KindEdit:                 {"edit", LevelStart, "Modifying key"},
	KindEditErrorNoChangeSet: {"edit.error.no_change_set", LevelError, "No change-set supplied"},
	KindEditErrorInvalid:     {"edit.error.invalid", LevelError, "Invalid change-set: %s"},
	KindEditFetching:         {"edit.fetching", LevelDebug, "Fetching key %s"},
	KindEditErrorKeyNotFound: {"edit.error.key_not_found", LevelError, "Key not found"},
	KindEditErrorFetch:       {"edit.error.fetch", LevelError, "Failed to read key: %s"},
	KindEditCachingNew:       {"edit.caching_new", LevelDebug, "Caching new passphrase"},
	KindEditCacheFailed:      {"edit.cache_failed", LevelWarn, "Could not cache new passphrase: %s"},
	KindEditSuccess:          {"edit.success", LevelOK, "Key operation successful"},
	KindOperationCancelled:   {"operation.cancelled", LevelCancelled, "Operation cancelled"},

	KindCreate:            {"create", LevelStart, "Generating new key"},
	KindCreateSubKey:      {"create.sub_key", LevelInfo, "Generated subkey %s (%s)"},
	KindCreateUserID:      {"create.user_id", LevelInfo, "Bound user id %q"},
	KindCreateUnprotected: {"create.unprotected", LevelWarn, "Key has no passphrase"},
	KindCreateSuccess:     {"create.success", LevelOK, "Generated key %s"},

	KindModify:                   {"modify", LevelStart, "Modifying key %s"},
	KindModifyErrorRevoked:       {"modify.error.revoked", LevelError, "Master key is revoked"},
	KindModifyUnlocking:          {"modify.unlocking", LevelDebug, "Unlocking subkey %s"},
	KindModifyPendingPassphrase:  {"modify.pending.passphrase", LevelInfo, "Passphrase required for subkey %s"},
	KindModifyPendingToken:       {"modify.pending.token", LevelInfo, "Token signature required for subkey %s"},
	KindModifyErrorBadPassphrase: {"modify.error.bad_passphrase", LevelError, "Bad passphrase for subkey %s"},
	KindModifyErrorBadToken:      {"modify.error.bad_token", LevelError, "Token signature for subkey %s did not verify"},
	KindModifyUserIDAdd:          {"modify.user_id.add", LevelInfo, "Adding user id %q"},
	KindModifyUserIDPrimary:      {"modify.user_id.primary", LevelInfo, "Setting primary user id %q"},
	KindModifyUserIDRevoke:       {"modify.user_id.revoke", LevelInfo, "Revoking user id %q"},
	KindModifyErrorUnknownUserID: {"modify.error.unknown_user_id", LevelError, "No such user id %q"},
	KindModifySubKeyAdd:          {"modify.sub_key.add", LevelInfo, "Adding subkey %s (%s)"},
	KindModifySubKeyChange:       {"modify.sub_key.change", LevelInfo, "Changing expiry of subkey %s"},
	KindModifySubKeyRevoke:       {"modify.sub_key.revoke", LevelInfo, "Revoking subkey %s"},
	KindModifyErrorUnknownSubKey: {"modify.error.unknown_sub_key", LevelError, "No such subkey %s"},
	KindModifyPassphrase:         {"modify.passphrase", LevelInfo, "Re-encrypting subkeys with new passphrase"},
	KindModifySuccess:            {"modify.success", LevelOK, "Key modified"},

	KindEngineErrorInternal: {"engine.error.internal", LevelError, "Internal error: %s"},
	KindEngineErrorInvalid:  {"engine.error.invalid", LevelError, "Change rejected: %s"},

	KindSave:        {"save", LevelStart, "Saving key %s"},
	KindSaveInsert:  {"save.insert", LevelDebug, "Inserting new key"},
	KindSaveUpdate:  {"save.update", LevelDebug, "Replacing existing key"},
	KindSaveSubKeys: {"save.sub_keys", LevelDebug, "Wrote %s subkeys"},
	KindSaveErrorIO: {"save.error.io", LevelError, "Failed to write key: %s"},
	KindSaveSuccess: {"save.success", LevelOK, "Key saved"},
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, info := range kinds {
		m[info.name] = k
	}
	return m
}()

// Name returns the stable serialized name of the kind.
func (k Kind) Name() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return kinds[KindUnknown].name
}

// Level returns the kind's display level.
func (k Kind) Level() Level {
	if info, ok := kinds[k]; ok {
		return info.level
	}
	return LevelDebug
}

func (k Kind) String() string {
	return k.Name()
}

// Format renders the kind's message with params.
func (k Kind) Format(params []string) string {
	info, ok := kinds[k]
	if !ok {
		info = kinds[KindUnknown]
	}
	if len(params) == 0 {
		return info.format
	}
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}
	return fmt.Sprintf(info.format, args...)
}

// KindByName looks up a kind by its serialized name. Unknown names map to KindUnknown.
func KindByName(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.Name()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = KindByName(string(text))
	return nil
}
