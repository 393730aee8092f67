// Package keystore persists key rings.
//
// Two backends implement KeyStore: FileStore writes one TOML file per key
// under the data directory, SQLiteStore keeps every key in a single
// SQLite database. Open picks one from the configuration.
//
// CommitSecret returns an operation result with its own log (save,
// insert or update, subkey count, success) so callers can merge it into
// a larger operation. Storage failures wrap ErrStorageFailure; missing
// keys wrap ErrKeyNotFound.
package keystore
