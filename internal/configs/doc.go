// Package configs manages keysmith's user configuration.
//
// Configuration is stored in TOML format at <config dir>/keysmith/config.toml:
//
//	installation_id = "8c0f..."
//
//	[store]
//	backend = "file"      # or "sqlite"
//	path = ""             # defaults under the data directory
//
//	[cache]
//	ttl = "15m"
//
//	[kdf]
//	time = 1
//	memory_kib = 65536
//	threads = 4
//
// A missing file means defaults. EnsureConfig writes the defaults and
// generates the installation ID on first use.
//
// # Settings
//
// UserSettings is initialized at startup with the config directory
// (os.UserConfigDir) and the data directory ($XDG_DATA_HOME or
// ~/.local/share), both suffixed with "keysmith". The data directory holds
// the key store and the audit trail.
package configs
