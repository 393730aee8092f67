// Package keys defines key rings, subkeys, user ids and the change-sets
// that describe edits to them.
//
// A KeyID is derived from a public key. The master key is always the
// first subkey of a ring, and the ring's MasterKeyID is its id.
// Change-sets can be loaded from YAML files:
//
//	master_key_id: 8F3A61C2D4E5B607
//	add_user_ids: ["Alice <alice@example.com>"]
//	add_sub_keys:
//	  - flags: sign
//	    expiry: 2027-01-01T00:00:00Z
package keys
