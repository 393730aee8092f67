// Package engine implements the key engine: it creates key rings and
// applies change-sets to them.
//
// Private keys are ed25519 seeds sealed with secretbox under a key
// derived from the unlock passphrase with argon2id. The engine never
// prompts. When it needs a secret the CryptoInput does not hold, it
// returns a Pending result naming that secret, and the caller retries
// with the secret added.
//
// Secrets are requested in a fixed order: the master key first, then the
// other subkeys in ring order (only when the change-set sets a new unlock
// secret). A master key kept on a hardware token is represented by the
// token's signature over the change-set digest.
package engine
