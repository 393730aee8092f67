package operation

import (
	"bytes"
	"sort"
	"sync"

	"github.com/PolarWolf314/keysmith/internal/keys"
)

// SecretRef identifies which subkey of which key a secret unlocks.
type SecretRef struct {
	Key    keys.KeyID
	SubKey keys.KeyID
}

type tokenResponse struct {
	digest    []byte
	signature []byte
}

// CryptoInput carries interactively supplied secrets into one invocation.
// The caller owns it; the pipeline only borrows it. A nil *CryptoInput
// behaves as empty.
type CryptoInput struct {
	mu          sync.Mutex
	passphrases map[SecretRef][]byte
	tokens      map[SecretRef]tokenResponse
	consumed    map[SecretRef]bool
}

// NewCryptoInput returns an empty input.
func NewCryptoInput() *CryptoInput {
	return &CryptoInput{
		passphrases: make(map[SecretRef][]byte),
		tokens:      make(map[SecretRef]tokenResponse),
		consumed:    make(map[SecretRef]bool),
	}
}

func (c *CryptoInput) ensure() {
	if c.passphrases == nil {
		c.passphrases = make(map[SecretRef][]byte)
	}
	if c.tokens == nil {
		c.tokens = make(map[SecretRef]tokenResponse)
	}
	if c.consumed == nil {
		c.consumed = make(map[SecretRef]bool)
	}
}

// WithPassphrase stores a passphrase for ref and returns the input for chaining.
// The bytes are copied.
func (c *CryptoInput) WithPassphrase(ref SecretRef, passphrase []byte) *CryptoInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure()
	c.passphrases[ref] = append([]byte(nil), passphrase...)
	return c
}

// WithTokenSignature stores a hardware token's signature over digest for ref.
func (c *CryptoInput) WithTokenSignature(ref SecretRef, digest, signature []byte) *CryptoInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure()
	c.tokens[ref] = tokenResponse{
		digest:    append([]byte(nil), digest...),
		signature: append([]byte(nil), signature...),
	}
	return c
}

// Passphrase returns the passphrase for ref. Subkeys without a dedicated
// entry fall back to the master key's passphrase.
func (c *CryptoInput) Passphrase(ref SecretRef) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.passphrases[ref]; ok {
		return p, true
	}
	if ref.SubKey != ref.Key {
		if p, ok := c.passphrases[SecretRef{Key: ref.Key, SubKey: ref.Key}]; ok {
			return p, true
		}
	}
	return nil, false
}

// HasPassphrase reports whether a passphrase was supplied for exactly ref, without fallback.
func (c *CryptoInput) HasPassphrase(ref SecretRef) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.passphrases[ref]
	return ok
}

// TokenSignature returns the token signature for ref if it was made over digest.
func (c *CryptoInput) TokenSignature(ref SecretRef, digest []byte) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[ref]
	if !ok || !bytes.Equal(t.digest, digest) {
		return nil, false
	}
	return t.signature, true
}

// Consume marks ref as used. It returns false when ref was already consumed,
// so each secret is used at most once per invocation.
func (c *CryptoInput) Consume(ref SecretRef) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure()
	if c.consumed[ref] {
		return false
	}
	c.consumed[ref] = true
	return true
}

// Unconsumed lists supplied refs that were never consumed, sorted. Leftovers are not an error.
func (c *CryptoInput) Unconsumed() []SecretRef {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SecretRef
	seen := make(map[SecretRef]bool)
	for ref := range c.passphrases {
		if !c.consumed[ref] && !seen[ref] {
			out = append(out, ref)
			seen[ref] = true
		}
	}
	for ref := range c.tokens {
		if !c.consumed[ref] && !seen[ref] {
			out = append(out, ref)
			seen[ref] = true
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].SubKey < out[j].SubKey
	})
	return out
}

// ResetConsumed clears consumption marks so the same input can be reused
// for a fresh invocation.
func (c *CryptoInput) ResetConsumed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed = make(map[SecretRef]bool)
}

// Wipe zeroes every stored secret and empties the input.
func (c *CryptoInput) Wipe() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for ref, p := range c.passphrases {
		zero(p)
		delete(c.passphrases, ref)
	}
	for ref, t := range c.tokens {
		zero(t.signature)
		delete(c.tokens, ref)
	}
	c.consumed = make(map[SecretRef]bool)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
