package passcache

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/utils"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrCacheDisabled is returned by Insert when the cache has no lifetime.
var ErrCacheDisabled = errors.New("passphrase cache is disabled")

// PassphraseCache remembers unlock secrets for a limited time.
type PassphraseCache interface {
	// Insert caches secret for the given subkey. label is shown to the user
	// when listing cached entries.
	Insert(key, subKey keys.KeyID, secret []byte, label string) error
}

type entryKey struct {
	key, subKey keys.KeyID
}

type entry struct {
	label   string
	nonce   [24]byte
	box     []byte
	expires time.Time
}

// Entry describes a cached secret without revealing it.
type Entry struct {
	Key     keys.KeyID
	SubKey  keys.KeyID
	Label   string
	Expires time.Time
}

// MemoryCache is a PassphraseCache held in process memory. Secrets are
// sealed with a random per-cache key and zeroed when they expire.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	sealKey [32]byte
	entries map[entryKey]*entry

	// Now is the clock used for expiry.
	Now func() time.Time
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) (*MemoryCache, error) {
	c := &MemoryCache{
		ttl:     ttl,
		entries: make(map[entryKey]*entry),
		Now:     time.Now,
	}
	if _, err := io.ReadFull(rand.Reader, c.sealKey[:]); err != nil {
		return nil, fmt.Errorf("generating cache key: %w", err)
	}
	return c, nil
}

// TTL returns the lifetime of new entries.
func (c *MemoryCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

func (c *MemoryCache) Insert(key, subKey keys.KeyID, secret []byte, label string) error {
	e := &entry{label: label}
	if _, err := io.ReadFull(rand.Reader, e.nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return ErrCacheDisabled
	}
	e.box = secretbox.Seal(nil, secret, &e.nonce, &c.sealKey)
	e.expires = c.Now().Add(c.ttl)

	k := entryKey{key, subKey}
	if old, ok := c.entries[k]; ok {
		utils.ZeroBytes(old.box)
	}
	c.entries[k] = e
	return nil
}

// Get returns a copy of the cached secret. The caller should zero it after use.
func (c *MemoryCache) Get(key, subKey keys.KeyID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := entryKey{key, subKey}
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if !c.Now().Before(e.expires) {
		c.evict(k, e)
		return nil, false
	}
	secret, ok := secretbox.Open(nil, e.box, &e.nonce, &c.sealKey)
	if !ok {
		c.evict(k, e)
		return nil, false
	}
	return secret, true
}

// Forget removes one entry.
func (c *MemoryCache) Forget(key, subKey keys.KeyID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := entryKey{key, subKey}
	if e, ok := c.entries[k]; ok {
		c.evict(k, e)
	}
}

// Sweep evicts expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			c.evict(k, e)
			removed++
		}
	}
	return removed
}

// Purge evicts everything and discards the sealing key.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		c.evict(k, e)
	}
	utils.ZeroBytes(c.sealKey[:])
	c.ttl = 0
}

// Entries lists live entries ordered by key then subkey.
func (c *MemoryCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Now()
	out := make([]Entry, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Before(e.expires) {
			out = append(out, Entry{Key: k.key, SubKey: k.subKey, Label: e.label, Expires: e.expires})
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

func (c *MemoryCache) evict(k entryKey, e *entry) {
	utils.ZeroBytes(e.box)
	delete(c.entries, k)
}
