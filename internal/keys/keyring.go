package keys

import (
	"fmt"
	"strings"
	"time"
)

// Flags describes what a subkey may be used for.
type Flags uint8

const (
	FlagCertify Flags = 1 << iota
	FlagSign
	FlagEncrypt
	FlagAuthenticate
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagCertify, "certify"},
	{FlagSign, "sign"},
	{FlagEncrypt, "encrypt"},
	{FlagAuthenticate, "auth"},
}

// Has reports whether all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseFlags parses a comma separated list such as "certify,sign".
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown key flag %q", part)
		}
	}
	return f, nil
}

func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Flags) UnmarshalText(text []byte) error {
	parsed, err := ParseFlags(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// KDFParams are the argon2id costs a secret was sealed with.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams follow the OWASP argon2id recommendation.
var DefaultKDFParams = KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

// SealedSecret is a subkey's private key encrypted under its unlock passphrase.
type SealedSecret struct {
	KDF   KDFParams `json:"kdf"`
	Salt  []byte    `json:"salt"`
	Nonce []byte    `json:"nonce"`
	Box   []byte    `json:"box"`

	// Unprotected is set when the secret was sealed with an empty passphrase.
	Unprotected bool `json:"unprotected"`
}

// IsEmpty reports whether there is no secret material, e.g. for token-backed subkeys.
func (s SealedSecret) IsEmpty() bool {
	return len(s.Box) == 0
}

// SubKey is one key of a key ring. The first subkey is the master key.
type SubKey struct {
	ID        KeyID        `json:"id"`
	Flags     Flags        `json:"flags"`
	Created   time.Time    `json:"created"`
	Expiry    *time.Time   `json:"expiry,omitempty"`
	Revoked   bool         `json:"revoked"`
	PublicKey []byte       `json:"public_key"`
	Secret    SealedSecret `json:"secret"`

	// OnToken marks subkeys whose private half lives on a hardware token.
	OnToken bool `json:"on_token"`
}

// Expired reports whether the subkey has expired at t.
func (s SubKey) Expired(t time.Time) bool {
	return s.Expiry != nil && !t.Before(*s.Expiry)
}

// UserID is an identity bound to the master key.
type UserID struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Revoked bool   `json:"revoked"`

	// Binding is the master key's signature over the user id and master public key.
	// It is empty for user ids added under a token-backed master key.
	Binding []byte `json:"binding"`

	// Authorization is the token's signature over the digest of the
	// change-set that added the user id. Only set when Binding is empty.
	Authorization []byte `json:"authorization,omitempty"`
}

// KeyRing is a master key with its subkeys and user ids.
type KeyRing struct {
	MasterKeyID KeyID     `json:"master_key_id"`
	UserIDs     []UserID  `json:"user_ids"`
	SubKeys     []SubKey  `json:"sub_keys"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Master returns the master subkey, or nil for an empty ring.
func (r *KeyRing) Master() *SubKey {
	if r == nil || len(r.SubKeys) == 0 {
		return nil
	}
	return &r.SubKeys[0]
}

// SubKey returns the subkey with the given id.
func (r *KeyRing) SubKey(id KeyID) (*SubKey, bool) {
	for i := range r.SubKeys {
		if r.SubKeys[i].ID == id {
			return &r.SubKeys[i], true
		}
	}
	return nil, false
}

// UserID returns the user id with the given value.
func (r *KeyRing) UserID(value string) (*UserID, bool) {
	for i := range r.UserIDs {
		if r.UserIDs[i].Value == value {
			return &r.UserIDs[i], true
		}
	}
	return nil, false
}

// PrimaryUserID returns the primary user id, falling back to the first
// non-revoked one, then to the hex master key id.
func (r *KeyRing) PrimaryUserID() string {
	for _, uid := range r.UserIDs {
		if uid.Primary && !uid.Revoked {
			return uid.Value
		}
	}
	for _, uid := range r.UserIDs {
		if !uid.Revoked {
			return uid.Value
		}
	}
	return r.MasterKeyID.String()
}

// Clone returns a deep copy, so engines can modify a ring without touching the fetched one.
func (r *KeyRing) Clone() *KeyRing {
	if r == nil {
		return nil
	}
	c := *r
	c.UserIDs = make([]UserID, len(r.UserIDs))
	for i, uid := range r.UserIDs {
		uid.Binding = cloneBytes(uid.Binding)
		uid.Authorization = cloneBytes(uid.Authorization)
		c.UserIDs[i] = uid
	}
	c.SubKeys = make([]SubKey, len(r.SubKeys))
	for i, sk := range r.SubKeys {
		sk.PublicKey = cloneBytes(sk.PublicKey)
		sk.Secret = SealedSecret{
			KDF:         sk.Secret.KDF,
			Salt:        cloneBytes(sk.Secret.Salt),
			Nonce:       cloneBytes(sk.Secret.Nonce),
			Box:         cloneBytes(sk.Secret.Box),
			Unprotected: sk.Secret.Unprotected,
		}
		if sk.Expiry != nil {
			exp := *sk.Expiry
			sk.Expiry = &exp
		}
		c.SubKeys[i] = sk
	}
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// EditOutcome is the payload of a successful key edit.
type EditOutcome struct {
	// KeyID is the master key id of the created or edited key.
	KeyID KeyID

	// CacheNewSecret reports whether the request set a new unlock secret and
	// so asked for it to be cached. It stays true when no cache is configured
	// or the insert failed.
	CacheNewSecret bool
}
