package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// KeyID identifies a key or subkey. It is derived from the public key.
type KeyID uint64

// KeyIDFromPublicKey derives a KeyID from the first 8 bytes of the SHA-256 of the public key.
func KeyIDFromPublicKey(pub []byte) KeyID {
	sum := sha256.Sum256(pub)
	return KeyID(binary.BigEndian.Uint64(sum[:8]))
}

// String formats the id as 16 upper-case hex digits.
func (id KeyID) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// ParseKeyID parses a hex key id, with or without a 0x prefix.
func ParseKeyID(s string) (KeyID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 16 {
		return 0, fmt.Errorf("invalid key id %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key id %q: %w", s, err)
	}
	return KeyID(v), nil
}

// MarshalText implements encoding.TextMarshaler so ids read naturally in TOML and YAML.
func (id KeyID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *KeyID) UnmarshalText(text []byte) error {
	parsed, err := ParseKeyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
