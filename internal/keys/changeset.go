package keys

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"gopkg.in/yaml.v3"
)

// ChangeSet declares the modifications requested for a key. A nil
// MasterKeyID requests a new key.
type ChangeSet struct {
	MasterKeyID *KeyID `yaml:"master_key_id,omitempty" json:"master_key_id,omitempty"`

	AddUserIDs          []string `yaml:"add_user_ids,omitempty" json:"add_user_ids,omitempty"`
	ChangePrimaryUserID string   `yaml:"primary_user_id,omitempty" json:"primary_user_id,omitempty"`
	RevokeUserIDs       []string `yaml:"revoke_user_ids,omitempty" json:"revoke_user_ids,omitempty"`

	AddSubKeys    []SubKeyAdd    `yaml:"add_sub_keys,omitempty" json:"add_sub_keys,omitempty"`
	ChangeSubKeys []SubKeyChange `yaml:"change_sub_keys,omitempty" json:"change_sub_keys,omitempty"`
	RevokeSubKeys []KeyID        `yaml:"revoke_sub_keys,omitempty" json:"revoke_sub_keys,omitempty"`

	// NewUnlock sets a new unlock secret for every subkey.
	NewUnlock *NewUnlock `yaml:"new_unlock,omitempty" json:"-"`
}

// SubKeyAdd requests a new subkey.
type SubKeyAdd struct {
	Flags  Flags      `yaml:"flags" json:"flags"`
	Expiry *time.Time `yaml:"expiry,omitempty" json:"expiry,omitempty"`
}

// SubKeyChange changes the expiry of an existing subkey.
type SubKeyChange struct {
	ID       KeyID      `yaml:"id" json:"id"`
	Expiry   *time.Time `yaml:"expiry,omitempty" json:"expiry,omitempty"`
	NoExpiry bool       `yaml:"no_expiry,omitempty" json:"no_expiry,omitempty"`
}

// NewUnlock is a new passphrase or PIN for the key.
type NewUnlock struct {
	Passphrase string `yaml:"passphrase,omitempty"`
	PIN        string `yaml:"pin,omitempty"`
}

// Secret returns the passphrase, or the PIN when no passphrase is set.
func (u *NewUnlock) Secret() []byte {
	if u == nil {
		return nil
	}
	if u.Passphrase != "" {
		return []byte(u.Passphrase)
	}
	return []byte(u.PIN)
}

// IsCreate reports whether the change-set creates a new key.
func (c *ChangeSet) IsCreate() bool {
	return c.MasterKeyID == nil
}

// IsEmpty reports whether the change-set requests no change at all.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.AddUserIDs) == 0 && c.ChangePrimaryUserID == "" && len(c.RevokeUserIDs) == 0 &&
		len(c.AddSubKeys) == 0 && len(c.ChangeSubKeys) == 0 && len(c.RevokeSubKeys) == 0 &&
		c.NewUnlock == nil
}

// Validate checks the change-set for structural problems that do not
// depend on the key being edited.
func (c *ChangeSet) Validate() error {
	if c.IsCreate() {
		if len(c.AddUserIDs) == 0 {
			return fmt.Errorf("%w: a new key needs at least one user id", kerrors.ErrInvalidChangeSet)
		}
		if len(c.AddSubKeys) == 0 || !c.AddSubKeys[0].Flags.Has(FlagCertify) {
			return fmt.Errorf("%w: the first subkey of a new key must certify", kerrors.ErrInvalidChangeSet)
		}
		if len(c.ChangeSubKeys) > 0 || len(c.RevokeSubKeys) > 0 || len(c.RevokeUserIDs) > 0 {
			return fmt.Errorf("%w: a new key has nothing to change or revoke", kerrors.ErrInvalidChangeSet)
		}
	} else if c.IsEmpty() {
		return fmt.Errorf("%w: nothing to change", kerrors.ErrInvalidChangeSet)
	}

	seen := make(map[string]bool, len(c.AddUserIDs))
	for _, uid := range c.AddUserIDs {
		if uid == "" {
			return fmt.Errorf("%w: empty user id", kerrors.ErrInvalidChangeSet)
		}
		if seen[uid] {
			return fmt.Errorf("%w: user id %q added twice", kerrors.ErrInvalidChangeSet, uid)
		}
		seen[uid] = true
	}
	for _, uid := range c.RevokeUserIDs {
		if seen[uid] {
			return fmt.Errorf("%w: user id %q is both added and revoked", kerrors.ErrInvalidChangeSet, uid)
		}
	}
	for _, add := range c.AddSubKeys {
		if add.Flags == 0 {
			return fmt.Errorf("%w: subkey without flags", kerrors.ErrInvalidChangeSet)
		}
	}
	for _, ch := range c.ChangeSubKeys {
		if ch.NoExpiry && ch.Expiry != nil {
			return fmt.Errorf("%w: subkey %s has both an expiry and no_expiry", kerrors.ErrInvalidChangeSet, ch.ID)
		}
	}
	return nil
}

// Digest is the SHA-256 of the canonical JSON form of the change-set.
// Whether a new unlock secret is set is covered, the secret itself is not.
// Hardware tokens sign this digest.
func (c *ChangeSet) Digest() []byte {
	data, err := json.Marshal(struct {
		*ChangeSet
		NewUnlock bool `json:"new_unlock"`
	}{c, c.NewUnlock != nil})
	if err != nil {
		// Every field marshals; unreachable.
		panic(fmt.Sprintf("marshalling change-set: %v", err))
	}
	sum := sha256.Sum256(data)
	return sum[:]
}

// LoadChangeSet reads a YAML change-set file.
func LoadChangeSet(path string) (*ChangeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading change-set: %w", err)
	}
	return ParseChangeSet(data)
}

// ParseChangeSet decodes a YAML change-set.
func ParseChangeSet(data []byte) (*ChangeSet, error) {
	var c ChangeSet
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidChangeSet, err)
	}
	return &c, nil
}
