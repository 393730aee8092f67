package operation

import (
	"fmt"

	"github.com/PolarWolf314/keysmith/internal/keys"
)

// RequiredInput names the kind of interactive input a pending result waits for.
type RequiredInput int

const (
	// NeedPassphrase asks for the passphrase of a locked subkey.
	NeedPassphrase RequiredInput = iota + 1

	// NeedTokenSignature asks a hardware token holding the subkey to sign Digest.
	NeedTokenSignature
)

func (r RequiredInput) String() string {
	switch r {
	case NeedPassphrase:
		return "passphrase"
	case NeedTokenSignature:
		return "token signature"
	default:
		return "unknown input"
	}
}

// PendingReason names exactly one missing secret.
type PendingReason struct {
	Input  RequiredInput
	Key    keys.KeyID
	SubKey keys.KeyID

	// Digest is what the token must sign, for NeedTokenSignature.
	Digest []byte
}

// Ref returns the secret reference the caller must fill.
func (p PendingReason) Ref() SecretRef {
	return SecretRef{Key: p.Key, SubKey: p.SubKey}
}

func (p PendingReason) String() string {
	if p.Key == p.SubKey {
		return fmt.Sprintf("need %s for key %s", p.Input, p.Key)
	}
	return fmt.Sprintf("need %s for subkey %s of key %s", p.Input, p.SubKey, p.Key)
}
