package engine

import (
	"crypto/rand"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/utils"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32
)

func deriveKey(passphrase, salt []byte, params keys.KDFParams) *[keyLen]byte {
	derived := argon2.IDKey(passphrase, salt, params.Time, params.MemoryKiB, params.Threads, keyLen)
	var key [keyLen]byte
	copy(key[:], derived)
	utils.ZeroBytes(derived)
	return &key
}

// Seal encrypts secret under passphrase. An empty passphrase produces an
// unprotected secret that opens without input.
func Seal(secret, passphrase []byte, params keys.KDFParams) (keys.SealedSecret, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return keys.SealedSecret{}, fmt.Errorf("reading salt: %w", err)
	}
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return keys.SealedSecret{}, fmt.Errorf("reading nonce: %w", err)
	}

	key := deriveKey(passphrase, salt, params)
	defer utils.ZeroBytes(key[:])

	return keys.SealedSecret{
		KDF:         params,
		Salt:        salt,
		Nonce:       nonce[:],
		Box:         secretbox.Seal(nil, secret, &nonce, key),
		Unprotected: len(passphrase) == 0,
	}, nil
}

// Open decrypts a sealed secret. It returns ErrBadPassphrase when the
// passphrase does not open the box.
func Open(sealed keys.SealedSecret, passphrase []byte) ([]byte, error) {
	if sealed.IsEmpty() {
		return nil, fmt.Errorf("%w: no secret material", kerrors.ErrEngineFailure)
	}
	if len(sealed.Nonce) != nonceLen {
		return nil, fmt.Errorf("%w: malformed nonce", kerrors.ErrEngineFailure)
	}
	if sealed.Unprotected {
		passphrase = nil
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed.Nonce)

	key := deriveKey(passphrase, sealed.Salt, sealed.KDF)
	defer utils.ZeroBytes(key[:])

	plain, ok := secretbox.Open(nil, sealed.Box, &nonce, key)
	if !ok {
		return nil, kerrors.ErrBadPassphrase
	}
	return plain, nil
}
