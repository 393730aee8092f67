package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PolarWolf314/keysmith/internal/configs"
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/progress"
)

// FileStore keeps one TOML file per key ring, named by master key id.
type FileStore struct {
	dir string

	// mu serializes writers within this process.
	mu sync.Mutex
}

// NewFileStore opens (and creates) a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", kerrors.ErrStorageFailure, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id keys.KeyID) string {
	return filepath.Join(s.dir, id.String()+".toml")
}

func (s *FileStore) FetchSecret(ctx context.Context, id keys.KeyID) (*keys.KeyRing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load(s.path(id), id)
}

func (s *FileStore) load(path string, id keys.KeyID) (*keys.KeyRing, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrKeyNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", kerrors.ErrStorageFailure, err)
	}

	var rec ringRecord
	if err := configs.LoadTOML(path, &rec); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrStorageFailure, filepath.Base(path), err)
	}
	ring, err := rec.toRing()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", kerrors.ErrStorageFailure, filepath.Base(path), err)
	}
	return ring, nil
}

func (s *FileStore) CommitSecret(ctx context.Context, ring *keys.KeyRing, sink progress.Sink) operation.Result[keys.KeyID] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return commit(ctx, s, ring, sink)
}

func (s *FileStore) exists(_ context.Context, id keys.KeyID) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) write(_ context.Context, ring *keys.KeyRing, _ bool) error {
	return configs.SaveTOML(s.path(ring.MasterKeyID), newRingRecord(ring))
}

func (s *FileStore) List(ctx context.Context) ([]*keys.KeyRing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrStorageFailure, err)
	}

	var rings []*keys.KeyRing
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") || strings.HasPrefix(name, ".") {
			continue
		}
		id, err := keys.ParseKeyID(strings.TrimSuffix(name, ".toml"))
		if err != nil {
			continue
		}
		ring, err := s.load(filepath.Join(s.dir, name), id)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	sortRings(rings)
	return rings, nil
}

// FindBySubKey returns the master key id owning a subkey. It reads every
// stored key.
func (s *FileStore) FindBySubKey(ctx context.Context, subKey keys.KeyID) (keys.KeyID, error) {
	rings, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, ring := range rings {
		if _, ok := ring.SubKey(subKey); ok {
			return ring.MasterKeyID, nil
		}
	}
	return 0, fmt.Errorf("%w: no key has subkey %s", kerrors.ErrKeyNotFound, subKey)
}

func (s *FileStore) Close() error {
	return nil
}

// ringRecord is the TOML form of a key ring. Byte fields are base64.
type ringRecord struct {
	MasterKeyID string         `toml:"master_key_id"`
	Created     time.Time      `toml:"created"`
	Modified    time.Time      `toml:"modified"`
	UserIDs     []userIDRecord `toml:"user_id"`
	SubKeys     []subKeyRecord `toml:"sub_key"`
}

type userIDRecord struct {
	Value   string `toml:"value"`
	Primary bool   `toml:"primary"`
	Revoked bool   `toml:"revoked"`
	Binding string `toml:"binding"`

	Authorization string `toml:"authorization,omitempty"`
}

type subKeyRecord struct {
	ID        string        `toml:"id"`
	Flags     string        `toml:"flags"`
	Created   time.Time     `toml:"created"`
	Expiry    *time.Time    `toml:"expiry,omitempty"`
	Revoked   bool          `toml:"revoked"`
	OnToken   bool          `toml:"on_token"`
	PublicKey string        `toml:"public_key"`
	Secret    *secretRecord `toml:"secret,omitempty"`
}

type secretRecord struct {
	Time        uint32 `toml:"kdf_time"`
	MemoryKiB   uint32 `toml:"kdf_memory_kib"`
	Threads     uint8  `toml:"kdf_threads"`
	Salt        string `toml:"salt"`
	Nonce       string `toml:"nonce"`
	Box         string `toml:"box"`
	Unprotected bool   `toml:"unprotected"`
}

var b64 = base64.StdEncoding

func newRingRecord(ring *keys.KeyRing) ringRecord {
	rec := ringRecord{
		MasterKeyID: ring.MasterKeyID.String(),
		Created:     ring.Created.UTC(),
		Modified:    ring.Modified.UTC(),
	}
	for _, uid := range ring.UserIDs {
		rec.UserIDs = append(rec.UserIDs, userIDRecord{
			Value:   uid.Value,
			Primary: uid.Primary,
			Revoked: uid.Revoked,
			Binding: b64.EncodeToString(uid.Binding),

			Authorization: b64.EncodeToString(uid.Authorization),
		})
	}
	for _, sk := range ring.SubKeys {
		r := subKeyRecord{
			ID:        sk.ID.String(),
			Flags:     sk.Flags.String(),
			Created:   sk.Created.UTC(),
			Revoked:   sk.Revoked,
			OnToken:   sk.OnToken,
			PublicKey: b64.EncodeToString(sk.PublicKey),
		}
		if sk.Expiry != nil {
			exp := sk.Expiry.UTC()
			r.Expiry = &exp
		}
		if !sk.Secret.IsEmpty() {
			r.Secret = &secretRecord{
				Time:        sk.Secret.KDF.Time,
				MemoryKiB:   sk.Secret.KDF.MemoryKiB,
				Threads:     sk.Secret.KDF.Threads,
				Salt:        b64.EncodeToString(sk.Secret.Salt),
				Nonce:       b64.EncodeToString(sk.Secret.Nonce),
				Box:         b64.EncodeToString(sk.Secret.Box),
				Unprotected: sk.Secret.Unprotected,
			}
		}
		rec.SubKeys = append(rec.SubKeys, r)
	}
	return rec
}

func (rec ringRecord) toRing() (*keys.KeyRing, error) {
	id, err := keys.ParseKeyID(rec.MasterKeyID)
	if err != nil {
		return nil, err
	}
	ring := &keys.KeyRing{MasterKeyID: id, Created: rec.Created, Modified: rec.Modified}

	for _, r := range rec.UserIDs {
		binding, err := b64.DecodeString(r.Binding)
		if err != nil {
			return nil, fmt.Errorf("user id %q binding: %w", r.Value, err)
		}
		authorization, err := b64.DecodeString(r.Authorization)
		if err != nil {
			return nil, fmt.Errorf("user id %q authorization: %w", r.Value, err)
		}
		ring.UserIDs = append(ring.UserIDs, keys.UserID{
			Value:   r.Value,
			Primary: r.Primary,
			Revoked: r.Revoked,
			Binding: binding,

			Authorization: authorization,
		})
	}

	for _, r := range rec.SubKeys {
		sk, err := r.toSubKey()
		if err != nil {
			return nil, fmt.Errorf("subkey %s: %w", r.ID, err)
		}
		ring.SubKeys = append(ring.SubKeys, sk)
	}
	if ring.Master() == nil || ring.Master().ID != id {
		return nil, fmt.Errorf("first subkey is not master key %s", id)
	}
	return ring, nil
}

func (r subKeyRecord) toSubKey() (keys.SubKey, error) {
	id, err := keys.ParseKeyID(r.ID)
	if err != nil {
		return keys.SubKey{}, err
	}
	flags, err := keys.ParseFlags(r.Flags)
	if err != nil {
		return keys.SubKey{}, err
	}
	pub, err := b64.DecodeString(r.PublicKey)
	if err != nil {
		return keys.SubKey{}, fmt.Errorf("public key: %w", err)
	}
	sk := keys.SubKey{
		ID:        id,
		Flags:     flags,
		Created:   r.Created,
		Expiry:    r.Expiry,
		Revoked:   r.Revoked,
		OnToken:   r.OnToken,
		PublicKey: pub,
	}
	if r.Secret != nil {
		var fields [3][]byte
		for i, s := range []string{r.Secret.Salt, r.Secret.Nonce, r.Secret.Box} {
			if fields[i], err = b64.DecodeString(s); err != nil {
				return keys.SubKey{}, fmt.Errorf("secret: %w", err)
			}
		}
		sk.Secret = keys.SealedSecret{
			KDF:         keys.KDFParams{Time: r.Secret.Time, MemoryKiB: r.Secret.MemoryKiB, Threads: r.Secret.Threads},
			Salt:        fields[0],
			Nonce:       fields[1],
			Box:         fields[2],
			Unprotected: r.Secret.Unprotected,
		}
	}
	return sk, nil
}
