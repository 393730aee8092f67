package keystore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PolarWolf314/keysmith/internal/configs"
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/oplog"
	"github.com/PolarWolf314/keysmith/internal/progress"
)

var created = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testRing(id keys.KeyID) *keys.KeyRing {
	expiry := created.Add(48 * time.Hour)
	return &keys.KeyRing{
		MasterKeyID: id,
		Created:     created,
		Modified:    created,
		UserIDs: []keys.UserID{
			{Value: "Alice <alice@example.com>", Primary: true, Binding: []byte{1, 2, 3}},
			{Value: "Old <old@example.com>", Revoked: true, Binding: []byte{4, 5}},
			{Value: "Token <token@example.com>", Authorization: []byte{6, 7, 8}},
		},
		SubKeys: []keys.SubKey{
			{
				ID:        id,
				Flags:     keys.FlagCertify | keys.FlagSign,
				Created:   created,
				PublicKey: bytes.Repeat([]byte{0xAA}, 32),
				Secret: keys.SealedSecret{
					KDF:   keys.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1},
					Salt:  bytes.Repeat([]byte{1}, 16),
					Nonce: bytes.Repeat([]byte{2}, 24),
					Box:   bytes.Repeat([]byte{3}, 48),
				},
			},
			{
				ID:        id + 1,
				Flags:     keys.FlagEncrypt,
				Created:   created,
				Expiry:    &expiry,
				PublicKey: bytes.Repeat([]byte{0xBB}, 32),
				OnToken:   true,
			},
		},
	}
}

func openStores(t *testing.T) map[string]KeyStore {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "keys"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	sqliteStore, err := OpenSQLite(filepath.Join(dir, "keys.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqliteStore.Close()
	})

	return map[string]KeyStore{
		"File":   fileStore,
		"SQLite": sqliteStore,
	}
}

func assertRingsEqual(t *testing.T, want, got *keys.KeyRing) {
	t.Helper()
	if got.MasterKeyID != want.MasterKeyID {
		t.Fatalf("Expected key %s, got %s", want.MasterKeyID, got.MasterKeyID)
	}
	if !got.Created.Equal(want.Created) || !got.Modified.Equal(want.Modified) {
		t.Errorf("Timestamps differ: want %v/%v, got %v/%v", want.Created, want.Modified, got.Created, got.Modified)
	}
	if len(got.UserIDs) != len(want.UserIDs) {
		t.Fatalf("Expected %d user ids, got %d", len(want.UserIDs), len(got.UserIDs))
	}
	for i := range want.UserIDs {
		w, g := want.UserIDs[i], got.UserIDs[i]
		if w.Value != g.Value || w.Primary != g.Primary || w.Revoked != g.Revoked || !bytes.Equal(w.Binding, g.Binding) || !bytes.Equal(w.Authorization, g.Authorization) {
			t.Errorf("User id %d differs: want %+v, got %+v", i, w, g)
		}
	}
	if len(got.SubKeys) != len(want.SubKeys) {
		t.Fatalf("Expected %d subkeys, got %d", len(want.SubKeys), len(got.SubKeys))
	}
	for i := range want.SubKeys {
		w, g := want.SubKeys[i], got.SubKeys[i]
		if w.ID != g.ID || w.Flags != g.Flags || w.Revoked != g.Revoked || w.OnToken != g.OnToken {
			t.Errorf("Subkey %d differs: want %+v, got %+v", i, w, g)
		}
		if (w.Expiry == nil) != (g.Expiry == nil) || (w.Expiry != nil && !w.Expiry.Equal(*g.Expiry)) {
			t.Errorf("Subkey %d expiry differs: want %v, got %v", i, w.Expiry, g.Expiry)
		}
		if !bytes.Equal(w.PublicKey, g.PublicKey) {
			t.Errorf("Subkey %d public key differs", i)
		}
		if w.Secret.KDF != g.Secret.KDF || !bytes.Equal(w.Secret.Box, g.Secret.Box) ||
			!bytes.Equal(w.Secret.Salt, g.Secret.Salt) || !bytes.Equal(w.Secret.Nonce, g.Secret.Nonce) ||
			w.Secret.Unprotected != g.Secret.Unprotected {
			t.Errorf("Subkey %d secret differs", i)
		}
	}
}

func TestCommitAndFetch(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ring := testRing(0x1122334455667788)

			tracker := progress.NewTracker(nil)
			result := store.CommitSecret(ctx, ring, tracker)
			id, ok := result.Payload()
			if !ok {
				t.Fatalf("CommitSecret failed: %v", result.Err())
			}
			if id != ring.MasterKeyID {
				t.Errorf("Expected id %s, got %s", ring.MasterKeyID, id)
			}
			if !result.Log().Contains(oplog.KindSaveInsert) || !result.Log().Contains(oplog.KindSaveSuccess) {
				t.Errorf("Unexpected log kinds %v", result.Log().Kinds())
			}
			values := tracker.Values()
			if values[0] != 0 || values[len(values)-1] != 100 {
				t.Errorf("Expected progress from 0 to 100, got %v", values)
			}

			fetched, err := store.FetchSecret(ctx, ring.MasterKeyID)
			if err != nil {
				t.Fatalf("FetchSecret failed: %v", err)
			}
			assertRingsEqual(t, ring, fetched)
		})
	}
}

func TestCommitReplaces(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ring := testRing(0x0A)
			if r := store.CommitSecret(ctx, ring, nil); !r.Success() {
				t.Fatalf("First commit failed: %v", r.Err())
			}

			updated := ring.Clone()
			updated.SubKeys[1].Revoked = true
			updated.UserIDs = append(updated.UserIDs, keys.UserID{Value: "New <new@example.com>", Binding: []byte{9}})
			updated.Modified = created.Add(time.Hour)

			result := store.CommitSecret(ctx, updated, nil)
			if !result.Success() {
				t.Fatalf("Second commit failed: %v", result.Err())
			}
			if !result.Log().Contains(oplog.KindSaveUpdate) {
				t.Errorf("Expected an update entry, got %v", result.Log().Kinds())
			}

			fetched, err := store.FetchSecret(ctx, ring.MasterKeyID)
			if err != nil {
				t.Fatalf("FetchSecret failed: %v", err)
			}
			assertRingsEqual(t, updated, fetched)

			rings, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(rings) != 1 {
				t.Errorf("Expected one stored key, got %d", len(rings))
			}
		})
	}
}

func TestFetchMissing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.FetchSecret(context.Background(), 0xFFFF)
			if !errors.Is(err, kerrors.ErrKeyNotFound) {
				t.Errorf("Expected ErrKeyNotFound, got %v", err)
			}
		})
	}
}

func TestList(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []keys.KeyID{0x30, 0x10, 0x20} {
				if r := store.CommitSecret(ctx, testRing(id), nil); !r.Success() {
					t.Fatalf("Commit %s failed: %v", id, r.Err())
				}
			}

			rings, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(rings) != 3 {
				t.Fatalf("Expected 3 keys, got %d", len(rings))
			}
			for i, want := range []keys.KeyID{0x10, 0x20, 0x30} {
				if rings[i].MasterKeyID != want {
					t.Errorf("Position %d: expected %s, got %s", i, want, rings[i].MasterKeyID)
				}
			}
		})
	}
}

func TestCommitEmptyRing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			result := store.CommitSecret(context.Background(), &keys.KeyRing{MasterKeyID: 5}, nil)
			if !errors.Is(result.Err(), kerrors.ErrStorageFailure) {
				t.Errorf("Expected ErrStorageFailure, got %v", result.Err())
			}
			if !result.Log().Contains(oplog.KindSaveErrorIO) {
				t.Error("Expected an IO error entry in the log")
			}
		})
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	id := keys.KeyID(0x42)
	if err := os.WriteFile(store.path(id), []byte("master_key_id = [broken"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err = store.FetchSecret(context.Background(), id)
	if !errors.Is(err, kerrors.ErrStorageFailure) {
		t.Errorf("Expected ErrStorageFailure, got %v", err)
	}
}

func TestFileStoreCommitUnwritable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	// A directory where the key file should go makes the rename fail.
	ring := testRing(0x77)
	if err := os.MkdirAll(filepath.Join(store.path(ring.MasterKeyID), "blocker"), 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	result := store.CommitSecret(context.Background(), ring, nil)
	if !errors.Is(result.Err(), kerrors.ErrStorageFailure) {
		t.Errorf("Expected ErrStorageFailure, got %s %v", result.Status(), result.Err())
	}
}

func TestFindBySubKey(t *testing.T) {
	type finder interface {
		FindBySubKey(ctx context.Context, subKey keys.KeyID) (keys.KeyID, error)
	}

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ring := testRing(0x500)
			if r := store.CommitSecret(ctx, ring, nil); !r.Success() {
				t.Fatalf("Commit failed: %v", r.Err())
			}

			f, ok := store.(finder)
			if !ok {
				t.Fatalf("%T does not index subkeys", store)
			}
			id, err := f.FindBySubKey(ctx, ring.SubKeys[1].ID)
			if err != nil {
				t.Fatalf("FindBySubKey failed: %v", err)
			}
			if id != ring.MasterKeyID {
				t.Errorf("Expected %s, got %s", ring.MasterKeyID, id)
			}

			if _, err := f.FindBySubKey(ctx, 0x999); !errors.Is(err, kerrors.ErrKeyNotFound) {
				t.Errorf("Expected ErrKeyNotFound, got %v", err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("File", func(t *testing.T) {
		cfg := configs.DefaultConfig()
		cfg.Store.Path = filepath.Join(dir, "file-keys")
		store, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*FileStore); !ok {
			t.Errorf("Expected *FileStore, got %T", store)
		}
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg := configs.DefaultConfig()
		cfg.Store = configs.StoreConfig{Backend: configs.BackendSQLite, Path: filepath.Join(dir, "keys.db")}
		store, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*SQLiteStore); !ok {
			t.Errorf("Expected *SQLiteStore, got %T", store)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := configs.DefaultConfig()
		cfg.Store.Backend = "etcd"
		if _, err := Open(cfg); !errors.Is(err, kerrors.ErrUnknownBackend) {
			t.Errorf("Expected ErrUnknownBackend, got %v", err)
		}
	})
}
