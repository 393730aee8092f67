package keystore

import (
	"context"
	"fmt"
	"sort"

	"github.com/PolarWolf314/keysmith/internal/configs"
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/oplog"
	"github.com/PolarWolf314/keysmith/internal/progress"
)

// KeyStore persists key rings including their sealed secret material.
type KeyStore interface {
	// FetchSecret loads a key ring. It returns an error wrapping
	// ErrKeyNotFound when no such key is stored.
	FetchSecret(ctx context.Context, id keys.KeyID) (*keys.KeyRing, error)

	// CommitSecret inserts or replaces a key ring.
	CommitSecret(ctx context.Context, ring *keys.KeyRing, sink progress.Sink) operation.Result[keys.KeyID]

	// List returns every stored key ring ordered by master key id.
	List(ctx context.Context) ([]*keys.KeyRing, error)

	Close() error
}

// Open opens the store configured in cfg.
func Open(cfg *configs.Config) (KeyStore, error) {
	switch cfg.Store.Backend {
	case configs.BackendFile:
		return NewFileStore(cfg.StorePath())
	case configs.BackendSQLite:
		return OpenSQLite(cfg.StorePath())
	default:
		return nil, fmt.Errorf("%w: %q", kerrors.ErrUnknownBackend, cfg.Store.Backend)
	}
}

type backend interface {
	exists(ctx context.Context, id keys.KeyID) (bool, error)
	write(ctx context.Context, ring *keys.KeyRing, exists bool) error
}

// commit runs the steps every backend shares and records them in the log.
// Progress: 0 at start, 20 once the key is looked up, 90 once written, 100.
func commit(ctx context.Context, b backend, ring *keys.KeyRing, sink progress.Sink) operation.Result[keys.KeyID] {
	if sink == nil {
		sink = progress.Discard
	}
	log := oplog.New()
	sink.Report(0)

	if ring.Master() == nil {
		log.Add(oplog.KindSave, 0, ring.MasterKeyID)
		log.Add(oplog.KindSaveErrorIO, 1, "key ring has no master key")
		return operation.Failure[keys.KeyID](log, fmt.Errorf("%w: key ring has no master key", kerrors.ErrStorageFailure))
	}
	id := ring.MasterKeyID
	log.Add(oplog.KindSave, 0, id)

	fail := func(err error) operation.Result[keys.KeyID] {
		log.Add(oplog.KindSaveErrorIO, 1, err.Error())
		return operation.Failure[keys.KeyID](log, fmt.Errorf("%w: %v", kerrors.ErrStorageFailure, err))
	}

	exists, err := b.exists(ctx, id)
	if err != nil {
		return fail(err)
	}
	if exists {
		log.Add(oplog.KindSaveUpdate, 1)
	} else {
		log.Add(oplog.KindSaveInsert, 1)
	}
	sink.Report(20)

	if err := b.write(ctx, ring, exists); err != nil {
		return fail(err)
	}
	log.Add(oplog.KindSaveSubKeys, 1, len(ring.SubKeys))
	sink.Report(90)

	log.Add(oplog.KindSaveSuccess, 0)
	sink.Report(100)
	return operation.Success(id, log)
}

func sortRings(rings []*keys.KeyRing) {
	sort.Slice(rings, func(i, j int) bool {
		return rings[i].MasterKeyID < rings[j].MasterKeyID
	})
}
