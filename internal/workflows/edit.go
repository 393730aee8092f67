package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/PolarWolf314/keysmith/internal/audit"
	"github.com/PolarWolf314/keysmith/internal/engine"
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/keystore"
	logger "github.com/PolarWolf314/keysmith/internal/logging"
	"github.com/PolarWolf314/keysmith/internal/notify"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/oplog"
	"github.com/PolarWolf314/keysmith/internal/passcache"
	"github.com/PolarWolf314/keysmith/internal/progress"
	"github.com/PolarWolf314/keysmith/internal/utils"
)

// Progress bands of the edit pipeline, in percent of the whole run.
const (
	progressEngineStart = 10
	progressEngineEnd   = 60
	progressCommitEnd   = 95
)

// EditKeyDeps are the collaborators of the edit pipeline. Engine and Store
// are required; the rest may be nil.
type EditKeyDeps struct {
	Engine   engine.KeyEngine
	Store    keystore.KeyStore
	Cache    passcache.PassphraseCache
	Notifier notify.SyncNotifier

	// Audit receives one record per run. User and Installation fill its fields.
	Audit        *audit.Recorder
	User         string
	Installation string

	Log logger.Logger
}

// EditKeyOperation creates or edits one key: fetch, apply the change-set,
// commit, cache the new passphrase and notify. It performs no threading of
// its own and holds no state between runs.
type EditKeyOperation struct {
	deps EditKeyDeps
}

// NewEditKeyOperation creates the pipeline.
func NewEditKeyOperation(deps EditKeyDeps) *EditKeyOperation {
	return &EditKeyOperation{deps: deps}
}

// RunEditKey runs the edit pipeline once.
//
// A nil MasterKeyID in changes creates a new key. A Pending result means
// nothing was persisted: add the named secret to input and call again; the
// run restarts from the beginning. token may be nil.
func RunEditKey(ctx context.Context, deps EditKeyDeps, changes *keys.ChangeSet, input *operation.CryptoInput, sink progress.Sink, token *operation.CancelToken) operation.Result[keys.EditOutcome] {
	return NewEditKeyOperation(deps).Execute(ctx, changes, input, sink, token)
}

// Execute runs the pipeline once. See RunEditKey.
func (op *EditKeyOperation) Execute(ctx context.Context, changes *keys.ChangeSet, input *operation.CryptoInput, sink progress.Sink, token *operation.CancelToken) operation.Result[keys.EditOutcome] {
	if sink == nil {
		sink = progress.Discard
	}
	scope := token.Scope()
	input.ResetConsumed()

	result := op.execute(ctx, changes, input, sink, scope)
	if refs := input.Unconsumed(); len(refs) > 0 {
		op.deps.Log.Debugf("Ignored %d supplied secrets that were not needed", len(refs))
	}
	op.record(changes, result)
	return result
}

func (op *EditKeyOperation) execute(ctx context.Context, changes *keys.ChangeSet, input *operation.CryptoInput, sink progress.Sink, scope *operation.CancelScope) operation.Result[keys.EditOutcome] {
	log := oplog.New()
	debugf := op.deps.Log.Debugf

	sink.Report(0)
	log.Add(oplog.KindEdit, 0)

	if changes == nil {
		log.Add(oplog.KindEditErrorNoChangeSet, 1)
		return operation.Failure[keys.EditOutcome](log, kerrors.ErrNoChangeSet)
	}
	if err := changes.Validate(); err != nil {
		log.Add(oplog.KindEditErrorInvalid, 1, err)
		return operation.Failure[keys.EditOutcome](log, wrapAs(err, kerrors.ErrInvalidChangeSet))
	}

	// Fetching.
	var ring *keys.KeyRing
	if !changes.IsCreate() {
		id := *changes.MasterKeyID
		debugf("fetching key %s", id)
		log.Add(oplog.KindEditFetching, 1, id)

		fetched, err := op.deps.Store.FetchSecret(ctx, id)
		switch {
		case errors.Is(err, kerrors.ErrKeyNotFound), err == nil && fetched == nil:
			log.Add(oplog.KindEditErrorKeyNotFound, 2)
			return operation.Failure[keys.EditOutcome](log, fmt.Errorf("%w: %s", kerrors.ErrKeyNotFound, id))
		case err != nil:
			log.Add(oplog.KindEditErrorFetch, 2, err)
			return operation.Failure[keys.EditOutcome](log, wrapAs(err, kerrors.ErrStorageFailure))
		}
		ring = fetched
	}
	sink.Report(progressEngineStart)

	// Engine.
	engineSink := progress.Scale(sink, progressEngineStart, progressEngineEnd, 100)
	var res operation.Result[*keys.KeyRing]
	if ring == nil {
		debugf("creating new key")
		res = op.deps.Engine.Create(ctx, changes, input, engineSink)
	} else {
		debugf("modifying key %s", ring.MasterKeyID)
		res = op.deps.Engine.Modify(ctx, ring, input, changes, engineSink)
	}
	log.Merge(res.Log(), 1)

	switch res.Status() {
	case operation.StatusPending:
		reason, _ := res.Reason()
		debugf("engine is waiting: %s", reason)
		return operation.Pending[keys.EditOutcome](log, reason)
	case operation.StatusCancelled:
		return operation.Cancelled[keys.EditOutcome](log)
	case operation.StatusError:
		debugf("engine failed: %v", res.Err())
		return operation.Failure[keys.EditOutcome](log, wrapAs(res.Err(), kerrors.ErrEngineFailure))
	}
	newRing, _ := res.Payload()
	if newRing == nil {
		log.Add(oplog.KindEngineErrorInternal, 1, "engine returned no key")
		return operation.Failure[keys.EditOutcome](log, kerrors.ErrEngineFailure)
	}
	sink.Report(progressEngineEnd)

	// CancelCheck is the last point where cancellation is honored.
	if scope.IsCancelled() || ctx.Err() != nil {
		debugf("cancelled before commit")
		log.Add(oplog.KindOperationCancelled, 0)
		return operation.Cancelled[keys.EditOutcome](log)
	}

	// Committing.
	scope.PreventCancel()
	sink.PreventCancel()
	debugf("committing key %s", newRing.MasterKeyID)

	commitRes := op.deps.Store.CommitSecret(context.WithoutCancel(ctx), newRing, progress.Scale(sink, progressEngineEnd, progressCommitEnd, 100))
	log.Merge(commitRes.Log(), 1)
	id, ok := commitRes.Payload()
	if !ok {
		debugf("commit failed: %v", commitRes.Err())
		return operation.Failure[keys.EditOutcome](log, wrapAs(commitRes.Err(), kerrors.ErrStorageFailure))
	}
	sink.Report(progressCommitEnd)

	// Caching never changes the outcome.
	if changes.NewUnlock != nil {
		op.cacheNewSecret(id, newRing, changes.NewUnlock, log)
	}

	// Done.
	sink.Report(100)
	op.notify(id)
	log.Add(oplog.KindEditSuccess, 0)
	return operation.Success(keys.EditOutcome{KeyID: id, CacheNewSecret: changes.NewUnlock != nil}, log)
}

func (op *EditKeyOperation) cacheNewSecret(id keys.KeyID, ring *keys.KeyRing, unlock *keys.NewUnlock, log *oplog.Log) {
	log.Add(oplog.KindEditCachingNew, 1)
	if op.deps.Cache == nil {
		op.deps.Log.Debugf("no passphrase cache configured")
		return
	}

	secret := unlock.Secret()
	defer utils.ZeroBytes(secret)

	if err := op.deps.Cache.Insert(id, id, secret, ring.PrimaryUserID()); err != nil {
		log.Add(oplog.KindEditCacheFailed, 2, err)
		op.deps.Log.Warnf("could not cache passphrase for key %s: %v", id, err)
	}
}

func (op *EditKeyOperation) notify(id keys.KeyID) {
	if op.deps.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			op.deps.Log.Warnf("sync notification for key %s failed: %v", id, r)
		}
	}()
	op.deps.Notifier.NotifyKeyChanged(id)
}

// record writes the audit entry for one run. Failures are only logged.
func (op *EditKeyOperation) record(changes *keys.ChangeSet, result operation.Result[keys.EditOutcome]) {
	if op.deps.Audit == nil {
		return
	}

	entry := audit.Entry{
		User:         op.deps.User,
		Installation: op.deps.Installation,
		Operation:    "edit",
		Outcome:      result.Status().String(),
		Log:          result.Log(),
	}
	if changes != nil && changes.IsCreate() {
		entry.Operation = "create"
	}
	if outcome, ok := result.Payload(); ok {
		entry.KeyID = outcome.KeyID.String()
	} else if changes != nil && changes.MasterKeyID != nil {
		entry.KeyID = changes.MasterKeyID.String()
	}
	if err := result.Err(); err != nil {
		entry.Error = err.Error()
	}
	if reason, ok := result.Reason(); ok {
		entry.Pending = reason.String()
	}

	if err := op.deps.Audit.Record(entry); err != nil {
		op.deps.Log.Warnf("could not write audit record: %v", err)
	}
}

// wrapAs returns err tagged with sentinel unless it already is.
func wrapAs(err, sentinel error) error {
	if err == nil {
		return sentinel
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
