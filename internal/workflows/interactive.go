package workflows

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/progress"
	"github.com/PolarWolf314/keysmith/internal/utils"
)

// DefaultMaxAttempts bounds the pending and bad-passphrase retries of
// RunEditKeyInteractive.
const DefaultMaxAttempts = 5

// Prompter asks the user for secrets a pending run is waiting for.
type Prompter interface {
	// Passphrase asks for the passphrase named by reason. label is the
	// primary user id of the key, or its hex id.
	Passphrase(reason operation.PendingReason, label string) ([]byte, error)

	// TokenSignature asks the hardware token to sign reason.Digest.
	TokenSignature(reason operation.PendingReason) ([]byte, error)
}

// secretLookup is implemented by caches that can hand secrets back.
type secretLookup interface {
	Get(key, subKey keys.KeyID) ([]byte, bool)
}

// restartable is implemented by sinks that can show a run from the start again.
type restartable interface {
	Reset()
}

// InteractiveOptions configures RunEditKeyInteractive.
type InteractiveOptions struct {
	Prompter Prompter

	// Label names the key in prompts.
	Label string

	// MaxAttempts is the number of pipeline runs before giving up.
	// 0 means DefaultMaxAttempts.
	MaxAttempts int
}

// RunEditKeyInteractive runs the edit pipeline and answers Pending results
// until the run succeeds, fails, or is cancelled. Secrets are looked up in
// deps.Cache first when it can return them, then asked from the prompter.
// A bad passphrase is asked again. Every retry restarts the pipeline, and
// a sink with a Reset method is reset before it.
//
// Returns ErrTooManyAttempts once MaxAttempts runs did not finish, and an
// error wrapping ErrInputAborted when the prompter fails.
func RunEditKeyInteractive(ctx context.Context, deps EditKeyDeps, changes *keys.ChangeSet, opts InteractiveOptions, sink progress.Sink, token *operation.CancelToken) operation.Result[keys.EditOutcome] {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	label := opts.Label
	if label == "" && changes != nil && changes.MasterKeyID != nil {
		label = changes.MasterKeyID.String()
	}

	input := operation.NewCryptoInput()
	defer input.Wipe()

	op := NewEditKeyOperation(deps)
	lookup, _ := deps.Cache.(secretLookup)
	cacheTried := make(map[operation.SecretRef]bool)
	var last *operation.PendingReason
	lastFromCache := false

	for attempt := 1; ; attempt++ {
		if r, ok := sink.(restartable); ok && attempt > 1 {
			r.Reset()
		}
		res := op.Execute(ctx, changes, input, sink, token)

		var reason operation.PendingReason
		switch {
		case res.IsPending():
			reason, _ = res.Reason()
		case errors.Is(res.Err(), kerrors.ErrBadPassphrase) && last != nil && last.Input == operation.NeedPassphrase:
			// Ask again for the secret that just failed.
			reason = *last
			if lastFromCache {
				deps.Log.Debugf("cached passphrase for %s was rejected", reason.SubKey)
				if forget, ok := deps.Cache.(interface{ Forget(key, subKey keys.KeyID) }); ok {
					forget.Forget(reason.Key, reason.SubKey)
				}
			} else {
				deps.Log.Warnf("bad passphrase, try again")
			}
		default:
			return res
		}

		if attempt >= maxAttempts {
			return operation.Failure[keys.EditOutcome](res.Log(), fmt.Errorf("%w: gave up after %d runs", kerrors.ErrTooManyAttempts, attempt))
		}
		if token.IsSet() || ctx.Err() != nil {
			return operation.Cancelled[keys.EditOutcome](res.Log())
		}

		cached, err := supply(input, reason, label, opts.Prompter, lookup, cacheTried)
		if err != nil {
			return operation.Failure[keys.EditOutcome](res.Log(), err)
		}
		last, lastFromCache = &reason, cached
	}
}

// supply adds the secret reason asks for to input. It reports whether the
// secret came from the cache, which is tried at most once per ref.
func supply(input *operation.CryptoInput, reason operation.PendingReason, label string, prompter Prompter, lookup secretLookup, cacheTried map[operation.SecretRef]bool) (bool, error) {
	ref := reason.Ref()

	switch reason.Input {
	case operation.NeedPassphrase:
		if lookup != nil && !cacheTried[ref] {
			cacheTried[ref] = true
			if secret, ok := lookup.Get(reason.Key, reason.SubKey); ok {
				input.WithPassphrase(ref, secret)
				utils.ZeroBytes(secret)
				return true, nil
			}
		}
		if prompter == nil {
			return false, fmt.Errorf("%w: %s", kerrors.ErrInputAborted, reason)
		}
		secret, err := prompter.Passphrase(reason, label)
		if err != nil {
			return false, fmt.Errorf("%w: %w", kerrors.ErrInputAborted, err)
		}
		input.WithPassphrase(ref, secret)
		utils.ZeroBytes(secret)
		return false, nil

	case operation.NeedTokenSignature:
		if prompter == nil {
			return false, fmt.Errorf("%w: %s", kerrors.ErrInputAborted, reason)
		}
		sig, err := prompter.TokenSignature(reason)
		if err != nil {
			return false, fmt.Errorf("%w: %w", kerrors.ErrInputAborted, err)
		}
		input.WithTokenSignature(ref, reason.Digest, sig)
		return false, nil

	default:
		return false, fmt.Errorf("%w: unsupported input %s", kerrors.ErrInputAborted, reason.Input)
	}
}
