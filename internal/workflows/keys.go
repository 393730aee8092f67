package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/keystore"
)

// KeySummary is the public view of one stored key.
type KeySummary struct {
	ID        keys.KeyID
	PrimaryID string
	UserIDs   int
	SubKeys   int
	Revoked   bool
	Expired   bool
	Modified  time.Time
}

// ListKeysOptions configures the list workflow.
type ListKeysOptions struct {
	// IncludeRevoked includes keys whose master key is revoked.
	IncludeRevoked bool

	// Now is used to judge expiry. Zero means time.Now.
	Now time.Time
}

// ListKeys summarizes every stored key, ordered by master key id.
func ListKeys(ctx context.Context, store keystore.KeyStore, opts ListKeysOptions) ([]KeySummary, error) {
	rings, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing keys: %w", kerrors.ErrStorageFailure, err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	summaries := make([]KeySummary, 0, len(rings))
	for _, ring := range rings {
		s := summarize(ring, now)
		if s.Revoked && !opts.IncludeRevoked {
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func summarize(ring *keys.KeyRing, now time.Time) KeySummary {
	s := KeySummary{
		ID:        ring.MasterKeyID,
		PrimaryID: ring.PrimaryUserID(),
		UserIDs:   len(ring.UserIDs),
		SubKeys:   len(ring.SubKeys),
		Modified:  ring.Modified,
	}
	if m := ring.Master(); m != nil {
		s.Revoked = m.Revoked
		s.Expired = m.Expired(now)
	}
	return s
}

// subKeyFinder is implemented by stores that index subkeys.
type subKeyFinder interface {
	FindBySubKey(ctx context.Context, subKey keys.KeyID) (keys.KeyID, error)
}

// ShowKey loads a key by master key id. When no key has that id and the
// store indexes subkeys, the key owning a subkey with that id is returned.
//
// Returns an error wrapping ErrKeyNotFound when neither lookup matches.
func ShowKey(ctx context.Context, store keystore.KeyStore, id keys.KeyID) (*keys.KeyRing, error) {
	ring, err := store.FetchSecret(ctx, id)
	if err == nil {
		return ring, nil
	}
	if !errors.Is(err, kerrors.ErrKeyNotFound) {
		return nil, err
	}

	finder, ok := store.(subKeyFinder)
	if !ok {
		return nil, err
	}
	master, ferr := finder.FindBySubKey(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	return store.FetchSecret(ctx, master)
}

// FormatTime formats t as YYYY-MM-DD HH:MM:SS in UTC, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
