package notify

import (
	"sync"

	"github.com/PolarWolf314/keysmith/internal/audit"
	"github.com/PolarWolf314/keysmith/internal/keys"
	logger "github.com/PolarWolf314/keysmith/internal/logging"
)

// SyncNotifier is told when a key changed so that dependent state (contact
// lists, remote copies) can be refreshed. Notifications are fire-and-forget:
// NotifyKeyChanged must not block and reports no errors.
type SyncNotifier interface {
	NotifyKeyChanged(id keys.KeyID)
}

// Func adapts a function to SyncNotifier.
type Func func(id keys.KeyID)

func (f Func) NotifyKeyChanged(id keys.KeyID) {
	f(id)
}

// Async fans one notification out to several notifiers, each on its own
// goroutine. A panicking notifier is logged and does not affect the others.
type Async struct {
	targets []SyncNotifier
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewAsync creates a fan-out notifier. Nil targets are ignored.
func NewAsync(log logger.Logger, targets ...SyncNotifier) *Async {
	a := &Async{log: log}
	for _, t := range targets {
		if t != nil {
			a.targets = append(a.targets, t)
		}
	}
	return a
}

func (a *Async) NotifyKeyChanged(id keys.KeyID) {
	for _, target := range a.targets {
		a.wg.Add(1)
		go func(target SyncNotifier) {
			defer a.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.log.Warnf("sync notification for key %s failed: %v", id, r)
				}
			}()
			target.NotifyKeyChanged(id)
		}(target)
	}
}

// Wait blocks until every notification sent so far has been delivered.
// The CLI calls it before exiting.
func (a *Async) Wait() {
	a.wg.Wait()
}

// AuditNotifier records key changes in the audit trail.
type AuditNotifier struct {
	Recorder *audit.Recorder
	User     string
}

func (n AuditNotifier) NotifyKeyChanged(id keys.KeyID) {
	if n.Recorder == nil {
		return
	}
	_ = n.Recorder.Record(audit.Entry{
		User:      n.User,
		Operation: "sync",
		KeyID:     id.String(),
		Outcome:   "notified",
	})
}
