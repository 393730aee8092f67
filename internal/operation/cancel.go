package operation

import "sync/atomic"

// CancelToken is a cancel flag shared by reference between the caller
// (for example a signal handler) and running operations. A nil token
// never cancels.
type CancelToken struct {
	set atomic.Bool
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the flag. It is safe to call from any goroutine.
func (t *CancelToken) Cancel() {
	if t != nil {
		t.set.Store(true)
	}
}

// IsSet reports whether Cancel was called.
func (t *CancelToken) IsSet() bool {
	return t != nil && t.set.Load()
}

// Scope starts a per-invocation view of the token.
func (t *CancelToken) Scope() *CancelScope {
	return &CancelScope{token: t}
}

// CancelScope is one invocation's view of a CancelToken. Once
// PreventCancel is called the token is ignored for the rest of the
// invocation.
type CancelScope struct {
	token     *CancelToken
	prevented atomic.Bool
}

// PreventCancel latches the scope past its point of no return. It is idempotent.
func (s *CancelScope) PreventCancel() {
	s.prevented.Store(true)
}

// CancelPrevented reports whether PreventCancel was called.
func (s *CancelScope) CancelPrevented() bool {
	return s.prevented.Load()
}

// IsCancelled reports whether the token is set and cancellation is still honored.
func (s *CancelScope) IsCancelled() bool {
	if s.prevented.Load() {
		return false
	}
	return s.token.IsSet()
}
