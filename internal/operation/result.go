package operation

import (
	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/oplog"
)

// Status is the outcome kind of an operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusPending
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusPending:
		return "pending"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the immutable outcome of an operation. Only a successful
// result carries a payload.
type Result[T any] struct {
	status  Status
	payload T
	log     *oplog.Log
	err     error
	reason  PendingReason
}

// Success builds a successful result.
func Success[T any](payload T, log *oplog.Log) Result[T] {
	return Result[T]{status: StatusSuccess, payload: payload, log: log.Clone()}
}

// Failure builds an error result. A nil err becomes ErrOperationFailed.
func Failure[T any](log *oplog.Log, err error) Result[T] {
	if err == nil {
		err = kerrors.ErrOperationFailed
	}
	return Result[T]{status: StatusError, log: log.Clone(), err: err}
}

// Pending builds a result that halts until the caller supplies the input named by reason.
func Pending[T any](log *oplog.Log, reason PendingReason) Result[T] {
	return Result[T]{status: StatusPending, log: log.Clone(), reason: reason}
}

// Cancelled builds a result for a user-initiated abort.
func Cancelled[T any](log *oplog.Log) Result[T] {
	return Result[T]{status: StatusCancelled, log: log.Clone()}
}

// Convert re-tags a non-successful result with another payload type,
// keeping its status, log, error and pending reason. A successful r
// yields Success(payload, r's log).
func Convert[T, U any](r Result[T], payload U) Result[U] {
	out := Result[U]{status: r.status, log: r.log, err: r.err, reason: r.reason}
	if r.status == StatusSuccess {
		out.payload = payload
	}
	return out
}

// Status returns the outcome kind.
func (r Result[T]) Status() Status { return r.status }

// Success reports whether the operation succeeded.
func (r Result[T]) Success() bool { return r.status == StatusSuccess }

// IsPending reports whether the operation is waiting for more input.
func (r Result[T]) IsPending() bool { return r.status == StatusPending }

// IsCancelled reports whether the operation was cancelled.
func (r Result[T]) IsCancelled() bool { return r.status == StatusCancelled }

// IsFatal reports whether processing of later stages must stop: true for
// errors and cancellation. Pending is handled separately by the caller.
func (r Result[T]) IsFatal() bool {
	return r.status == StatusError || r.status == StatusCancelled
}

// Payload returns the payload and true for successful results.
func (r Result[T]) Payload() (T, bool) {
	if r.status != StatusSuccess {
		var zero T
		return zero, false
	}
	return r.payload, true
}

// Log returns a copy of the result's log. It is never nil.
func (r Result[T]) Log() *oplog.Log {
	if r.log == nil {
		return &oplog.Log{}
	}
	return r.log.Clone()
}

// Err returns the cause of an error result and nil otherwise.
func (r Result[T]) Err() error {
	if r.status != StatusError {
		return nil
	}
	return r.err
}

// Reason returns the missing input of a pending result.
func (r Result[T]) Reason() (PendingReason, bool) {
	if r.status != StatusPending {
		return PendingReason{}, false
	}
	return r.reason, true
}
