// Package rerrors implements RipTide's error taxonomy: a small set of
// sentinel errors grouped into kinds, plus a wrapping type that carries
// operation and entity context for structured logging.
package rerrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from the
// error handling design. Kind drives circuit-breaker counting, HTTP
// status mapping, and metrics labelling — never the error's message text.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindTimeout        Kind = "timeout"
	KindTransport      Kind = "transport"
	KindCircuitOpen    Kind = "circuit_open"
	KindResourceLimit  Kind = "resource_limit"
	KindBudgetExceeded Kind = "budget_exceeded"
	KindIntegrity      Kind = "integrity"
	KindAlreadyExists  Kind = "already_exists"
	KindInternal       Kind = "internal"
)

// Sentinel errors for comparison with errors.Is(). Each is associated
// with exactly one Kind via KindOf.
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("operation timeout")
	ErrTransport       = errors.New("transport failure")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrResourceLimit   = errors.New("resource limit exceeded")
	ErrBudgetExceeded  = errors.New("budget exceeded")
	ErrIntegrity       = errors.New("integrity check failed")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInternal        = errors.New("internal error")
	ErrMaxRetries      = errors.New("maximum retries exceeded")
	ErrContextCanceled = errors.New("context canceled")
)

var sentinelForKind = map[Kind]error{
	KindInvalidRequest: ErrInvalidRequest,
	KindNotFound:       ErrNotFound,
	KindTimeout:        ErrTimeout,
	KindTransport:      ErrTransport,
	KindCircuitOpen:    ErrCircuitOpen,
	KindResourceLimit:  ErrResourceLimit,
	KindBudgetExceeded: ErrBudgetExceeded,
	KindIntegrity:      ErrIntegrity,
	KindAlreadyExists:  ErrAlreadyExists,
	KindInternal:       ErrInternal,
}

// Error is the structured error type threaded through the pipeline. It
// wraps an underlying cause and tags it with an operation name, a Kind,
// and an optional entity ID (URL, cache key, job ID, ...).
type Error struct {
	Op      string
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a structured Error for op, tagged with kind, wrapping err.
// If err is nil, the kind's sentinel is used so errors.Is(result, sentinel)
// still succeeds.
func New(op string, kind Kind, id string, err error) *Error {
	if err == nil {
		err = sentinelForKind[kind]
	}
	return &Error{Op: op, Kind: kind, ID: id, Err: err}
}

// Is reports whether err belongs to kind, either because it unwraps to
// the kind's sentinel or because it is a *Error tagged with kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	sentinel, ok := sentinelForKind[kind]
	return ok && errors.Is(err, sentinel)
}

// KindOf returns the Kind tagged on err, or KindInternal if err carries
// no recognizable classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for kind, sentinel := range sentinelForKind {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// Retryable reports whether err should be retried by the reliability
// layer: transport failures, timeouts, and explicit HTTP 5xx/408/429
// (callers construct those with KindTransport or KindTimeout). Client
// errors, budget rejections, and state errors never retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindTimeout:
		return true
	default:
		return false
	}
}

// CountsAsFailure reports whether err should count toward circuit
// breaker failure thresholds. InvalidRequest and NotFound are caller
// errors, not dependency failures, and must not trip the breaker.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextCanceled) || errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindInvalidRequest, KindNotFound, KindAlreadyExists:
		return false
	default:
		return true
	}
}
