// Package workflow implements RipTide's transactional execution
// primitive: idempotency-guarded, outbox-publishing, rollback-capable
// execution of a unit of work, generalizing the teacher's async task
// lifecycle (core/async_task.go's queued/running/terminal states and
// its TaskStore.Update persistence) from a polled background job onto
// a synchronous call with a Redis-backed idempotency lock.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/redisx"
	"github.com/riptide/core/rerrors"
)

// Event is an outbox-style record of a side effect that occurred
// during Execute. Events are published one by one only after f
// succeeds; if a publish fails, the rollback runs, and events already
// published before the failure are not retracted.
type Event struct {
	Type      string
	Payload   interface{}
	OccuredAt time.Time
}

// Publisher emits committed events. A nil Publisher is a valid no-op.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

// Workflow executes units of work with idempotency and an outbox.
type Workflow struct {
	redis     *redisx.Client
	publisher Publisher
	lockTTL   time.Duration
	logger    logging.Logger
}

// Options configures a Workflow.
type Options struct {
	Redis     *redisx.Client
	Publisher Publisher
	LockTTL   time.Duration
	Logger    logging.Logger
}

// New builds a Workflow. Redis is optional: with a nil Redis, Execute
// runs f without taking an idempotency lock.
func New(opts Options) *Workflow {
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOp{}
	}
	return &Workflow{redis: opts.Redis, publisher: opts.Publisher, lockTTL: opts.LockTTL, logger: opts.Logger}
}

// Transaction is the mutable context a unit of work runs under. It
// accumulates outbox events and a rollback function; Execute invokes
// Rollback if f returns an error or panics.
type Transaction struct {
	events   []Event
	rollback func(context.Context) error
}

// Emit queues an event to be published after a successful commit.
func (t *Transaction) Emit(eventType string, payload interface{}) {
	t.events = append(t.events, Event{Type: eventType, Payload: payload, OccuredAt: time.Now()})
}

// OnRollback registers fn to run if the transaction does not commit.
// Only the most recently registered rollback is kept, mirroring a
// single compensating action per unit of work; compose multiple
// steps into one fn if more are needed.
func (t *Transaction) OnRollback(fn func(context.Context) error) {
	t.rollback = fn
}

// ErrAlreadyInProgress is returned when an idempotency key is already
// held by a concurrent or prior call.
var ErrAlreadyInProgress = errors.New("workflow: idempotency key already in progress")

// Execute runs f under an idempotency lock keyed by idempotencyKey: a
// second call with the same key while the first is in flight (or
// within the lock TTL if the first never released it) fails fast with
// ErrAlreadyInProgress instead of re-running f. On success, f's
// queued events are published; on error or panic, its registered
// rollback runs and the lock is released so the caller may retry.
func Execute[R any](ctx context.Context, w *Workflow, idempotencyKey string, f func(ctx context.Context, tx *Transaction) (R, error)) (R, error) {
	var zero R
	if w.redis == nil {
		return executeLocked(ctx, w, f)
	}

	token := uuid.NewString()
	acquired, err := w.redis.SetNX(ctx, idempotencyLockKey(idempotencyKey), token, w.lockTTL)
	if err != nil {
		return zero, rerrors.New("workflow.Execute", rerrors.KindTransport, idempotencyKey, err)
	}
	if !acquired {
		return zero, rerrors.New("workflow.Execute", rerrors.KindAlreadyExists, idempotencyKey, ErrAlreadyInProgress)
	}
	defer w.redis.Del(ctx, idempotencyLockKey(idempotencyKey))

	return executeLocked(ctx, w, f)
}

func executeLocked[R any](ctx context.Context, w *Workflow, f func(ctx context.Context, tx *Transaction) (R, error)) (result R, err error) {
	tx := &Transaction{}

	defer func() {
		if p := recover(); p != nil {
			if tx.rollback != nil {
				_ = tx.rollback(ctx)
			}
			err = rerrors.New("workflow.Execute", rerrors.KindInternal, "", fmt.Errorf("panic: %v", p))
		}
	}()

	result, err = f(ctx, tx)
	if err != nil {
		if tx.rollback != nil {
			if rerr := tx.rollback(ctx); rerr != nil {
				w.logger.Error("workflow: rollback failed", map[string]interface{}{"error": rerr.Error(), "cause": err.Error()})
			}
		}
		return result, err
	}

	for _, ev := range tx.events {
		if perr := w.publisher.Publish(ctx, ev); perr != nil {
			w.logger.Error("workflow: event publish failed, rolling back", map[string]interface{}{"type": ev.Type, "error": perr.Error()})
			if tx.rollback != nil {
				if rerr := tx.rollback(ctx); rerr != nil {
					w.logger.Error("workflow: rollback after publish failure failed", map[string]interface{}{"error": rerr.Error(), "cause": perr.Error()})
				}
			}
			var zero R
			return zero, rerrors.New("workflow.Execute", rerrors.KindTransport, ev.Type, perr)
		}
	}
	return result, nil
}

func idempotencyLockKey(key string) string {
	return "workflow:lock:" + key
}
