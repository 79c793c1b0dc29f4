package workflow

import (
	"context"
	"errors"
	"testing"
)

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.events = append(p.events, event)
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event Event) error {
	return errors.New("publish failed")
}

func TestExecuteWithoutIdempotencyCommitsEvents(t *testing.T) {
	pub := &recordingPublisher{}
	w := New(Options{Publisher: pub})

	result, err := Execute(context.Background(), w, "", func(ctx context.Context, tx *Transaction) (int, error) {
		tx.Emit("thing.created", map[string]string{"id": "1"})
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if len(pub.events) != 1 || pub.events[0].Type != "thing.created" {
		t.Fatalf("expected one committed event, got %+v", pub.events)
	}
}

func TestExecuteRollsBackOnError(t *testing.T) {
	pub := &recordingPublisher{}
	w := New(Options{Publisher: pub})
	rolledBack := false

	_, err := Execute(context.Background(), w, "", func(ctx context.Context, tx *Transaction) (int, error) {
		tx.OnRollback(func(context.Context) error {
			rolledBack = true
			return nil
		})
		tx.Emit("should.not.publish", nil)
		return 0, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if !rolledBack {
		t.Fatalf("expected rollback to run")
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events published on rollback, got %+v", pub.events)
	}
}

func TestExecutePublishFailureRollsBackAndPropagates(t *testing.T) {
	w := New(Options{Publisher: failingPublisher{}})
	rolledBack := false

	result, err := Execute(context.Background(), w, "", func(ctx context.Context, tx *Transaction) (int, error) {
		tx.OnRollback(func(context.Context) error {
			rolledBack = true
			return nil
		})
		tx.Emit("thing.created", nil)
		return 42, nil
	})
	if err == nil {
		t.Fatalf("expected publish failure to propagate as an error")
	}
	if result != 0 {
		t.Fatalf("expected zero value result on publish failure, got %d", result)
	}
	if !rolledBack {
		t.Fatalf("expected rollback to run after publish failure")
	}
}

func TestExecuteRecoversPanicAndRollsBack(t *testing.T) {
	w := New(Options{})
	rolledBack := false

	_, err := Execute(context.Background(), w, "", func(ctx context.Context, tx *Transaction) (int, error) {
		tx.OnRollback(func(context.Context) error {
			rolledBack = true
			return nil
		})
		panic("unexpected failure")
	})
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	if !rolledBack {
		t.Fatalf("expected rollback to run after panic")
	}
}
