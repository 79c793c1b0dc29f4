package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestRecordResultDoesNotPanicOnAnyOutcome(t *testing.T) {
	m := newMetrics()
	ctx := context.Background()

	m.recordResult(ctx, Result{Decision: DecisionRaw, ProcessingTime: 10 * time.Millisecond})
	m.recordResult(ctx, Result{FromCache: true, Decision: DecisionCached, ProcessingTime: time.Millisecond})
	m.recordResult(ctx, Result{Err: context.DeadlineExceeded, ProcessingTime: 5 * time.Second})
}
