package jobstate

import "testing"

func TestJobHappyPath(t *testing.T) {
	j := NewJob()
	steps := []JobState{JobAssigned, JobProcessing, JobCompleted}
	for _, s := range steps {
		if err := j.Transition(s); err != nil {
			t.Fatalf("unexpected rejection moving to %s: %v", s, err)
		}
	}
	if j.State() != JobCompleted {
		t.Fatalf("expected completed, got %s", j.State())
	}
}

func TestJobSelfTransitionIsNoOp(t *testing.T) {
	j := NewJob()
	if err := j.Transition(JobPending); err != nil {
		t.Fatalf("self-transition should never be rejected: %v", err)
	}
	if j.RejectedCount() != 0 {
		t.Fatalf("self-transition must not count as rejected")
	}
}

func TestJobRejectsInvalidTransition(t *testing.T) {
	j := NewJob()
	if err := j.Transition(JobCompleted); err == nil {
		t.Fatalf("expected pending->completed to be rejected")
	}
	if j.RejectedCount() != 1 {
		t.Fatalf("expected 1 rejected transition, got %d", j.RejectedCount())
	}
	if j.State() != JobPending {
		t.Fatalf("rejected transition must not change state")
	}
}

func TestJobRetryCycle(t *testing.T) {
	j := NewJob()
	_ = j.Transition(JobAssigned)
	_ = j.Transition(JobProcessing)
	if err := j.Transition(JobFailed); err != nil {
		t.Fatalf("processing->failed should be allowed: %v", err)
	}
	if err := j.Transition(JobRetrying); err != nil {
		t.Fatalf("failed->retrying should be allowed: %v", err)
	}
	if err := j.Transition(JobProcessing); err != nil {
		t.Fatalf("retrying->processing should be allowed: %v", err)
	}
}

func TestJobRetryCanFailAgain(t *testing.T) {
	j := NewJob()
	_ = j.Transition(JobAssigned)
	_ = j.Transition(JobProcessing)
	_ = j.Transition(JobFailed)
	_ = j.Transition(JobRetrying)
	if err := j.Transition(JobFailed); err != nil {
		t.Fatalf("retrying->failed should be allowed: %v", err)
	}
}

func TestJobAssignedOnlyAdvancesToProcessing(t *testing.T) {
	j := NewJob()
	_ = j.Transition(JobAssigned)
	if err := j.Transition(JobCancelled); err == nil {
		t.Fatalf("assigned->cancelled is not in the allowed set, expected rejection")
	}
	if err := j.Transition(JobFailed); err == nil {
		t.Fatalf("assigned->failed is not in the allowed set, expected rejection")
	}
}

func TestJobTimedOutIsNeverASource(t *testing.T) {
	j := NewJob()
	_ = j.Transition(JobAssigned)
	_ = j.Transition(JobProcessing)
	_ = j.Transition(JobTimedOut)
	if err := j.Transition(JobRetrying); err == nil {
		t.Fatalf("timed_out has no outgoing transitions, expected rejection")
	}
	if err := j.Transition(JobCancelled); err == nil {
		t.Fatalf("timed_out has no outgoing transitions, expected rejection")
	}
}

func TestJobTerminalStatesRejectEverything(t *testing.T) {
	j := NewJob()
	_ = j.Transition(JobAssigned)
	_ = j.Transition(JobProcessing)
	_ = j.Transition(JobCompleted)
	if err := j.Transition(JobRetrying); err == nil {
		t.Fatalf("completed is terminal, expected rejection")
	}
}

func TestWorkerHappyPath(t *testing.T) {
	w := NewWorker()
	for _, s := range []WorkerState{WorkerProcessing, WorkerCompleted} {
		if err := w.Transition(s); err != nil {
			t.Fatalf("unexpected rejection moving to %s: %v", s, err)
		}
	}
	if w.State() != WorkerCompleted {
		t.Fatalf("expected completed, got %s", w.State())
	}
}

func TestWorkerFailedCanTerminate(t *testing.T) {
	w := NewWorker()
	_ = w.Transition(WorkerProcessing)
	if err := w.Transition(WorkerFailed); err != nil {
		t.Fatalf("processing->failed should be allowed: %v", err)
	}
	if err := w.Transition(WorkerTerminated); err != nil {
		t.Fatalf("failed->terminated should be allowed: %v", err)
	}
}

func TestWorkerShutdownIsOneWay(t *testing.T) {
	w := NewWorker()
	_ = w.Transition(WorkerProcessing)
	if err := w.Transition(WorkerShuttingDown); err != nil {
		t.Fatalf("processing->shutting_down should be allowed: %v", err)
	}
	if err := w.Transition(WorkerTerminated); err != nil {
		t.Fatalf("shutting_down->terminated should be allowed: %v", err)
	}
	if err := w.Transition(WorkerIdle); err == nil {
		t.Fatalf("terminated is terminal, expected rejection")
	}
	if w.RejectedCount() != 1 {
		t.Fatalf("expected 1 rejected transition, got %d", w.RejectedCount())
	}
}

func TestWorkerIdleOnlyAdvancesToProcessing(t *testing.T) {
	w := NewWorker()
	if err := w.Transition(WorkerShuttingDown); err == nil {
		t.Fatalf("idle->shutting_down is not in the allowed set, expected rejection")
	}
}

func TestWorkerCompletedIsTerminal(t *testing.T) {
	w := NewWorker()
	_ = w.Transition(WorkerProcessing)
	_ = w.Transition(WorkerCompleted)
	if err := w.Transition(WorkerIdle); err == nil {
		t.Fatalf("completed is terminal, expected rejection")
	}
	if err := w.Transition(WorkerShuttingDown); err == nil {
		t.Fatalf("completed is terminal, expected rejection")
	}
}
