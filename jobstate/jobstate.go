// Package jobstate implements explicit state machines for Workers and
// Jobs, generalizing the teacher's TaskStatus lifecycle
// (core/async_task.go) from a single linear queued->running->terminal
// progression into two cooperating state machines with full
// transition guard tables, self-transitions as no-ops, and a counter
// of rejected transitions for observability.
package jobstate

import (
	"sync"
	"sync/atomic"

	"github.com/riptide/core/rerrors"
)

// WorkerState is the lifecycle state of a long-lived pipeline worker.
type WorkerState string

const (
	WorkerIdle         WorkerState = "idle"
	WorkerProcessing   WorkerState = "processing"
	WorkerPaused       WorkerState = "paused"
	WorkerFailed       WorkerState = "failed"
	WorkerCompleted    WorkerState = "completed"
	WorkerShuttingDown WorkerState = "shutting_down"
	WorkerTerminated   WorkerState = "terminated"
)

// JobState is the lifecycle state of a single per-URL pipeline run.
type JobState string

const (
	JobPending    JobState = "pending"
	JobAssigned   JobState = "assigned"
	JobProcessing JobState = "processing"
	JobPaused     JobState = "paused"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobRetrying   JobState = "retrying"
	JobCancelled  JobState = "cancelled"
	JobTimedOut   JobState = "timed_out"
)

var workerTransitions = map[WorkerState]map[WorkerState]bool{
	WorkerIdle:         {WorkerProcessing: true},
	WorkerProcessing:   {WorkerPaused: true, WorkerFailed: true, WorkerCompleted: true, WorkerShuttingDown: true},
	WorkerPaused:       {WorkerProcessing: true},
	WorkerFailed:       {WorkerIdle: true, WorkerShuttingDown: true, WorkerTerminated: true},
	WorkerCompleted:    {},
	WorkerShuttingDown: {WorkerTerminated: true},
	WorkerTerminated:   {},
}

var jobTransitions = map[JobState]map[JobState]bool{
	JobPending:    {JobAssigned: true, JobCancelled: true},
	JobAssigned:   {JobProcessing: true},
	JobProcessing: {JobPaused: true, JobCompleted: true, JobFailed: true, JobTimedOut: true, JobCancelled: true},
	JobPaused:     {JobProcessing: true, JobCancelled: true},
	JobFailed:     {JobRetrying: true},
	JobRetrying:   {JobProcessing: true, JobFailed: true},
	JobTimedOut:   {},
	JobCompleted:  {},
	JobCancelled:  {},
}

// Worker guards transitions of a single worker's state, counting
// rejected transitions for health reporting.
type Worker struct {
	mu               sync.Mutex
	state            WorkerState
	rejectedCount    atomic.Int64
}

// NewWorker returns a Worker starting in WorkerIdle.
func NewWorker() *Worker {
	return &Worker{state: WorkerIdle}
}

// State returns the worker's current state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Transition moves the worker to next. A self-transition is always a
// no-op success. Any other transition not present in the guard table
// is rejected with rerrors.KindInvalidRequest and counted.
func (w *Worker) Transition(next WorkerState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == next {
		return nil
	}
	if allowed, ok := workerTransitions[w.state]; ok && allowed[next] {
		w.state = next
		return nil
	}
	w.rejectedCount.Add(1)
	return rerrors.New("jobstate.Worker.Transition", rerrors.KindInvalidRequest, string(next),
		invalidTransitionError{from: string(w.state), to: string(next)})
}

// RejectedCount returns the number of transitions rejected so far.
func (w *Worker) RejectedCount() int64 {
	return w.rejectedCount.Load()
}

// Job guards transitions of a single job's state.
type Job struct {
	mu            sync.Mutex
	state         JobState
	rejectedCount atomic.Int64
}

// NewJob returns a Job starting in JobPending.
func NewJob() *Job {
	return &Job{state: JobPending}
}

// State returns the job's current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Transition moves the job to next, following the same self-transition
// and guard-table semantics as Worker.Transition.
func (j *Job) Transition(next JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == next {
		return nil
	}
	if allowed, ok := jobTransitions[j.state]; ok && allowed[next] {
		j.state = next
		return nil
	}
	j.rejectedCount.Add(1)
	return rerrors.New("jobstate.Job.Transition", rerrors.KindInvalidRequest, string(next),
		invalidTransitionError{from: string(j.state), to: string(next)})
}

// RejectedCount returns the number of transitions rejected so far.
func (j *Job) RejectedCount() int64 {
	return j.rejectedCount.Load()
}

type invalidTransitionError struct {
	from, to string
}

func (e invalidTransitionError) Error() string {
	return "invalid transition from " + e.from + " to " + e.to
}
