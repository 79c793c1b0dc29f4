// Package reliability provides the circuit breaker, retry, and
// workload-tagged HTTP client presets that gate every outbound call
// RipTide's pipeline makes to origin sites, headless renderers, and
// search indexes, following the teacher's resilience module.
package reliability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/rerrors"
)

// State is one of the three circuit breaker states.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector receives circuit breaker lifecycle events. Callers
// that don't care about metrics can leave this nil.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, kind rerrors.Kind)
	RecordStateChange(name string, from, to State)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                    {}
func (noopMetrics) RecordFailure(string, rerrors.Kind)      {}
func (noopMetrics) RecordStateChange(string, State, State)  {}
func (noopMetrics) RecordRejection(string)                  {}

// ErrorClassifier reports whether err should count toward the
// breaker's failure count. Defaults to rerrors.CountsAsFailure.
type ErrorClassifier func(error) bool

// Config configures a CircuitBreaker. This is the literal
// consecutive-failure-count model: FailureThreshold is F,
// OpenCooldown is T_open, HalfOpenMax is H.
type Config struct {
	Name string

	// FailureThreshold is the number of consecutive failures in
	// Closed that trips the breaker to Open.
	FailureThreshold int
	// OpenCooldown is how long the breaker stays Open before
	// admitting a HalfOpen trial.
	OpenCooldown time.Duration
	// HalfOpenMax bounds concurrent trial requests while half-open.
	HalfOpenMax int

	ErrorClassifier ErrorClassifier
	Logger          logging.Logger
	Metrics         MetricsCollector
}

// DefaultConfig returns production defaults matching the reliability
// layer's standard preset.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		FailureThreshold: 5,
		OpenCooldown:     30 * time.Second,
		HalfOpenMax:      3,
		ErrorClassifier:  rerrors.CountsAsFailure,
		Logger:           logging.NoOp{},
		Metrics:          noopMetrics{},
	}
}

func (c *Config) withDefaults() *Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenCooldown <= 0 {
		c.OpenCooldown = 30 * time.Second
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = 3
	}
	if c.ErrorClassifier == nil {
		c.ErrorClassifier = rerrors.CountsAsFailure
	}
	if c.Logger == nil {
		c.Logger = logging.NoOp{}
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	return c
}

// CircuitBreaker protects a dependency with a closed/open/half-open
// state machine driven by a consecutive-failure counter, per
// spec.md §4.5: Closed counts consecutive failures and trips at F,
// any success resets the counter; Open rejects everything until
// OpenCooldown has elapsed since opened_at; HalfOpen admits at most
// HalfOpenMax concurrent trials and reacts to each call's outcome
// immediately — one success closes, one failure reopens.
type CircuitBreaker struct {
	config *Config

	state               atomic.Int32
	openedAt            atomic.Int64 // unix nanos
	consecutiveFailures atomic.Int32

	halfOpenInFlight atomic.Int32

	forceOpen   atomic.Bool
	forceClosed atomic.Bool

	// mu serializes the Open and HalfOpen transitions; listenersMu
	// guards listeners on its own so setState can run while mu is held.
	mu          sync.Mutex
	listenersMu sync.Mutex
	listeners   []func(name string, from, to State)
}

// New constructs a CircuitBreaker. A nil config uses DefaultConfig("default").
func New(config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig("default")
	}
	config = config.withDefaults()

	cb := &CircuitBreaker{config: config}
	cb.state.Store(int32(StateClosed))
	return cb
}

// OnStateChange registers a callback invoked whenever the breaker
// transitions, used by health/metrics reporting.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.listenersMu.Lock()
	defer cb.listenersMu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

func (cb *CircuitBreaker) setState(to State) {
	from := State(cb.state.Swap(int32(to)))
	if from == to {
		return
	}
	cb.config.Metrics.RecordStateChange(cb.config.Name, from, to)
	cb.config.Logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.config.Name, "from": from.String(), "to": to.String(),
	})
	cb.listenersMu.Lock()
	listeners := append([]func(string, State, State){}, cb.listeners...)
	cb.listenersMu.Unlock()
	for _, l := range listeners {
		l(cb.config.Name, from, to)
	}
}

// State returns the breaker's current state, accounting for manual
// overrides.
func (cb *CircuitBreaker) State() State {
	if cb.forceOpen.Load() {
		return StateOpen
	}
	if cb.forceClosed.Load() {
		return StateClosed
	}
	return State(cb.state.Load())
}

// ForceOpen manually trips the breaker regardless of observed
// failures, until ForceReset is called.
func (cb *CircuitBreaker) ForceOpen() {
	cb.forceOpen.Store(true)
}

// ForceClosed manually holds the breaker closed regardless of
// observed failures, until ForceReset is called.
func (cb *CircuitBreaker) ForceClosed() {
	cb.forceClosed.Store(true)
}

// ForceReset clears any manual override, returning control to the
// normal state machine.
func (cb *CircuitBreaker) ForceReset() {
	cb.forceOpen.Store(false)
	cb.forceClosed.Store(false)
}

// CanExecute reports whether a call should be allowed through right
// now, transitioning Open -> HalfOpen once OpenCooldown has elapsed
// since opened_at.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb.forceOpen.Load() {
		return false
	}
	switch cb.State() {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.halfOpenInFlight.Load() < int32(cb.config.HalfOpenMax)
	case StateOpen:
		if time.Since(time.Unix(0, cb.openedAt.Load())) >= cb.config.OpenCooldown {
			cb.mu.Lock()
			if State(cb.state.Load()) == StateOpen {
				cb.halfOpenInFlight.Store(0)
				cb.setState(StateHalfOpen)
			}
			cb.mu.Unlock()
			return cb.halfOpenInFlight.Load() < int32(cb.config.HalfOpenMax)
		}
		return false
	default:
		return false
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
// Returns rerrors.ErrCircuitOpen without calling fn when rejected.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.CanExecute() {
		cb.config.Metrics.RecordRejection(cb.config.Name)
		return rerrors.New(fmt.Sprintf("circuit_breaker[%s]", cb.config.Name), rerrors.KindCircuitOpen, "", nil)
	}

	half := cb.State() == StateHalfOpen
	if half {
		cb.halfOpenInFlight.Add(1)
		defer cb.halfOpenInFlight.Add(-1)
	}

	err := fn(ctx)
	cb.recordResult(err, half)
	return err
}

func (cb *CircuitBreaker) recordResult(err error, half bool) {
	failed := err != nil && cb.config.ErrorClassifier(err)

	if failed {
		cb.config.Metrics.RecordFailure(cb.config.Name, rerrors.KindOf(err))
	} else {
		cb.config.Metrics.RecordSuccess(cb.config.Name)
	}

	if half {
		// HalfOpen reacts to each call's outcome immediately: any
		// success closes and resets, any failure reopens.
		if failed {
			cb.trip(time.Now())
		} else {
			cb.consecutiveFailures.Store(0)
			cb.setState(StateClosed)
		}
		return
	}

	if State(cb.state.Load()) != StateClosed {
		return
	}
	if !failed {
		cb.consecutiveFailures.Store(0)
		return
	}
	n := cb.consecutiveFailures.Add(1)
	if int(n) >= cb.config.FailureThreshold {
		cb.trip(time.Now())
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.openedAt.Store(now.UnixNano())
	cb.setState(StateOpen)
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}
