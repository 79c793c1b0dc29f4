// Package budget implements RipTide's multi-tenant cost enforcement
// coordinator: per-model price lookup, pre-call Check and post-call
// Record, per-job/tenant/global limits, and monthly archival. It
// composes reliability.CircuitBreaker rather than re-implementing
// trip/reset logic — a budget that keeps rejecting calls behaves
// exactly like a breaker stuck open, so the breaker's consecutive-failure
// state machine is reused wholesale, grounded on the teacher's
// resilience/factory.go preset-construction pattern applied to a new
// domain instead of HTTP workloads.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/reliability"
	"github.com/riptide/core/rerrors"
)

// PriceTable maps a model name to its cost per 1000 tokens.
type PriceTable map[string]float64

// DefaultPriceTable returns representative per-1K-token pricing for
// common LLM providers, intended as a starting point operators
// override via configuration.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"gpt-4o":          0.005,
		"gpt-4o-mini":     0.00015,
		"claude-3-opus":   0.015,
		"claude-3-sonnet": 0.003,
		"claude-3-haiku":  0.00025,
	}
}

// Limits bounds spend at three scopes. Zero means unlimited at that
// scope.
type Limits struct {
	PerJobUSD    float64
	PerTenantUSD float64
	GlobalUSD    float64
}

// PerModelCost tracks accumulated spend for one model within a
// period.
type PerModelCost struct {
	Model       string
	CostUSD     float64
	Tokens      int64
	LastUpdated time.Time
}

// PerTenantCost tracks accumulated spend for one tenant within a
// period.
type PerTenantCost struct {
	TenantID    string
	CostUSD     float64
	Tokens      int64
	LastUpdated time.Time
}

// Usage is one monthly period's accumulated spend.
type Usage struct {
	Period       string // YYYY-MM
	TotalCostUSD float64
	TotalTokens  int64
	RequestCount int64
	PerTenant    map[string]*PerTenantCost
	PerModel     map[string]*PerModelCost
}

func newUsage(period string) *Usage {
	return &Usage{Period: period, PerTenant: map[string]*PerTenantCost{}, PerModel: map[string]*PerModelCost{}}
}

// Coordinator enforces budget limits and tracks spend. A
// reliability.CircuitBreaker opens on the first Check that exceeds a
// limit and denies every Check until its cooldown has passed; the
// next passing Check then closes it, so transient over-budget blips
// don't permanently wedge callers the way a simple boolean flag would.
type Coordinator struct {
	mu      sync.Mutex
	prices  PriceTable
	limits  Limits
	current *Usage
	archive []*Usage
	breaker *reliability.CircuitBreaker
	logger  logging.Logger

	now func() time.Time
}

// Options configures a Coordinator.
type Options struct {
	Prices PriceTable
	Limits Limits
	Logger logging.Logger
	// Now overrides the coordinator's clock, for deterministic tests.
	Now func() time.Time
}

// New builds a Coordinator starting at the current monthly period.
func New(opts Options) *Coordinator {
	if opts.Prices == nil {
		opts.Prices = DefaultPriceTable()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOp{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cfg := reliability.DefaultConfig("budget")
	cfg.Logger = opts.Logger
	cfg.FailureThreshold = 1
	return &Coordinator{
		prices:  opts.Prices,
		limits:  opts.Limits,
		current: newUsage(periodOf(opts.Now())),
		breaker: reliability.New(cfg),
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

func periodOf(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
}

// Estimate returns the projected USD cost of consuming tokens against
// model, per the coordinator's price table. Unknown models cost zero,
// since the caller has no model-specific ceiling to check against.
func (c *Coordinator) Estimate(model string, tokens int64) float64 {
	c.mu.Lock()
	price := c.prices[model]
	c.mu.Unlock()
	return price * float64(tokens) / 1000.0
}

// Check validates a projected spend against per-job, per-tenant, and
// global limits before the call is made, and against the breaker's
// open state. It does not record anything; call Record after the
// call completes with its actual cost.
func (c *Coordinator) Check(ctx context.Context, tenantID string, jobSpentUSD float64, projectedUSD float64) error {
	if !c.breaker.CanExecute() {
		return rerrors.New("budget.Coordinator.Check", rerrors.KindBudgetExceeded, tenantID,
			fmt.Errorf("budget breaker open: too many rejected requests recently"))
	}

	c.mu.Lock()
	c.rollPeriodLocked()
	tenantSpent := 0.0
	if t, ok := c.current.PerTenant[tenantID]; ok {
		tenantSpent = t.CostUSD
	}
	globalSpent := c.current.TotalCostUSD
	c.mu.Unlock()

	if c.limits.PerJobUSD > 0 && jobSpentUSD+projectedUSD > c.limits.PerJobUSD {
		c.breaker.Execute(ctx, func(context.Context) error { return rerrors.ErrBudgetExceeded })
		return rerrors.New("budget.Coordinator.Check", rerrors.KindBudgetExceeded, tenantID,
			fmt.Errorf("per-job limit %.4f exceeded by projected spend %.4f", c.limits.PerJobUSD, jobSpentUSD+projectedUSD))
	}
	if c.limits.PerTenantUSD > 0 && tenantSpent+projectedUSD > c.limits.PerTenantUSD {
		c.breaker.Execute(ctx, func(context.Context) error { return rerrors.ErrBudgetExceeded })
		return rerrors.New("budget.Coordinator.Check", rerrors.KindBudgetExceeded, tenantID,
			fmt.Errorf("per-tenant limit %.4f exceeded by projected spend %.4f", c.limits.PerTenantUSD, tenantSpent+projectedUSD))
	}
	if c.limits.GlobalUSD > 0 && globalSpent+projectedUSD > c.limits.GlobalUSD {
		c.breaker.Execute(ctx, func(context.Context) error { return rerrors.ErrBudgetExceeded })
		return rerrors.New("budget.Coordinator.Check", rerrors.KindBudgetExceeded, tenantID,
			fmt.Errorf("global limit %.4f exceeded by projected spend %.4f", c.limits.GlobalUSD, globalSpent+projectedUSD))
	}

	c.breaker.Execute(ctx, func(context.Context) error { return nil })
	return nil
}

// Record books actual spend for tenantID/model after a completed
// call. costUSD may differ from Check's projection if actual token
// usage varied.
func (c *Coordinator) Record(tenantID, model string, tokens int64, costUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollPeriodLocked()

	now := c.now()
	c.current.TotalCostUSD += costUSD
	c.current.TotalTokens += tokens
	c.current.RequestCount++

	tenant, ok := c.current.PerTenant[tenantID]
	if !ok {
		tenant = &PerTenantCost{TenantID: tenantID}
		c.current.PerTenant[tenantID] = tenant
	}
	tenant.CostUSD += costUSD
	tenant.Tokens += tokens
	tenant.LastUpdated = now

	perModel, ok := c.current.PerModel[model]
	if !ok {
		perModel = &PerModelCost{Model: model}
		c.current.PerModel[model] = perModel
	}
	perModel.CostUSD += costUSD
	perModel.Tokens += tokens
	perModel.LastUpdated = now
}

// Usage returns a snapshot of the current period's accumulated spend.
func (c *Coordinator) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollPeriodLocked()
	return *c.current
}

// Archive returns the archived (closed) monthly periods, oldest
// first.
func (c *Coordinator) Archive() []*Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Usage, len(c.archive))
	copy(out, c.archive)
	return out
}

// rollPeriodLocked archives the current period and starts a fresh one
// when the calendar month has advanced. Callers must hold c.mu.
func (c *Coordinator) rollPeriodLocked() {
	period := periodOf(c.now())
	if period == c.current.Period {
		return
	}
	c.archive = append(c.archive, c.current)
	c.current = newUsage(period)
}

// BreakerState exposes the budget breaker's state for health
// reporting.
func (c *Coordinator) BreakerState() reliability.State {
	return c.breaker.State()
}
