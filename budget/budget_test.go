package budget

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEstimateUsesPriceTable(t *testing.T) {
	c := New(Options{Prices: PriceTable{"gpt-4o": 0.005}})
	got := c.Estimate("gpt-4o", 2000)
	want := 0.01
	if got != want {
		t.Fatalf("expected %.4f, got %.4f", want, got)
	}
}

func TestEstimateUnknownModelIsZero(t *testing.T) {
	c := New(Options{})
	if got := c.Estimate("unknown-model", 1000); got != 0 {
		t.Fatalf("expected 0 for unknown model, got %f", got)
	}
}

func TestCheckRejectsOverPerTenantLimit(t *testing.T) {
	c := New(Options{Limits: Limits{PerTenantUSD: 1.0}})
	c.Record("tenant-a", "gpt-4o", 1000, 0.9)

	if err := c.Check(context.Background(), "tenant-a", 0, 0.2); err == nil {
		t.Fatalf("expected rejection once projected spend exceeds tenant limit")
	}
}

func TestCheckAllowsWithinLimits(t *testing.T) {
	c := New(Options{Limits: Limits{PerTenantUSD: 10.0}})
	if err := c.Check(context.Background(), "tenant-a", 0, 1.0); err != nil {
		t.Fatalf("expected check to succeed, got %v", err)
	}
}

func TestRecordAccumulatesPerTenantAndModel(t *testing.T) {
	c := New(Options{})
	c.Record("tenant-a", "gpt-4o", 500, 0.25)
	c.Record("tenant-a", "gpt-4o", 500, 0.25)
	c.Record("tenant-b", "claude-3-haiku", 100, 0.01)

	usage := c.Usage()
	if usage.PerTenant["tenant-a"].CostUSD != 0.5 {
		t.Fatalf("expected tenant-a cost 0.5, got %f", usage.PerTenant["tenant-a"].CostUSD)
	}
	if usage.PerModel["gpt-4o"].Tokens != 1000 {
		t.Fatalf("expected gpt-4o tokens 1000, got %d", usage.PerModel["gpt-4o"].Tokens)
	}
	if usage.TotalCostUSD != 0.51 {
		t.Fatalf("expected total 0.51, got %f", usage.TotalCostUSD)
	}
}

func TestUsageRollsOverOnMonthBoundaryAndArchives(t *testing.T) {
	jan := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	clock := jan
	c := New(Options{Now: func() time.Time { return clock }})
	c.Record("tenant-a", "gpt-4o", 1000, 1.0)

	clock = feb
	c.Record("tenant-a", "gpt-4o", 500, 0.5)

	usage := c.Usage()
	if usage.Period != "2026-02" {
		t.Fatalf("expected rolled-over period 2026-02, got %s", usage.Period)
	}
	if usage.TotalCostUSD != 0.5 {
		t.Fatalf("expected fresh period to only hold February spend, got %f", usage.TotalCostUSD)
	}
	archive := c.Archive()
	if len(archive) != 1 || archive[0].Period != "2026-01" {
		t.Fatalf("expected January archived, got %+v", archive)
	}
	if archive[0].TotalCostUSD != 1.0 {
		t.Fatalf("expected archived January total 1.0, got %f", archive[0].TotalCostUSD)
	}
}
