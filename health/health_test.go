package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckAggregatesToWorstStatus(t *testing.T) {
	c := NewChecker(0)
	c.Register(FuncProbe{ProbeName: "ok", Fn: func(context.Context) (Status, string) { return StatusHealthy, "" }})
	c.Register(FuncProbe{ProbeName: "slow", Fn: func(context.Context) (Status, string) { return StatusDegraded, "slow" }})

	report := c.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected aggregate degraded, got %s", report.Status)
	}
	if len(report.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(report.Components))
	}
}

func TestCheckUnhealthyDominates(t *testing.T) {
	c := NewChecker(0)
	c.Register(FuncProbe{ProbeName: "degraded", Fn: func(context.Context) (Status, string) { return StatusDegraded, "" }})
	c.Register(FuncProbe{ProbeName: "down", Fn: func(context.Context) (Status, string) { return StatusUnhealthy, "down" }})

	report := c.Check(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("expected aggregate unhealthy, got %s", report.Status)
	}
}

func TestHandlerReturns503WhenUnhealthy(t *testing.T) {
	c := NewChecker(0)
	c.Register(FuncProbe{ProbeName: "down", Fn: func(context.Context) (Status, string) { return StatusUnhealthy, "down" }})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandlerReturns200WhenHealthy(t *testing.T) {
	c := NewChecker(0)
	c.Register(FuncProbe{ProbeName: "ok", Fn: func(context.Context) (Status, string) { return StatusHealthy, "" }})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCheckWithNoProbesIsHealthy(t *testing.T) {
	c := NewChecker(0)
	report := c.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("expected healthy with no probes, got %s", report.Status)
	}
}
