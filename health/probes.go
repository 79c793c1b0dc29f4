package health

import (
	"context"

	"github.com/riptide/core/reliability"
	"github.com/riptide/core/redisx"
)

// RedisProbe checks Redis connectivity via the client's own ping.
func RedisProbe(client *redisx.Client) Probe {
	return FuncProbe{
		ProbeName: "redis",
		Fn: func(ctx context.Context) (Status, string) {
			if err := client.HealthCheck(ctx); err != nil {
				return StatusUnhealthy, err.Error()
			}
			return StatusHealthy, ""
		},
	}
}

// CircuitBreakerProbe reports a breaker's state as a health signal:
// Open is unhealthy (the dependency is actively failing), HalfOpen is
// degraded (probing recovery), Closed is healthy.
func CircuitBreakerProbe(name string, cb *reliability.CircuitBreaker) Probe {
	return FuncProbe{
		ProbeName: name,
		Fn: func(ctx context.Context) (Status, string) {
			switch cb.State() {
			case reliability.StateOpen:
				return StatusUnhealthy, "circuit open"
			case reliability.StateHalfOpen:
				return StatusDegraded, "circuit half-open"
			default:
				return StatusHealthy, ""
			}
		},
	}
}
