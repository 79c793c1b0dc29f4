package config

import (
	"os"
	"testing"
	"time"
)

func clearRiptideEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				key := e[:i]
				if len(key) >= 8 && key[:8] == "RIPTIDE_" {
					os.Unsetenv(key)
				}
				break
			}
		}
	}
	os.Unsetenv("KUBERNETES_SERVICE_HOST")
	os.Unsetenv("REDIS_URL")
}

func TestDefaultConfigValidates(t *testing.T) {
	clearRiptideEnv(t)
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
	if c.IsKubernetes() {
		t.Fatalf("expected non-kubernetes defaults without KUBERNETES_SERVICE_HOST")
	}
	if c.HTTP.Address != "localhost" {
		t.Fatalf("expected localhost address, got %q", c.HTTP.Address)
	}
}

func TestDetectEnvironmentKubernetes(t *testing.T) {
	clearRiptideEnv(t)
	os.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
	defer os.Unsetenv("KUBERNETES_SERVICE_HOST")

	c := DefaultConfig()
	if !c.IsKubernetes() {
		t.Fatalf("expected kubernetes detection to trigger")
	}
	if c.HTTP.Address != "0.0.0.0" {
		t.Fatalf("expected 0.0.0.0 in kubernetes, got %q", c.HTTP.Address)
	}
	if c.Logging.Format != "json" {
		t.Fatalf("expected json logging in kubernetes, got %q", c.Logging.Format)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearRiptideEnv(t)
	os.Setenv("RIPTIDE_PORT", "9090")
	os.Setenv("RIPTIDE_MAX_CONCURRENCY", "32")
	os.Setenv("RIPTIDE_GATE_HI_THRESHOLD", "0.8")
	os.Setenv("RIPTIDE_GATE_LO_THRESHOLD", "0.2")
	defer clearRiptideEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.HTTP.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", c.HTTP.Port)
	}
	if c.Pipeline.MaxConcurrency != 32 {
		t.Fatalf("expected concurrency 32, got %d", c.Pipeline.MaxConcurrency)
	}
	if c.Gate.HiThreshold != 0.8 || c.Gate.LoThreshold != 0.2 {
		t.Fatalf("unexpected gate thresholds: %+v", c.Gate)
	}
}

func TestLoadAppliesTelemetryEnvOverrides(t *testing.T) {
	clearRiptideEnv(t)
	os.Setenv("RIPTIDE_OTLP_ENDPOINT", "collector:4317")
	os.Setenv("RIPTIDE_TRACE_SAMPLE_RATIO", "0.25")
	defer clearRiptideEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Telemetry.OTLPEndpoint != "collector:4317" {
		t.Fatalf("expected otlp endpoint override, got %q", c.Telemetry.OTLPEndpoint)
	}
	if c.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("expected sample ratio 0.25, got %.2f", c.Telemetry.SampleRatio)
	}
}

func TestLoadRejectsOutOfRangeSampleRatio(t *testing.T) {
	clearRiptideEnv(t)
	os.Setenv("RIPTIDE_TRACE_SAMPLE_RATIO", "1.5")
	defer clearRiptideEnv(t)

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for sample ratio > 1")
	}
}

func TestLoadRejectsInvertedGateThresholds(t *testing.T) {
	clearRiptideEnv(t)
	_, err := Load(WithGateThresholds(0.2, 0.8))
	if err == nil {
		t.Fatalf("expected validation error for inverted thresholds")
	}
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	clearRiptideEnv(t)
	_, err := Load(WithMaxConcurrency(0))
	if err == nil {
		t.Fatalf("expected error for non-positive concurrency")
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	clearRiptideEnv(t)
	c, err := Load(
		WithRedisURL("redis://example:6379"),
		WithHTTPAddress("example.com", 1234),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Redis.URL != "redis://example:6379" {
		t.Fatalf("expected redis URL override, got %q", c.Redis.URL)
	}
	if c.HTTP.Address != "example.com" || c.HTTP.Port != 1234 {
		t.Fatalf("expected address override, got %+v", c.HTTP)
	}
}

func TestEnvDurationParsing(t *testing.T) {
	clearRiptideEnv(t)
	os.Setenv("RIPTIDE_CACHE_TTL", "48h")
	defer clearRiptideEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Cache.DefaultTTL != 48*time.Hour {
		t.Fatalf("expected 48h TTL, got %v", c.Cache.DefaultTTL)
	}
}
