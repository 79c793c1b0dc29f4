// Package config loads and validates RipTide's runtime configuration.
// It follows the same three-layer priority as the teacher's agent
// config: built-in defaults, then environment auto-detection, then
// explicit environment variables, with functional Options for
// programmatic overrides in tests and embedding code.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig configures the shared Redis connection used by cache,
// coordination, and workflow idempotency locking.
type RedisConfig struct {
	URL          string        `env:"RIPTIDE_REDIS_URL" default:"redis://localhost:6379"`
	DB           int           `env:"RIPTIDE_REDIS_DB" default:"0"`
	PoolSize     int           `env:"RIPTIDE_REDIS_POOL_SIZE" default:"20"`
	MinIdleConns int           `env:"RIPTIDE_REDIS_MIN_IDLE_CONNS" default:"5"`
	DialTimeout  time.Duration `env:"RIPTIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
}

// CacheConfig configures the persistent extraction cache.
type CacheConfig struct {
	DefaultTTL        time.Duration `env:"RIPTIDE_CACHE_TTL" default:"24h"`
	CompressionEnable bool          `env:"RIPTIDE_CACHE_COMPRESSION" default:"true"`
	CompressionMinLen int           `env:"RIPTIDE_CACHE_COMPRESSION_MIN_BYTES" default:"1024"`
	KeyVersion        string        `env:"RIPTIDE_CACHE_KEY_VERSION" default:"v1"`
	Namespace         string        `env:"RIPTIDE_CACHE_NAMESPACE" default:""`
}

// GateConfig configures the content-quality gate thresholds that decide
// whether a fetched document is extracted raw, probed with cheap
// extractors first, or routed to headless rendering.
type GateConfig struct {
	HiThreshold float64 `env:"RIPTIDE_GATE_HI_THRESHOLD" default:"0.7"`
	LoThreshold float64 `env:"RIPTIDE_GATE_LO_THRESHOLD" default:"0.3"`
}

// PipelineConfig configures the batch orchestrator's concurrency and
// per-URL deadlines.
type PipelineConfig struct {
	MaxConcurrency   int           `env:"RIPTIDE_MAX_CONCURRENCY" default:"16"`
	FetchTimeout     time.Duration `env:"RIPTIDE_FETCH_TIMEOUT" default:"10s"`
	RenderTimeout    time.Duration `env:"RIPTIDE_RENDER_TIMEOUT" default:"20s"`
	DeadlineFactor   float64       `env:"RIPTIDE_DEADLINE_FACTOR" default:"1.5"`
}

// CircuitBreakerConfig configures the reliability layer's default
// breaker, overridable per workload preset. Mirrors spec.md §4.5's
// consecutive-failure model: FailureThreshold is F, OpenCooldown is
// T_open, HalfOpenMax is H.
type CircuitBreakerConfig struct {
	FailureThreshold int           `env:"RIPTIDE_CB_FAILURE_THRESHOLD" default:"5"`
	OpenCooldown     time.Duration `env:"RIPTIDE_CB_OPEN_COOLDOWN" default:"30s"`
	HalfOpenMax      int           `env:"RIPTIDE_CB_HALF_OPEN_MAX" default:"3"`
}

// RetryConfig configures the reliability layer's exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           `env:"RIPTIDE_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `env:"RIPTIDE_RETRY_INITIAL_DELAY" default:"100ms"`
	MaxDelay     time.Duration `env:"RIPTIDE_RETRY_MAX_DELAY" default:"5s"`
	Multiplier   float64       `env:"RIPTIDE_RETRY_MULTIPLIER" default:"2.0"`
	JitterFrac   float64       `env:"RIPTIDE_RETRY_JITTER_FRACTION" default:"0.2"`
}

// BudgetConfig configures spend limits enforced by the budget
// coordinator.
type BudgetConfig struct {
	GlobalMonthlyLimitUSD float64 `env:"RIPTIDE_BUDGET_GLOBAL_MONTHLY_USD" default:"0"`
	TenantMonthlyLimitUSD float64 `env:"RIPTIDE_BUDGET_TENANT_MONTHLY_USD" default:"0"`
	JobLimitUSD           float64 `env:"RIPTIDE_BUDGET_JOB_USD" default:"0"`
}

// HTTPConfig configures the service's listen address and server
// timeouts.
type HTTPConfig struct {
	Address      string        `env:"RIPTIDE_ADDRESS" default:"localhost"`
	Port         int           `env:"RIPTIDE_PORT" default:"8080"`
	ReadTimeout  time.Duration `env:"RIPTIDE_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"RIPTIDE_HTTP_WRITE_TIMEOUT" default:"30s"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `env:"RIPTIDE_LOG_LEVEL" default:"INFO"`
	Format string `env:"RIPTIDE_LOG_FORMAT" default:"text"`
}

// TelemetryConfig configures distributed tracing export. An empty
// OTLPEndpoint traces to stdout, which is enough for local development
// without standing up a collector.
type TelemetryConfig struct {
	OTLPEndpoint string  `env:"RIPTIDE_OTLP_ENDPOINT" default:""`
	SampleRatio  float64 `env:"RIPTIDE_TRACE_SAMPLE_RATIO" default:"1.0"`
}

// Config is the fully assembled runtime configuration for a riptided
// process.
type Config struct {
	ServiceName string `env:"RIPTIDE_SERVICE_NAME" default:"riptided"`

	HTTP      HTTPConfig
	Logging   LoggingConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Gate      GateConfig
	Pipeline  PipelineConfig
	CB        CircuitBreakerConfig
	Retry     RetryConfig
	Budget    BudgetConfig
	Telemetry TelemetryConfig

	kubernetes bool
}

// Option mutates a Config after defaults and environment have been
// applied, for programmatic overrides (tests, embedding code).
type Option func(*Config) error

// DefaultConfig returns a Config populated with the struct-tag
// defaults above, then runs environment auto-detection.
func DefaultConfig() *Config {
	c := &Config{
		ServiceName: "riptided",
		HTTP: HTTPConfig{
			Address:      "localhost",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379",
			DB:           0,
			PoolSize:     20,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:        24 * time.Hour,
			CompressionEnable: true,
			CompressionMinLen: 1024,
			KeyVersion:        "v1",
		},
		Gate: GateConfig{HiThreshold: 0.7, LoThreshold: 0.3},
		Pipeline: PipelineConfig{
			MaxConcurrency: 16,
			FetchTimeout:   10 * time.Second,
			RenderTimeout:  20 * time.Second,
			DeadlineFactor: 1.5,
		},
		CB: CircuitBreakerConfig{
			FailureThreshold: 5,
			OpenCooldown:     30 * time.Second,
			HalfOpenMax:      3,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			JitterFrac:   0.2,
		},
		Telemetry: TelemetryConfig{SampleRatio: 1.0},
	}
	c.DetectEnvironment()
	return c
}

// DetectEnvironment adjusts defaults for the environment the process
// is running in. Kubernetes is auto-detected via KUBERNETES_SERVICE_HOST,
// same signal the logging package uses for JSON vs text output.
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.kubernetes = true
		c.HTTP.Address = "0.0.0.0"
		c.Logging.Format = "json"
		c.Redis.URL = "redis://redis.default.svc.cluster.local:6379"
		return
	}
	c.kubernetes = false
	c.HTTP.Address = "localhost"
	c.Logging.Format = "text"
}

// Load builds the final Config: defaults, environment detection,
// explicit environment variable overrides, then Options, then
// validation. Any validation failure is fatal to the caller.
func Load(opts ...Option) (*Config, error) {
	c := DefaultConfig()
	c.loadFromEnv()

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("config option: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("RIPTIDE_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}

	if v := os.Getenv("RIPTIDE_ADDRESS"); v != "" {
		c.HTTP.Address = v
	}
	if v := envInt("RIPTIDE_PORT"); v != nil {
		c.HTTP.Port = *v
	}
	if v := envDuration("RIPTIDE_HTTP_READ_TIMEOUT"); v != nil {
		c.HTTP.ReadTimeout = *v
	}
	if v := envDuration("RIPTIDE_HTTP_WRITE_TIMEOUT"); v != nil {
		c.HTTP.WriteTimeout = *v
	}

	if v := os.Getenv("RIPTIDE_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToUpper(v)
	}
	if v := os.Getenv("RIPTIDE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("RIPTIDE_REDIS_URL"); v != "" {
		c.Redis.URL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := envInt("RIPTIDE_REDIS_DB"); v != nil {
		c.Redis.DB = *v
	}
	if v := envInt("RIPTIDE_REDIS_POOL_SIZE"); v != nil {
		c.Redis.PoolSize = *v
	}
	if v := envInt("RIPTIDE_REDIS_MIN_IDLE_CONNS"); v != nil {
		c.Redis.MinIdleConns = *v
	}
	if v := envDuration("RIPTIDE_REDIS_DIAL_TIMEOUT"); v != nil {
		c.Redis.DialTimeout = *v
	}

	if v := envDuration("RIPTIDE_CACHE_TTL"); v != nil {
		c.Cache.DefaultTTL = *v
	}
	if v := os.Getenv("RIPTIDE_CACHE_COMPRESSION"); v != "" {
		c.Cache.CompressionEnable = parseBool(v)
	}
	if v := envInt("RIPTIDE_CACHE_COMPRESSION_MIN_BYTES"); v != nil {
		c.Cache.CompressionMinLen = *v
	}
	if v := os.Getenv("RIPTIDE_CACHE_KEY_VERSION"); v != "" {
		c.Cache.KeyVersion = v
	}
	if v := os.Getenv("RIPTIDE_CACHE_NAMESPACE"); v != "" {
		c.Cache.Namespace = v
	}

	if v := envFloat("RIPTIDE_GATE_HI_THRESHOLD"); v != nil {
		c.Gate.HiThreshold = *v
	}
	if v := envFloat("RIPTIDE_GATE_LO_THRESHOLD"); v != nil {
		c.Gate.LoThreshold = *v
	}

	if v := envInt("RIPTIDE_MAX_CONCURRENCY"); v != nil {
		c.Pipeline.MaxConcurrency = *v
	}
	if v := envDuration("RIPTIDE_FETCH_TIMEOUT"); v != nil {
		c.Pipeline.FetchTimeout = *v
	}
	if v := envDuration("RIPTIDE_RENDER_TIMEOUT"); v != nil {
		c.Pipeline.RenderTimeout = *v
	}
	if v := envFloat("RIPTIDE_DEADLINE_FACTOR"); v != nil {
		c.Pipeline.DeadlineFactor = *v
	}

	if v := envInt("RIPTIDE_CB_FAILURE_THRESHOLD"); v != nil {
		c.CB.FailureThreshold = *v
	}
	if v := envDuration("RIPTIDE_CB_OPEN_COOLDOWN"); v != nil {
		c.CB.OpenCooldown = *v
	}
	if v := envInt("RIPTIDE_CB_HALF_OPEN_MAX"); v != nil {
		c.CB.HalfOpenMax = *v
	}

	if v := envInt("RIPTIDE_RETRY_MAX_ATTEMPTS"); v != nil {
		c.Retry.MaxAttempts = *v
	}
	if v := envDuration("RIPTIDE_RETRY_INITIAL_DELAY"); v != nil {
		c.Retry.InitialDelay = *v
	}
	if v := envDuration("RIPTIDE_RETRY_MAX_DELAY"); v != nil {
		c.Retry.MaxDelay = *v
	}
	if v := envFloat("RIPTIDE_RETRY_MULTIPLIER"); v != nil {
		c.Retry.Multiplier = *v
	}
	if v := envFloat("RIPTIDE_RETRY_JITTER_FRACTION"); v != nil {
		c.Retry.JitterFrac = *v
	}

	if v := envFloat("RIPTIDE_BUDGET_GLOBAL_MONTHLY_USD"); v != nil {
		c.Budget.GlobalMonthlyLimitUSD = *v
	}
	if v := envFloat("RIPTIDE_BUDGET_TENANT_MONTHLY_USD"); v != nil {
		c.Budget.TenantMonthlyLimitUSD = *v
	}
	if v := envFloat("RIPTIDE_BUDGET_JOB_USD"); v != nil {
		c.Budget.JobLimitUSD = *v
	}

	if v := os.Getenv("RIPTIDE_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := envFloat("RIPTIDE_TRACE_SAMPLE_RATIO"); v != nil {
		c.Telemetry.SampleRatio = *v
	}
}

// Validate rejects configurations the rest of the system cannot run
// with safely. Called at startup; any error here is fatal.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port out of range: %d", c.HTTP.Port)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis url must not be empty")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool size must be positive, got %d", c.Redis.PoolSize)
	}
	if c.Gate.HiThreshold <= c.Gate.LoThreshold {
		return fmt.Errorf("gate hi threshold (%.2f) must exceed lo threshold (%.2f)", c.Gate.HiThreshold, c.Gate.LoThreshold)
	}
	if c.Gate.HiThreshold > 1.0 || c.Gate.LoThreshold < 0.0 {
		return fmt.Errorf("gate thresholds must lie in [0,1], got hi=%.2f lo=%.2f", c.Gate.HiThreshold, c.Gate.LoThreshold)
	}
	if c.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.Pipeline.MaxConcurrency)
	}
	if c.Pipeline.DeadlineFactor < 1.0 {
		return fmt.Errorf("deadline factor must be >= 1.0, got %.2f", c.Pipeline.DeadlineFactor)
	}
	if c.CB.FailureThreshold < 1 {
		return fmt.Errorf("circuit breaker failure threshold must be >= 1, got %d", c.CB.FailureThreshold)
	}
	if c.CB.OpenCooldown <= 0 {
		return fmt.Errorf("circuit breaker open cooldown must be positive, got %s", c.CB.OpenCooldown)
	}
	if c.CB.HalfOpenMax < 1 {
		return fmt.Errorf("circuit breaker half-open max must be >= 1, got %d", c.CB.HalfOpenMax)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier <= 1.0 {
		return fmt.Errorf("retry multiplier must be > 1.0, got %.2f", c.Retry.Multiplier)
	}
	if c.Budget.GlobalMonthlyLimitUSD < 0 || c.Budget.TenantMonthlyLimitUSD < 0 || c.Budget.JobLimitUSD < 0 {
		return fmt.Errorf("budget limits must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1.0 {
		return fmt.Errorf("trace sample ratio must lie in [0,1], got %.2f", c.Telemetry.SampleRatio)
	}
	return nil
}

// IsKubernetes reports whether environment auto-detection found a
// Kubernetes service account environment.
func (c *Config) IsKubernetes() bool {
	return c.kubernetes
}

// WithRedisURL overrides the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		return nil
	}
}

// WithGateThresholds overrides the content gate's hi/lo thresholds.
func WithGateThresholds(hi, lo float64) Option {
	return func(c *Config) error {
		c.Gate.HiThreshold = hi
		c.Gate.LoThreshold = lo
		return nil
	}
}

// WithMaxConcurrency overrides the pipeline's per-batch concurrency cap.
func WithMaxConcurrency(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("max concurrency must be positive, got %d", n)
		}
		c.Pipeline.MaxConcurrency = n
		return nil
	}
}

// WithHTTPAddress overrides the listen address and port.
func WithHTTPAddress(address string, port int) Option {
	return func(c *Config) error {
		c.HTTP.Address = address
		c.HTTP.Port = port
		return nil
	}
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func envDuration(key string) *time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil
	}
	return &d
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
