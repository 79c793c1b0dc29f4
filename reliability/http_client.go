package reliability

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/rerrors"
)

// Workload tags a call site by the kind of dependency it hits, so the
// reliability layer can apply a matching breaker/retry preset instead
// of one global policy for every outbound request.
type Workload string

const (
	WorkloadBrowserRender  Workload = "browser-render"
	WorkloadPDF            Workload = "pdf"
	WorkloadSearchIndex    Workload = "search-index"
	WorkloadExternalAPI    Workload = "external-api"
	WorkloadInternalService Workload = "internal-service"
	WorkloadWebScrape      Workload = "web-scrape"
)

// presets holds the breaker/retry/timeout tuning for each workload,
// reflecting how differently tolerant each dependency class is of
// latency and transient failure.
var presets = map[Workload]struct {
	cb      *Config
	retry   *RetryConfig
	timeout time.Duration
}{
	WorkloadBrowserRender: {
		cb:      &Config{Name: "browser-render", FailureThreshold: 3, OpenCooldown: 20 * time.Second, HalfOpenMax: 2},
		retry:   &RetryConfig{MaxAttempts: 2, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0, JitterFraction: 0.2},
		timeout: 20 * time.Second,
	},
	WorkloadPDF: {
		cb:      &Config{Name: "pdf", FailureThreshold: 3, OpenCooldown: 30 * time.Second, HalfOpenMax: 2},
		retry:   &RetryConfig{MaxAttempts: 2, InitialDelay: 300 * time.Millisecond, MaxDelay: 3 * time.Second, Multiplier: 2.0, JitterFraction: 0.2},
		timeout: 30 * time.Second,
	},
	WorkloadSearchIndex: {
		cb:      &Config{Name: "search-index", FailureThreshold: 8, OpenCooldown: 10 * time.Second, HalfOpenMax: 5},
		retry:   &RetryConfig{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: 1 * time.Second, Multiplier: 2.0, JitterFraction: 0.2},
		timeout: 5 * time.Second,
	},
	WorkloadExternalAPI: {
		cb:      &Config{Name: "external-api", FailureThreshold: 5, OpenCooldown: 30 * time.Second, HalfOpenMax: 3},
		retry:   &RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2.0, JitterFraction: 0.2},
		timeout: 10 * time.Second,
	},
	WorkloadInternalService: {
		cb:      &Config{Name: "internal-service", FailureThreshold: 10, OpenCooldown: 5 * time.Second, HalfOpenMax: 5},
		retry:   &RetryConfig{MaxAttempts: 3, InitialDelay: 25 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Multiplier: 2.0, JitterFraction: 0.2},
		timeout: 3 * time.Second,
	},
	WorkloadWebScrape: {
		cb:      &Config{Name: "web-scrape", FailureThreshold: 5, OpenCooldown: 15 * time.Second, HalfOpenMax: 3},
		retry:   &RetryConfig{MaxAttempts: 2, InitialDelay: 150 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0, JitterFraction: 0.3},
		timeout: 10 * time.Second,
	},
}

// HTTPClient wraps http.Client with a per-workload circuit breaker
// and retry policy, so call sites opt into a preset by declaring what
// kind of dependency they're calling rather than hand-tuning timeouts.
type HTTPClient struct {
	raw     *http.Client
	breaker *CircuitBreaker
	retry   *RetryConfig
	timeout time.Duration
	logger  logging.Logger
}

// NewHTTPClient builds an HTTPClient for workload using its preset
// breaker and retry tuning. An unrecognized workload falls back to
// WorkloadExternalAPI's preset.
func NewHTTPClient(workload Workload, logger logging.Logger) *HTTPClient {
	if logger == nil {
		logger = logging.NoOp{}
	}
	preset, ok := presets[workload]
	if !ok {
		preset = presets[WorkloadExternalAPI]
	}
	cbConfig := *preset.cb
	cbConfig.Logger = logger
	return &HTTPClient{
		raw:     &http.Client{Timeout: preset.timeout},
		breaker: New(&cbConfig),
		retry:   preset.retry,
		timeout: preset.timeout,
		logger:  logger,
	}
}

// CallOptions tunes a single request beyond its workload preset.
type CallOptions struct {
	// BypassCircuitBreaker skips breaker gating for this call, used
	// sparingly by operators diagnosing a dependency they know is
	// flapping but want to probe anyway.
	BypassCircuitBreaker bool
}

// Do executes req honoring the client's breaker and retry policy,
// closing the response body automatically on error paths so callers
// never leak connections on a failed attempt.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request, opts CallOptions) (*http.Response, error) {
	var resp *http.Response

	attempt := func(ctx context.Context) error {
		r := req.Clone(ctx)
		out, err := c.raw.Do(r)
		if err != nil {
			return rerrors.New("reliability.HTTPClient.Do", rerrors.KindTransport, req.URL.String(), err)
		}
		if out.StatusCode >= 500 || out.StatusCode == 408 || out.StatusCode == 429 {
			io.Copy(io.Discard, out.Body)
			out.Body.Close()
			return rerrors.New("reliability.HTTPClient.Do", rerrors.KindTransport, req.URL.String(),
				httpStatusError(out.StatusCode))
		}
		resp = out
		return nil
	}

	var err error
	if opts.BypassCircuitBreaker {
		err = Retry(ctx, c.retry, attempt)
	} else {
		err = Retry(ctx, c.retry, func(ctx context.Context) error {
			return c.breaker.Execute(ctx, attempt)
		})
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Breaker exposes the underlying circuit breaker for health reporting.
func (c *HTTPClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// SetTransport swaps the underlying http.Client's RoundTripper, letting
// callers layer instrumentation (tracing, metrics) around the default
// transport without reimplementing the breaker/retry wrapping above it.
func (c *HTTPClient) SetTransport(rt http.RoundTripper) {
	c.raw.Transport = rt
}

type httpStatusErr struct{ code int }

func (e httpStatusErr) Error() string {
	return http.StatusText(e.code)
}

func httpStatusError(code int) error {
	return httpStatusErr{code: code}
}
