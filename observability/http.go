package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Middleware wraps an http.Handler with otelhttp's server instrumentation,
// generalizing the teacher's TracingMiddleware(serviceName) into a
// handler-level wrapper applied once around the whole mux rather than
// per-route, matching how riptided only has a handful of endpoints.
func Middleware(serviceName string, next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, serviceName)
}

// InstrumentTransport wraps an http.RoundTripper so outbound calls
// (the fetch client hitting target URLs) propagate trace context and
// record spans, mirroring the teacher's NewTracedHTTPClient but
// applied to riptide's per-workload reliability.HTTPClient instead of
// a single shared client.
func InstrumentTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
