// Package logging provides RipTide's structured logging interface and a
// production JSON/text logger, following the layered, component-aware
// design used throughout the reliability and pipeline packages.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal logging interface threaded through every
// component. Context-aware variants allow trace/request correlation
// without forcing every call site to format its own fields.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger lets a subsystem tag its log lines with a stable
// component name (e.g. "pipeline", "cache", "reliability") so operators
// can filter by subsystem without parsing message text.
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOp discards everything. Used as the default for components that
// receive no logger.
type NoOp struct{}

func (NoOp) Info(string, map[string]interface{})                             {}
func (NoOp) Warn(string, map[string]interface{})                             {}
func (NoOp) Error(string, map[string]interface{})                            {}
func (NoOp) Debug(string, map[string]interface{})                            {}
func (NoOp) InfoContext(context.Context, string, map[string]interface{})     {}
func (NoOp) WarnContext(context.Context, string, map[string]interface{})     {}
func (NoOp) ErrorContext(context.Context, string, map[string]interface{})    {}
func (NoOp) DebugContext(context.Context, string, map[string]interface{})    {}

// ProductionLogger writes JSON in Kubernetes (auto-detected) and a
// human-readable line format otherwise. Safe for concurrent use.
type ProductionLogger struct {
	level     string
	format    string
	component string
	service   string
	output    io.Writer
	mu        sync.Mutex
}

// NewProductionLogger builds a logger for serviceName. Level and format
// are resolved from RIPTIDE_LOG_LEVEL / RIPTIDE_LOG_FORMAT, defaulting to
// INFO/text, or JSON when KUBERNETES_SERVICE_HOST is present.
func NewProductionLogger(serviceName string) *ProductionLogger {
	level := strings.ToUpper(os.Getenv("RIPTIDE_LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if f := os.Getenv("RIPTIDE_LOG_FORMAT"); f != "" {
		format = f
	}
	return &ProductionLogger{
		level:   level,
		format:  format,
		service: serviceName,
		output:  os.Stdout,
	}
}

// SetOutput redirects log output, primarily for tests.
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// WithComponent returns a logger that tags every line with component,
// sharing the parent's level, format, and output.
func (l *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:     l.level,
		format:    l.format,
		component: component,
		service:   l.service,
		output:    l.output,
	}
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}
func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}
func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *ProductionLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("INFO", msg, withTraceID(ctx, fields))
}
func (l *ProductionLogger) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("WARN", msg, withTraceID(ctx, fields))
}
func (l *ProductionLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, withTraceID(ctx, fields))
}
func (l *ProductionLogger) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, withTraceID(ctx, fields))
}

type traceIDKey struct{}

// ContextWithTraceID attaches a request/trace correlation id to ctx.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func withTraceID(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	id, _ := ctx.Value(traceIDKey{}).(string)
	if id == "" {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["trace_id"] = id
	return out
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func (l *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.level] {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339)
	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": ts,
			"level":     level,
			"service":   l.service,
			"component": l.component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	var b strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintf(l.output, "%s [%s] [%s:%s] %s%s\n", ts, level, l.service, l.component, msg, b.String())
}
