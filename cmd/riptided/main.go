// Command riptided runs RipTide's extraction service: it loads
// configuration, wires the cache, reliability, strategy, and
// coordination layers, and serves the batch extraction and health
// endpoints over HTTP, following the teacher's cmd/example wiring
// (config -> collaborators -> HTTP listen) generalized from a single
// agent onto the full extraction pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riptide/core/budget"
	"github.com/riptide/core/cache"
	"github.com/riptide/core/config"
	"github.com/riptide/core/coordination"
	"github.com/riptide/core/health"
	"github.com/riptide/core/logging"
	"github.com/riptide/core/observability"
	"github.com/riptide/core/pipeline"
	"github.com/riptide/core/redisx"
	"github.com/riptide/core/reliability"
	"github.com/riptide/core/strategy"
	"github.com/riptide/core/strategy/chunk"
	"github.com/riptide/core/streaming"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewProductionLogger(cfg.ServiceName)

	tracerProvider, err := observability.NewProvider(context.Background(), observability.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("observability: %v", err)
	}

	redisClient, err := redisx.New(redisx.Options{
		URL:          cfg.Redis.URL,
		DB:           redisx.DBCache,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		Logger:       logger.WithComponent("redis"),
	})
	if err != nil {
		logger.Error("redis unavailable, starting degraded", map[string]interface{}{"error": err.Error()})
	}

	var extractionCache *cache.Cache
	if redisClient != nil {
		extractionCache, err = cache.New(cache.Options{
			Redis:               redisClient,
			KeyPrefix:           "riptide",
			Namespace:           cfg.Cache.Namespace,
			KeyVersion:          cfg.Cache.KeyVersion,
			DefaultTTL:          cfg.Cache.DefaultTTL,
			CompressionEnable:   cfg.Cache.CompressionEnable,
			CompressionMinBytes: cfg.Cache.CompressionMinLen,
			InvalidationChannel: "riptide:cache:invalidate",
			Logger:              logger.WithComponent("cache"),
		})
		if err != nil {
			logger.Error("cache unavailable, starting without it", map[string]interface{}{"error": err.Error()})
		}
	}

	registry := strategy.NewRegistry()
	registry.RegisterExtractor("css", strategy.NewCSSExtractor("css", nil))
	registry.RegisterExtractor("native", strategy.NewNativeExtractor("native"))
	registry.RegisterExtractor("regex", strategy.NewRegexExtractor("regex", nil))
	registry.RegisterChunker("sliding", chunk.Sliding{})
	registry.RegisterChunker("fixed", chunk.Fixed{})
	registry.RegisterChunker("topic", chunk.Topic{})

	webScrapeClient := reliability.NewHTTPClient(reliability.WorkloadWebScrape, logger.WithComponent("http"))
	webScrapeClient.SetTransport(observability.InstrumentTransport(nil))

	orchestrator, err := pipeline.New(pipeline.Config{
		Registry:   registry,
		Cache:      extractionCache,
		HTTPClient: webScrapeClient,
		Fetch:      fetchViaClient(webScrapeClient),
		Gate:       pipeline.GateThresholds{Hi: cfg.Gate.HiThreshold, Lo: cfg.Gate.LoThreshold},
		Defaults: pipeline.PipelineDefaults{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			FetchTimeout:   cfg.Pipeline.FetchTimeout,
			RenderTimeout:  cfg.Pipeline.RenderTimeout,
			DeadlineFactor: cfg.Pipeline.DeadlineFactor,
		},
		KeyVersion: cfg.Cache.KeyVersion,
		Logger:     logger.WithComponent("pipeline"),
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	budgetCoordinator := budget.New(budget.Options{
		Limits: budget.Limits{
			PerJobUSD:    cfg.Budget.JobLimitUSD,
			PerTenantUSD: cfg.Budget.TenantMonthlyLimitUSD,
			GlobalUSD:    cfg.Budget.GlobalMonthlyLimitUSD,
		},
		Logger: logger.WithComponent("budget"),
	})

	var coord coordination.Coordinator = coordination.NewInMemory()
	if redisClient != nil {
		coord = coordination.NewRedis(redisClient, logger.WithComponent("coordination"))
	}
	startHeartbeat(coord, cfg.ServiceName, logger.WithComponent("coordination"))

	checker := health.NewChecker(5 * time.Second)
	if redisClient != nil {
		checker.Register(health.RedisProbe(redisClient))
	}
	checker.Register(health.CircuitBreakerProbe("web-scrape", webScrapeClient.Breaker()))

	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/extract", extractHandler(orchestrator, budgetCoordinator, logger.WithComponent("http")))
	mux.Handle("/extract/stream", streamHandler(orchestrator, budgetCoordinator, logger.WithComponent("http")))

	addr := cfg.HTTP.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	server := &http.Server{
		Addr:         formatAddr(addr, cfg.HTTP.Port),
		Handler:      observability.Middleware(cfg.ServiceName, mux),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("riptided listening", map[string]interface{}{"address": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Warn("tracer shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// startHeartbeat registers this instance as a live cluster member and
// keeps renewing it, so peers calling coord.Members can discover
// which riptided instances are currently up.
func startHeartbeat(coord coordination.Coordinator, memberID string, logger logging.Logger) {
	const ttl = 30 * time.Second
	ctx := context.Background()
	if err := coord.JoinCluster(ctx, memberID, ttl); err != nil {
		logger.Warn("initial cluster join failed", map[string]interface{}{"error": err.Error()})
	}
	go func() {
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for range ticker.C {
			if err := coord.JoinCluster(ctx, memberID, ttl); err != nil {
				logger.Warn("cluster heartbeat failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
}

func formatAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

type batchRequest struct {
	URLs       []string `json:"urls"`
	TenantID   string   `json:"tenant_id"`
	RenderMode string   `json:"render_mode"`
}

func extractHandler(o *pipeline.Orchestrator, budgetCoord *budget.Coordinator, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.URLs) == 0 {
			http.Error(w, "urls must not be empty", http.StatusBadRequest)
			return
		}

		if err := budgetCoord.Check(r.Context(), req.TenantID, 0, 0); err != nil {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}

		summary, err := o.ExecuteBatch(r.Context(), req.URLs, pipeline.Options{
			RenderMode: pipeline.RenderMode(req.RenderMode),
		})
		if err != nil {
			logger.Error("batch execution failed", map[string]interface{}{"error": err.Error()})
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	})
}

// streamHandler runs a batch and delivers its results as NDJSON
// frames over a bounded streaming.Connection, so a slow HTTP client
// can't stall the orchestrator that feeds it.
func streamHandler(o *pipeline.Orchestrator, budgetCoord *budget.Coordinator, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.URLs) == 0 {
			http.Error(w, "urls must not be empty", http.StatusBadRequest)
			return
		}
		if err := budgetCoord.Check(r.Context(), req.TenantID, 0, 0); err != nil {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}

		conn := streaming.NewConnection(streaming.Options{ID: r.RemoteAddr, Logger: logger})
		conn.Welcome(map[string]int{"url_count": len(req.URLs)})

		go func() {
			summary, err := o.ExecuteBatch(r.Context(), req.URLs, pipeline.Options{
				RenderMode: pipeline.RenderMode(req.RenderMode),
			})
			if err != nil {
				conn.Send(streaming.Frame{Type: streaming.FrameError, Data: err.Error()})
				conn.Close()
				return
			}
			for _, result := range summary.Results {
				conn.Send(streaming.Frame{Type: streaming.FrameResult, Index: result.Index, Data: result})
			}
			conn.Done()
			conn.Close()
		}()

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		if err := streaming.WriteNDJSON(w, conn); err != nil {
			logger.Warn("stream write failed", map[string]interface{}{"error": err.Error()})
		}
	})
}

// fetchViaClient adapts an HTTPClient into a pipeline.FetchFunc,
// the boundary between the pipeline's pure per-URL sequencing and the
// reliability layer's actual network transport.
func fetchViaClient(client *reliability.HTTPClient) pipeline.FetchFunc {
	return func(ctx context.Context, rawURL string, mode pipeline.RenderMode) ([]byte, string, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", 0, err
		}
		resp, err := client.Do(ctx, req, reliability.CallOptions{})
		if err != nil {
			return nil, "", 0, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", resp.StatusCode, err
		}
		return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
	}
}
