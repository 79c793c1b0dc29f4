// Package pipeline implements RipTide's per-URL extraction pipeline: a
// concurrency-gated batch orchestrator driving each URL through
// cache-check, fetch, gate, extract, chunk, and cache-write, yielding
// an ordered BatchSummary. It generalizes the teacher's async task
// worker (core/async_task.go's Task/TaskStatus lifecycle) from a
// queue-and-worker-pool model onto an in-process fan-out over a fixed
// URL batch, and composes the reliability, cache, and strategy layers
// rather than re-implementing any of them.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/riptide/core/cache"
	"github.com/riptide/core/jobstate"
	"github.com/riptide/core/logging"
	"github.com/riptide/core/reliability"
	"github.com/riptide/core/rerrors"
	"github.com/riptide/core/strategy"
)

// CacheMode controls whether the orchestrator reads and/or writes the
// cache for a batch.
type CacheMode string

const (
	CacheReadThrough CacheMode = "read_through"
	CacheBypass      CacheMode = "bypass"
	CacheWriteOnly   CacheMode = "write_only"
)

// RenderMode selects the fetch/extraction timeout preset and, in
// conjunction with the Gate decision, which strategy family a URL is
// eligible for.
type RenderMode string

const (
	RenderHTML    RenderMode = "html"
	RenderMarkdown RenderMode = "markdown"
	RenderPDF     RenderMode = "pdf"
	RenderDynamic RenderMode = "dynamic"
)

// Decision is the Gate's classification of a fetched document.
type Decision string

const (
	DecisionCached      Decision = "cached"
	DecisionRaw         Decision = "raw"
	DecisionProbesFirst Decision = "probes_first"
	DecisionHeadless    Decision = "headless"
)

// Options configures one batch execution.
type Options struct {
	Concurrency        int
	CacheMode          CacheMode
	RenderMode         RenderMode
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	WaitForSelector    string
	ScrollSteps        int

	ChunkStrategy     string
	ExtractorOverride string
}

func (o Options) withDefaults(cfg PipelineDefaults) Options {
	if o.Concurrency <= 0 {
		o.Concurrency = cfg.MaxConcurrency
	}
	if o.RenderMode == "" {
		o.RenderMode = RenderHTML
	}
	if o.CacheMode == "" {
		o.CacheMode = CacheReadThrough
	}
	if o.ChunkMaxTokens <= 0 {
		o.ChunkMaxTokens = 512
	}
	if o.ChunkStrategy == "" {
		o.ChunkStrategy = "sliding"
	}
	return o
}

// PipelineDefaults carries the subset of config.PipelineConfig the
// orchestrator needs, kept separate so this package never imports the
// config package directly (config is an ambient concern; the
// orchestrator only needs the resolved numbers).
type PipelineDefaults struct {
	MaxConcurrency int
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
	DeadlineFactor float64
}

// GateThresholds configures the content-quality gate's decision
// boundaries.
type GateThresholds struct {
	Hi float64
	Lo float64
}

// Result is the per-URL outcome of one pipeline run.
type Result struct {
	URL            string
	Index          int
	Status         int
	Decision       Decision
	Quality        float64
	ProcessingTime time.Duration
	FromCache      bool
	CacheKey       string
	Document       *strategy.Document
	Chunks         []strategy.Chunk
	Err            error
}

// BatchSummary aggregates a batch's per-URL Results.
type BatchSummary struct {
	Results          []Result
	DecisionCounts   map[Decision]int
	SuccessCount     int
	FailureCount     int
	CacheHits        int
	TotalProcessTime time.Duration
}

// FetchFunc retrieves raw content for a URL. The orchestrator calls it
// directly and adds no retry or circuit breaking of its own; a
// FetchFunc that wants them goes through a reliability.HTTPClient.
type FetchFunc func(ctx context.Context, rawURL string, mode RenderMode) (body []byte, contentType string, status int, err error)

// Orchestrator drives batches of URLs through the extraction
// pipeline.
type Orchestrator struct {
	registry   *strategy.Registry
	cache      *cache.Cache
	httpClient *reliability.HTTPClient
	fetch      FetchFunc
	gate       GateThresholds
	defaults   PipelineDefaults
	logger     logging.Logger
	metrics    *metrics

	keyVersion string
}

// Config bundles an Orchestrator's collaborators.
type Config struct {
	Registry   *strategy.Registry
	Cache      *cache.Cache
	HTTPClient *reliability.HTTPClient
	Fetch      FetchFunc
	Gate       GateThresholds
	Defaults   PipelineDefaults
	KeyVersion string
	Logger     logging.Logger
}

// New builds an Orchestrator. Fetch is required; Cache may be nil, in
// which case every run behaves as CacheBypass regardless of the
// requested CacheMode.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Fetch == nil {
		return nil, rerrors.New("pipeline.New", rerrors.KindInvalidRequest, "", fmt.Errorf("fetch function is required"))
	}
	if cfg.Registry == nil {
		return nil, rerrors.New("pipeline.New", rerrors.KindInvalidRequest, "", fmt.Errorf("strategy registry is required"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOp{}
	}
	if cfg.KeyVersion == "" {
		cfg.KeyVersion = "v1"
	}
	if cfg.Gate.Hi == 0 && cfg.Gate.Lo == 0 {
		cfg.Gate = GateThresholds{Hi: 0.7, Lo: 0.3}
	}
	return &Orchestrator{
		registry:   cfg.Registry,
		cache:      cfg.Cache,
		httpClient: cfg.HTTPClient,
		fetch:      cfg.Fetch,
		gate:       cfg.Gate,
		defaults:   cfg.Defaults,
		logger:     cfg.Logger,
		metrics:    newMetrics(),
		keyVersion: cfg.KeyVersion,
	}, nil
}

// ExecuteBatch drives urls through the pipeline under a concurrency
// cap, returning a BatchSummary once every URL has a terminal result.
// Per-URL failures never abort the batch; only a nil/empty urls list
// is rejected outright.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, urls []string, opts Options) (*BatchSummary, error) {
	if len(urls) == 0 {
		return nil, rerrors.New("pipeline.Orchestrator.ExecuteBatch", rerrors.KindInvalidRequest, "", fmt.Errorf("url list must not be empty"))
	}
	opts = opts.withDefaults(o.defaults)

	sem := make(chan struct{}, opts.Concurrency)
	results := make([]Result, len(urls))
	var wg sync.WaitGroup

	start := time.Now()
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.runOne(ctx, i, u, opts)
		}(i, u)
	}
	wg.Wait()

	summary := &BatchSummary{
		Results:          results,
		DecisionCounts:   map[Decision]int{},
		TotalProcessTime: time.Since(start),
	}
	for _, r := range results {
		summary.DecisionCounts[r.Decision]++
		if r.FromCache {
			summary.CacheHits++
		}
		if r.Err != nil {
			summary.FailureCount++
		} else {
			summary.SuccessCount++
		}
	}
	return summary, nil
}

// runOne executes the fetch->gate->extract->chunk->cache sequence for
// a single URL, never returning an error itself: every failure is
// captured on the Result so the batch can continue.
func (o *Orchestrator) runOne(ctx context.Context, index int, rawURL string, opts Options) (result Result) {
	started := time.Now()
	result = Result{URL: rawURL, Index: index}
	defer func() { o.metrics.recordResult(ctx, result) }()

	key := o.cacheKey(rawURL, opts)
	result.CacheKey = key

	state := jobstate.NewJob()

	if o.cache != nil && opts.CacheMode == CacheReadThrough {
		if entry, err := o.cache.Get(ctx, key); err == nil {
			result.FromCache = true
			result.Decision = DecisionCached
			result.Quality = 1.0
			result.Document = documentFromCacheEntry(entry, rawURL)
			result.ProcessingTime = time.Since(started)
			_ = state.Transition(jobstate.JobCompleted)
			return result
		}
	}

	deadline := o.deadlineFor(opts.RenderMode)
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	_ = state.Transition(jobstate.JobAssigned)
	_ = state.Transition(jobstate.JobProcessing)

	body, contentType, status, err := o.fetch(runCtx, rawURL, opts.RenderMode)
	result.Status = status
	if err != nil {
		if runCtx.Err() != nil {
			_ = state.Transition(jobstate.JobTimedOut)
			result.Err = rerrors.New("pipeline.Orchestrator.runOne", rerrors.KindTimeout, rawURL, err)
		} else {
			_ = state.Transition(jobstate.JobFailed)
			result.Err = err
		}
		result.ProcessingTime = time.Since(started)
		return result
	}

	decision, quality := Gate(body, contentType, GateOptions{Hi: o.gate.Hi, Lo: o.gate.Lo})
	result.Decision = decision
	result.Quality = quality

	extractorName := opts.ExtractorOverride
	if extractorName == "" {
		extractorName = extractorFor(decision, contentType)
	}

	doc, usedName, err := o.extractWithFallback(body, rawURL, extractorName)
	if err != nil {
		_ = state.Transition(jobstate.JobFailed)
		result.Err = err
		result.ProcessingTime = time.Since(started)
		return result
	}

	// Ambiguous (probes_first) documents are extracted cheaply first;
	// a low-confidence result escalates once to the dynamic/headless
	// extractor rather than being accepted as-is.
	if decision == DecisionProbesFirst && extractionConfidence(doc) < o.gate.Lo {
		if escalated, eerr := o.registry.Extractor("dynamic"); eerr == nil {
			if escalatedDoc, eerr := escalated.Extract(body, rawURL); eerr == nil {
				doc = escalatedDoc
				usedName = "dynamic"
			}
		}
	}

	doc.StrategyUsed = usedName
	doc.ContentType = contentType
	result.Document = &doc

	chunker, err := o.registry.Chunker(opts.ChunkStrategy)
	if err == nil {
		chunks, cerr := chunker.Chunk(doc.Text, strategy.ChunkConfig{
			TokenMax: opts.ChunkMaxTokens,
			Overlap:  opts.ChunkOverlapTokens,
		})
		if cerr == nil {
			result.Chunks = chunks
		}
	}

	if o.cache != nil && (opts.CacheMode == CacheReadThrough || opts.CacheMode == CacheWriteOnly) {
		entry := cache.Entry{Value: body, ContentType: contentType, StoredAt: time.Now()}
		_ = o.cache.Set(ctx, key, entry, 0, cache.ModeReadWrite)
	}

	_ = state.Transition(jobstate.JobCompleted)
	result.ProcessingTime = time.Since(started)
	return result
}

// deadlineFor returns the per-URL execution deadline: the render
// mode's timeout preset scaled by DeadlineFactor, so a URL that is
// merely slow (rather than genuinely stuck) still has headroom beyond
// the raw fetch timeout before being reported TimedOut.
func (o *Orchestrator) deadlineFor(mode RenderMode) time.Duration {
	base := o.defaults.FetchTimeout
	if mode == RenderDynamic || mode == RenderPDF {
		base = o.defaults.RenderTimeout
	}
	if base <= 0 {
		base = 10 * time.Second
	}
	factor := o.defaults.DeadlineFactor
	if factor < 1.0 {
		factor = 1.5
	}
	return time.Duration(float64(base) * factor)
}

// cacheKey hashes the normalized URL, key version, and the options
// that change extraction output (render mode, chunk strategy) so two
// requests for the same URL with different rendering never collide.
func (o *Orchestrator) cacheKey(rawURL string, opts Options) string {
	normalized := normalizeURL(rawURL)
	sig := fmt.Sprintf("%s|%s|%s|%s", normalized, o.keyVersion, opts.RenderMode, opts.ChunkStrategy)
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:])
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// extractWithFallback resolves and runs primaryName's extractor. Per
// spec.md §4.1's tie-break policy, a strategy/extractor failure
// triggers one attempt of the declared fallback strategy; if the
// fallback also fails, the result carries the original failure, not
// the fallback's.
func (o *Orchestrator) extractWithFallback(body []byte, rawURL, primaryName string) (strategy.Document, string, error) {
	extractor, err := o.registry.Extractor(primaryName)
	if err != nil {
		return o.tryFallback(body, rawURL, primaryName, err)
	}
	doc, err := extractor.Extract(body, rawURL)
	if err != nil {
		return o.tryFallback(body, rawURL, primaryName, err)
	}
	return doc, primaryName, nil
}

func (o *Orchestrator) tryFallback(body []byte, rawURL, primaryName string, original error) (strategy.Document, string, error) {
	fallbackName := fallbackFor(primaryName)
	if fallbackName == "" {
		return strategy.Document{}, primaryName, original
	}
	fallback, err := o.registry.Extractor(fallbackName)
	if err != nil {
		return strategy.Document{}, primaryName, original
	}
	doc, err := fallback.Extract(body, rawURL)
	if err != nil {
		return strategy.Document{}, primaryName, original
	}
	return doc, fallbackName, nil
}

// fallbackFor declares each extractor's backstop: css's lightweight
// selectors fall back to the dependency-free native reader, the
// dynamic (headless) extractor falls back to a plain css pass should
// rendering itself fail, and pdf/native/regex have no cheaper backstop
// to fall to.
func fallbackFor(name string) string {
	switch name {
	case "css":
		return "native"
	case "dynamic":
		return "css"
	default:
		return ""
	}
}

// extractionConfidence scores an already-extracted Document the same
// way Gate scores raw bytes: title presence and a length bucket, so
// the probes_first path can judge whether its cheap extractor actually
// found an article or just noise.
func extractionConfidence(doc strategy.Document) float64 {
	titlePresent := 0.0
	if doc.Title != "" {
		titlePresent = 1.0
	}
	return 0.5*titlePresent + 0.5*lengthBucketScore(len(doc.Text))
}

// extractorFor maps a Gate decision and content type to a registered
// extractor name. PDFs always route to the pdf strategy regardless of
// decision; headless decisions route to the dynamic extractor, raw
// decisions to the native extractor, and everything else (probes_first)
// to css, which probes cheaply before a caller escalates.
func extractorFor(decision Decision, contentType string) string {
	switch {
	case isPDF(contentType):
		return "pdf"
	case decision == DecisionHeadless:
		return "dynamic"
	case decision == DecisionRaw:
		return "native"
	default:
		return "css"
	}
}

func isPDF(contentType string) bool {
	return contentType == "application/pdf"
}

func documentFromCacheEntry(entry cache.Entry, rawURL string) *strategy.Document {
	return &strategy.Document{
		URL:          rawURL,
		Text:         string(entry.Value),
		ContentType:  entry.ContentType,
		ExtractedAt:  entry.StoredAt,
		StrategyUsed: "cached",
	}
}
