package strategy

import "context"

// SandboxedExtractor models an isolated, deterministic extraction
// environment (e.g. a WASM or subprocess sandbox) as an out-of-process
// capability. RipTide's sandbox internals are out of scope (see
// Non-goals); this is the port a future sandboxed extractor adapter
// implements to plug into the Registry like any other Extractor.
type SandboxedExtractor interface {
	Extractor
	// Isolate reports the sandbox backend identifier (e.g. "wasm",
	// "subprocess") so callers can distinguish sandboxed handles from
	// in-process ones when reasoning about resource isolation.
	Isolate() string
}

// DynamicRendererClient drives a headless rendering engine over RPC
// to produce post-JavaScript HTML, then hands the result to a normal
// Extractor. Headless browser internals are out of scope (see
// Non-goals); this is the RPC client port a future renderer adapter
// implements.
type DynamicRendererClient interface {
	// Render fetches url through the headless engine and returns the
	// rendered HTML, honoring ctx's deadline.
	Render(ctx context.Context, url string) ([]byte, error)
}

// DynamicExtractor composes a DynamicRendererClient with a downstream
// Extractor: it renders the page, then delegates structural
// extraction to the wrapped extractor.
type DynamicExtractor struct {
	name     string
	renderer DynamicRendererClient
	inner    Extractor
}

// NewDynamicExtractor builds a DynamicExtractor named name, using
// renderer to produce HTML for inner to parse.
func NewDynamicExtractor(name string, renderer DynamicRendererClient, inner Extractor) *DynamicExtractor {
	return &DynamicExtractor{name: name, renderer: renderer, inner: inner}
}

func (e *DynamicExtractor) Name() string {
	return e.name
}

// Extract ignores the html argument and renders url fresh through the
// headless engine, since the whole point of the dynamic strategy is
// that the caller's raw fetch was insufficient (client-rendered
// content, low gate score).
func (e *DynamicExtractor) Extract(_ []byte, url string) (Document, error) {
	rendered, err := e.renderer.Render(context.Background(), url)
	if err != nil {
		return Document{}, err
	}
	doc, err := e.inner.Extract(rendered, url)
	if err != nil {
		return Document{}, err
	}
	doc.StrategyUsed = e.name
	return doc, nil
}
