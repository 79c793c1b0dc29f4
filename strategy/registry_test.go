package strategy

import (
	"testing"

	"github.com/riptide/core/rerrors"
)

type fakeExtractor struct{ name string }

func (f fakeExtractor) Name() string { return f.name }
func (f fakeExtractor) Extract(html []byte, url string) (Document, error) {
	return Document{URL: url, StrategyUsed: f.name}, nil
}

type fakeChunker struct{ name string }

func (f fakeChunker) Name() string { return f.name }
func (f fakeChunker) Chunk(text string, cfg ChunkConfig) ([]Chunk, error) {
	return []Chunk{{Content: text, ChunkType: f.name}}, nil
}

func TestRegistryResolvesByName(t *testing.T) {
	r := NewRegistry()
	r.RegisterExtractor("css", fakeExtractor{name: "css"})
	r.RegisterChunker("sliding", fakeChunker{name: "sliding"})

	e, err := r.Extractor("css")
	if err != nil || e.Name() != "css" {
		t.Fatalf("expected css extractor, got %v err=%v", e, err)
	}
	c, err := r.Chunker("sliding")
	if err != nil || c.Name() != "sliding" {
		t.Fatalf("expected sliding chunker, got %v err=%v", c, err)
	}
}

func TestRegistryUnknownNameFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extractor("nope")
	if !rerrors.Is(err, rerrors.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRegistryHotSwapDoesNotAffectInFlightSnapshot(t *testing.T) {
	r := NewRegistry()
	r.RegisterExtractor("css", fakeExtractor{name: "css-v1"})

	snapBefore, _ := r.Extractor("css")

	r.RegisterExtractor("css", fakeExtractor{name: "css-v2"})
	snapAfter, _ := r.Extractor("css")

	if snapBefore.Name() != "css-v1" {
		t.Fatalf("captured handle should remain css-v1, got %s", snapBefore.Name())
	}
	if snapAfter.Name() != "css-v2" {
		t.Fatalf("new lookup should see css-v2, got %s", snapAfter.Name())
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.RegisterExtractor("css", fakeExtractor{name: "css"})
	r.RegisterExtractor("regex", fakeExtractor{name: "regex"})
	names := r.ExtractorNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 extractor names, got %v", names)
	}
}
