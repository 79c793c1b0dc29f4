package chunk

import (
	"strings"
	"testing"

	"github.com/riptide/core/strategy"
)

func TestTopicChunkSplitsDistinctTopics(t *testing.T) {
	paragraphA := strings.Repeat("The ocean tide rises and falls with the gravitational pull of the moon. Coastal erosion reshapes the shoreline every season. ", 4)
	paragraphB := strings.Repeat("Quarterly revenue exceeded analyst expectations this fiscal year. The board approved a new dividend policy for shareholders. ", 4)
	text := paragraphA + paragraphB

	topic := Topic{}
	chunks, err := topic.Chunk(text, strategy.ChunkConfig{MinChunkSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	for i, c := range chunks {
		if c.ChunkType != "topic" {
			t.Fatalf("expected topic chunk type, got %q", c.ChunkType)
		}
		if c.Index != i {
			t.Fatalf("expected ordered index %d, got %d", i, c.Index)
		}
	}
}

func TestTopicChunkMergesSmallSegments(t *testing.T) {
	text := "Short. " + strings.Repeat("A longer sentence about gardening and plants and soil. ", 6)
	topic := Topic{}
	chunks, err := topic.Chunk(text, strategy.ChunkConfig{MinChunkSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range chunks {
		if c.SentenceCount < 1 {
			t.Fatalf("expected merged segments to have at least one sentence")
		}
	}
}

func TestTopicChunkDegradedPathForLargeDocuments(t *testing.T) {
	big := strings.Repeat("This is a filler sentence used to pad the document size. ", 3000)
	if len(big) <= degradedSizeThreshold {
		t.Fatalf("test fixture must exceed degraded threshold, got %d bytes", len(big))
	}

	topic := Topic{}
	chunks, err := topic.Chunk(big, strategy.ChunkConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected degraded path to still produce chunks")
	}
}

func TestTopicChunkEmptyText(t *testing.T) {
	topic := Topic{}
	chunks, err := topic.Chunk("", strategy.ChunkConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text")
	}
}

func TestTopicChunkDeterministic(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta epsilon. Zeta eta theta iota kappa. ", 10)
	topic := Topic{}
	c1, _ := topic.Chunk(text, strategy.ChunkConfig{MinChunkSize: 1})
	c2, _ := topic.Chunk(text, strategy.ChunkConfig{MinChunkSize: 1})
	if len(c1) != len(c2) {
		t.Fatalf("expected deterministic chunk count, got %d vs %d", len(c1), len(c2))
	}
	for i := range c1 {
		if c1[i].Content != c2[i].Content {
			t.Fatalf("expected deterministic chunk content at index %d", i)
		}
	}
}
