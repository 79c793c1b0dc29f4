package chunk

import (
	"testing"

	"github.com/riptide/core/strategy"
)

func TestFixedChunkByTokensExactSizeExceptLast(t *testing.T) {
	f := Fixed{}
	chunks, err := f.Chunk(words(25), strategy.ChunkConfig{Size: 10, ByTokens: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i := 0; i < len(chunks)-1; i++ {
		if chunks[i].TokenCount != 10 {
			t.Fatalf("expected chunk %d to have 10 tokens, got %d", i, chunks[i].TokenCount)
		}
	}
	last := chunks[len(chunks)-1]
	if last.TokenCount != 5 {
		t.Fatalf("expected last chunk to have 5 tokens, got %d", last.TokenCount)
	}
}

func TestFixedChunkByBytes(t *testing.T) {
	f := Fixed{}
	text := "0123456789abcdefghij"
	chunks, err := f.Chunk(text, strategy.ChunkConfig{Size: 8, ByTokens: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 byte chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "01234567" {
		t.Fatalf("unexpected first chunk: %q", chunks[0].Content)
	}
	if chunks[len(chunks)-1].Content != "ghij" {
		t.Fatalf("unexpected last chunk: %q", chunks[len(chunks)-1].Content)
	}
}
