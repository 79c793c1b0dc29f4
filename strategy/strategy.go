// Package strategy implements RipTide's pluggable extraction
// strategies: a name-keyed registry of extractors resolved at
// pipeline dispatch time, generalizing the teacher's self-registering
// transport/registry pattern (core/redis_registry.go's register/lookup
// shape) onto content extraction instead of service discovery.
package strategy

import (
	"time"
)

// Document is the structured result of an extraction.
type Document struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Text         string            `json:"text"`
	Fields       map[string]any    `json:"fields,omitempty"`
	ContentType  string            `json:"content_type"`
	ExtractedAt  time.Time         `json:"extracted_at"`
	StrategyUsed string            `json:"strategy_used"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Extractor turns raw HTML (or other declared content type) plus its
// source URL into a Document.
type Extractor interface {
	Name() string
	Extract(html []byte, url string) (Document, error)
}

// Chunk is a contiguous, ordered sub-sequence of a document's text.
type Chunk struct {
	ID              string            `json:"id"`
	Content         string            `json:"content"`
	Start           int               `json:"start"`
	End             int               `json:"end"`
	TokenCount      int               `json:"token_count"`
	Index           int               `json:"index"`
	TotalChunks     int               `json:"total_chunks"`
	SentenceCount   int               `json:"sentence_count"`
	WordCount       int               `json:"word_count"`
	HasCompleteSent bool              `json:"has_complete_sentences"`
	TopicKeywords   []string          `json:"topic_keywords,omitempty"`
	ChunkType       string            `json:"chunk_type"`
	Quality         float64           `json:"quality"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ChunkConfig bounds a chunker's output.
type ChunkConfig struct {
	TokenMax          int
	Overlap           int
	PreserveSentences bool
	Size              int
	ByTokens          bool
	MinChunkSize      int
}

// Chunker splits text into ordered Chunks according to config.
// Implementations must be deterministic given the same input and
// config.
type Chunker interface {
	Name() string
	Chunk(text string, config ChunkConfig) ([]Chunk, error)
}

// FieldSpec binds an extracted field's CSS selector (used by
// CSSExtractor) to the transformer pipeline applied to its raw value,
// and an optional fallback selector tried when the primary produces
// nothing.
type FieldSpec struct {
	Name         string
	Selector     string
	Transformers []string
	Fallback     string
}
