package chunk

import "github.com/riptide/core/strategy"

// Fixed implements a fixed-size chunker: every chunk is exactly
// config.Size tokens (or bytes, per config.ByTokens), except possibly
// the last.
type Fixed struct{}

func (Fixed) Name() string { return "fixed" }

func (Fixed) Chunk(text string, cfg strategy.ChunkConfig) ([]strategy.Chunk, error) {
	size := cfg.Size
	if size <= 0 {
		size = 200
	}

	if cfg.ByTokens {
		return chunkByTokens(text, size), nil
	}
	return chunkByBytes(text, size), nil
}

func chunkByTokens(text string, size int) []strategy.Chunk {
	tokens := tokenizeWithOffsets(text)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []strategy.Chunk
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		slice := tokens[start:end]
		content := joinTokens(text, slice)
		chunks = append(chunks, strategy.Chunk{
			Content:       content,
			Start:         slice[0].start,
			End:           slice[len(slice)-1].end,
			TokenCount:    len(slice),
			WordCount:     countWords(content),
			SentenceCount: countSentences(content),
			ChunkType:     "fixed",
		})
	}
	finalizeChunks(chunks)
	return chunks
}

func chunkByBytes(text string, size int) []strategy.Chunk {
	if len(text) == 0 {
		return nil
	}
	var chunks []strategy.Chunk
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		content := text[start:end]
		chunks = append(chunks, strategy.Chunk{
			Content:       content,
			Start:         start,
			End:           end,
			TokenCount:    len(tokenizeWithOffsets(content)),
			WordCount:     countWords(content),
			SentenceCount: countSentences(content),
			ChunkType:     "fixed",
		})
	}
	finalizeChunks(chunks)
	return chunks
}
