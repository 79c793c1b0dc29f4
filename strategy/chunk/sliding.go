// Package chunk implements RipTide's text chunkers: sliding window,
// fixed size, and topic (TextTiling), each registered into the
// strategy.Registry under its name. All chunkers are deterministic
// given the same input and config.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/riptide/core/strategy"
)

// Sliding implements a sliding-window chunker: each window holds at
// most config.TokenMax tokens, consecutive windows overlap by at most
// config.Overlap tokens. When config.PreserveSentences is true, a
// window is cut back to the last sentence end inside it; a window with
// no sentence end is still cut at config.TokenMax, mid-sentence.
type Sliding struct{}

func (Sliding) Name() string { return "sliding" }

func (Sliding) Chunk(text string, cfg strategy.ChunkConfig) ([]strategy.Chunk, error) {
	max := cfg.TokenMax
	if max <= 0 {
		max = 200
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= max {
		overlap = 0
	}

	tokens := tokenizeWithOffsets(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	var chunks []strategy.Chunk
	start := 0
	for start < len(tokens) {
		end := start + max
		if end > len(tokens) {
			end = len(tokens)
		}
		if cfg.PreserveSentences {
			end = snapToSentenceBoundary(tokens, start, end)
		}

		chunkTokens := tokens[start:end]
		content := joinTokens(text, chunkTokens)
		chunks = append(chunks, strategy.Chunk{
			Content:       content,
			Start:         chunkTokens[0].start,
			End:           chunkTokens[len(chunkTokens)-1].end,
			TokenCount:    len(chunkTokens),
			WordCount:     countWords(content),
			SentenceCount: countSentences(content),
			ChunkType:     "sliding",
		})

		if end >= len(tokens) {
			break
		}
		start = end - overlap
		if start <= chunks[len(chunks)-1].Start && overlap > 0 {
			start = end
		}
	}

	finalizeChunks(chunks)
	return chunks, nil
}

func snapToSentenceBoundary(tokens []token, start, end int) int {
	for i := end; i > start; i-- {
		if i == len(tokens) {
			return i
		}
		if isSentenceEnd(tokens[i-1].text) {
			return i
		}
	}
	return end
}

func isSentenceEnd(tok string) bool {
	if tok == "" {
		return false
	}
	last := tok[len(tok)-1]
	return last == '.' || last == '!' || last == '?'
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func countSentences(s string) int {
	n := 0
	for _, r := range s {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	if n == 0 && strings.TrimSpace(s) != "" {
		return 1
	}
	return n
}

func finalizeChunks(chunks []strategy.Chunk) {
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TotalChunks = len(chunks)
		chunks[i].HasCompleteSent = countSentences(chunks[i].Content) > 0
		chunks[i].ID = chunkID(chunks[i].Content, i)
	}
}

func chunkID(content string, index int) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16] + ":" + strconv.Itoa(index)
}

type token struct {
	text       string
	start, end int
}

// tokenizeWithOffsets splits text on whitespace, recording each
// token's byte offsets so chunk boundaries can be reported as
// [start, end) into the original text.
func tokenizeWithOffsets(text string) []token {
	var tokens []token
	inToken := false
	tokenStart := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inToken {
				tokens = append(tokens, token{text: text[tokenStart:i], start: tokenStart, end: i})
				inToken = false
			}
			continue
		}
		if !inToken {
			tokenStart = i
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, token{text: text[tokenStart:], start: tokenStart, end: len(text)})
	}
	return tokens
}

func joinTokens(text string, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return text[toks[0].start:toks[len(toks)-1].end]
}
