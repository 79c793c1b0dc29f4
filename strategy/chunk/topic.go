package chunk

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/riptide/core/strategy"
)

// degradedSizeThreshold is the document size above which Topic falls
// back to a cheap sentence-terminator split instead of running full
// TextTiling, keeping large documents within the package's latency
// envelope.
const degradedSizeThreshold = 100 * 1024

// degradedMaxSentences caps the fast path's sentence count so a
// pathological document (a single 10MB sentence-free blob) can't
// blow up the degraded path either.
const degradedMaxSentences = 500

// windowSize is the number of pseudo-sentences compared on each side
// of a candidate boundary.
const windowSize = 2

// smoothingPasses is the number of 3-point moving-average passes
// applied to the raw depth scores before peak detection.
const smoothingPasses = 2

var sentenceSplitRE = regexp.MustCompile(`(?s)[^.!?]*[.!?]+|[^.!?]+$`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"by": {}, "from": {}, "than": {}, "then": {}, "so": {}, "if": {}, "into": {}, "about": {},
}

// Topic implements a TextTiling-style topic chunker: pseudo-sentences
// are grouped into candidate segments by detecting vocabulary shifts
// between sliding windows, with small resulting segments merged into
// their successor.
type Topic struct{}

func (Topic) Name() string { return "topic" }

func (Topic) Chunk(text string, cfg strategy.ChunkConfig) ([]strategy.Chunk, error) {
	if len(text) > degradedSizeThreshold {
		return degradedChunk(text, cfg), nil
	}

	sentences := pseudoSentences(text)
	if len(sentences) <= 1 {
		return wholeTextChunk(text, cfg), nil
	}

	vocabs := make([]map[string]int, len(sentences))
	for i, s := range sentences {
		vocabs[i] = vocabOf(s.text)
	}

	depths := computeDepths(vocabs)
	smoothed := smooth(depths, smoothingPasses)
	boundaries := peaksAboveThreshold(smoothed)

	segments := segmentsFromBoundaries(sentences, boundaries)
	segments = mergeSmallSegments(segments, minChunkSize(cfg))

	return toChunks(text, segments), nil
}

type pseudoSentence struct {
	text       string
	start, end int
}

// pseudoSentences splits text on sentence-terminating punctuation; a
// run of words with no terminator for 20 tokens is also cut, so
// unpunctuated text (code blocks, lists) still tiles.
func pseudoSentences(text string) []pseudoSentence {
	var out []pseudoSentence
	matches := sentenceSplitRE.FindAllStringIndex(text, -1)
	for _, m := range matches {
		seg := text[m[0]:m[1]]
		if strings.TrimSpace(seg) == "" {
			continue
		}
		out = append(out, splitLongRun(seg, m[0])...)
	}
	return out
}

func splitLongRun(seg string, offset int) []pseudoSentence {
	words := strings.Fields(seg)
	if len(words) <= 20 {
		return []pseudoSentence{{text: seg, start: offset, end: offset + len(seg)}}
	}
	var out []pseudoSentence
	pos := offset
	for i := 0; i < len(words); i += 20 {
		end := i + 20
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		out = append(out, pseudoSentence{text: chunk, start: pos, end: pos + len(chunk)})
		pos += len(chunk) + 1
	}
	return out
}

func vocabOf(s string) map[string]int {
	v := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w == "" {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		v[w]++
	}
	return v
}

// computeDepths returns, for every candidate boundary i (between
// sentence i-1 and i), a depth score = 1 - cosine similarity between
// the windowSize-sentence vocabulary left of i and right of i.
func computeDepths(vocabs []map[string]int) []float64 {
	n := len(vocabs)
	depths := make([]float64, n-1)
	for i := 1; i < n; i++ {
		leftStart := i - windowSize
		if leftStart < 0 {
			leftStart = 0
		}
		rightEnd := i + windowSize
		if rightEnd > n {
			rightEnd = n
		}
		left := mergeVocabs(vocabs[leftStart:i])
		right := mergeVocabs(vocabs[i:rightEnd])
		sim := cosineSimilarity(left, right)
		depths[i-1] = 1 - sim
	}
	return depths
}

func mergeVocabs(vs []map[string]int) map[string]int {
	out := make(map[string]int)
	for _, v := range vs {
		for k, c := range v {
			out[k] += c
		}
	}
	return out
}

func cosineSimilarity(a, b map[string]int) float64 {
	var dot, normA, normB float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += float64(va) * float64(vb)
		}
		normA += float64(va) * float64(va)
	}
	for _, vb := range b {
		normB += float64(vb) * float64(vb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// smooth applies passes rounds of 3-point moving average to damp
// local noise before peak detection.
func smooth(scores []float64, passes int) []float64 {
	out := append([]float64{}, scores...)
	for p := 0; p < passes; p++ {
		next := make([]float64, len(out))
		for i := range out {
			switch {
			case len(out) == 1:
				next[i] = out[i]
			case i == 0:
				next[i] = (out[i] + out[i+1]) / 2
			case i == len(out)-1:
				next[i] = (out[i-1] + out[i]) / 2
			default:
				next[i] = (out[i-1] + out[i] + out[i+1]) / 3
			}
		}
		out = next
	}
	return out
}

// peaksAboveThreshold returns indices i such that scores[i] is a
// local maximum exceeding the adaptive threshold mean + 0.3*stddev,
// falling back to the 67th-percentile value when stddev is too small
// to discriminate peaks (near-uniform depth scores).
func peaksAboveThreshold(scores []float64) []int {
	if len(scores) == 0 {
		return nil
	}
	mean, std := meanStd(scores)
	threshold := mean + 0.3*std
	if std < 0.05 {
		threshold = percentile(scores, 0.67)
	}

	var peaks []int
	for i, s := range scores {
		if s < threshold {
			continue
		}
		leftOK := i == 0 || scores[i-1] <= s
		rightOK := i == len(scores)-1 || scores[i+1] <= s
		if leftOK && rightOK {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(xs)))
	return
}

func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

type segment struct {
	sentences []pseudoSentence
}

func segmentsFromBoundaries(sentences []pseudoSentence, boundaries []int) []segment {
	boundarySet := make(map[int]struct{}, len(boundaries))
	for _, b := range boundaries {
		boundarySet[b+1] = struct{}{} // depth index i-1 -> boundary before sentence i
	}

	var segments []segment
	start := 0
	for i := 1; i <= len(sentences); i++ {
		if i == len(sentences) {
			segments = append(segments, segment{sentences: sentences[start:i]})
			break
		}
		if _, isBoundary := boundarySet[i]; isBoundary {
			segments = append(segments, segment{sentences: sentences[start:i]})
			start = i
		}
	}
	return segments
}

func minChunkSize(cfg strategy.ChunkConfig) int {
	if cfg.MinChunkSize > 0 {
		return cfg.MinChunkSize
	}
	return 1
}

func mergeSmallSegments(segments []segment, minSentences int) []segment {
	var out []segment
	for _, seg := range segments {
		if len(out) > 0 && len(out[len(out)-1].sentences) < minSentences {
			out[len(out)-1].sentences = append(out[len(out)-1].sentences, seg.sentences...)
			continue
		}
		out = append(out, seg)
	}
	// A trailing undersized segment has no successor to merge into
	// forward; fold it backward instead.
	if len(out) > 1 && len(out[len(out)-1].sentences) < minSentences {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		out[len(out)-1].sentences = append(out[len(out)-1].sentences, last.sentences...)
	}
	return out
}

func toChunks(text string, segments []segment) []strategy.Chunk {
	chunks := make([]strategy.Chunk, 0, len(segments))
	for _, seg := range segments {
		if len(seg.sentences) == 0 {
			continue
		}
		start := seg.sentences[0].start
		end := seg.sentences[len(seg.sentences)-1].end
		content := text[start:end]
		chunks = append(chunks, strategy.Chunk{
			Content:       content,
			Start:         start,
			End:           end,
			TokenCount:    len(tokenizeWithOffsets(content)),
			WordCount:     countWords(content),
			SentenceCount: len(seg.sentences),
			ChunkType:     "topic",
			TopicKeywords: topKeywords(seg.sentences, 5),
		})
	}
	finalizeChunks(chunks)
	return chunks
}

func topKeywords(sentences []pseudoSentence, n int) []string {
	vocab := make(map[string]int)
	for _, s := range sentences {
		for k, c := range vocabOf(s.text) {
			vocab[k] += c
		}
	}
	type kv struct {
		k string
		c int
	}
	kvs := make([]kv, 0, len(vocab))
	for k, c := range vocab {
		kvs = append(kvs, kv{k, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].c != kvs[j].c {
			return kvs[i].c > kvs[j].c
		}
		return kvs[i].k < kvs[j].k
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, e := range kvs {
		out[i] = e.k
	}
	return out
}

func wholeTextChunk(text string, cfg strategy.ChunkConfig) []strategy.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	c := strategy.Chunk{
		Content:       text,
		Start:         0,
		End:           len(text),
		TokenCount:    len(tokenizeWithOffsets(text)),
		WordCount:     countWords(text),
		SentenceCount: countSentences(text),
		ChunkType:     "topic",
	}
	chunks := []strategy.Chunk{c}
	finalizeChunks(chunks)
	return chunks
}

// degradedChunk implements the >100KB fast path: split on sentence
// terminators only, no vocabulary similarity, capped at
// degradedMaxSentences sentences per document.
func degradedChunk(text string, cfg strategy.ChunkConfig) []strategy.Chunk {
	sentences := pseudoSentences(text)
	if len(sentences) > degradedMaxSentences {
		sentences = sentences[:degradedMaxSentences]
	}

	groupSize := minChunkSize(cfg)
	if groupSize < 3 {
		groupSize = 3
	}

	var segments []segment
	for i := 0; i < len(sentences); i += groupSize {
		end := i + groupSize
		if end > len(sentences) {
			end = len(sentences)
		}
		segments = append(segments, segment{sentences: sentences[i:end]})
	}
	return toChunks(text, segments)
}
