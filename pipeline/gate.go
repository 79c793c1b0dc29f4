package pipeline

import (
	"bytes"
	"regexp"
)

// GateOptions configures the content gate's decision thresholds.
type GateOptions struct {
	Hi float64
	Lo float64
}

var (
	pdfMagic       = []byte("%PDF-")
	titleTagRE     = regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)
	paragraphTagRE = regexp.MustCompile(`(?is)<p[^>]*>`)
)

// Gate classifies a fetched document and scores its structural
// quality, deciding which extraction strategy family is eligible.
// PDFs short-circuit on the standard magic byte signature. Otherwise
// quality is a weighted sum of three structural signals: whether a
// <title> is present, paragraph density (tag count relative to
// document length), and a byte-length bucket rewarding documents long
// enough to plausibly hold real article content. Above gate_hi ->
// raw; below gate_lo -> headless; otherwise probes_first.
func Gate(fetched []byte, contentType string, opts GateOptions) (Decision, float64) {
	if bytes.HasPrefix(fetched, pdfMagic) || contentType == "application/pdf" {
		return DecisionRaw, 1.0
	}

	quality := qualityScore(fetched)

	switch {
	case quality >= opts.Hi:
		return DecisionRaw, quality
	case quality < opts.Lo:
		return DecisionHeadless, quality
	default:
		return DecisionProbesFirst, quality
	}
}

func qualityScore(body []byte) float64 {
	titlePresent := 0.0
	if titleTagRE.Match(body) {
		titlePresent = 1.0
	}

	paragraphDensity := densityScore(body)
	lengthBucket := lengthBucketScore(len(body))

	return 0.4*titlePresent + 0.4*paragraphDensity + 0.2*lengthBucket
}

// densityScore rewards documents with a healthy ratio of <p> tags to
// document size, capping at 1.0 so extremely long documents with many
// paragraphs don't score beyond the scale; the threshold (one
// paragraph per ~2KB) approximates typical article markup.
func densityScore(body []byte) float64 {
	if len(body) == 0 {
		return 0
	}
	count := len(paragraphTagRE.FindAll(body, -1))
	density := float64(count) / (float64(len(body)) / 2048.0)
	if density > 1.0 {
		density = 1.0
	}
	return density
}

// lengthBucketScore buckets raw byte length: very short documents are
// unlikely to be real articles, very long ones plausibly are.
func lengthBucketScore(n int) float64 {
	switch {
	case n < 500:
		return 0.0
	case n < 2000:
		return 0.4
	case n < 10000:
		return 0.8
	default:
		return 1.0
	}
}
