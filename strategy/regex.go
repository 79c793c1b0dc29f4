package strategy

import (
	"regexp"
	"time"

	"github.com/riptide/core/rerrors"
)

// RegexPattern binds a named capture pattern to a field, applying
// transformers to the first capture group.
type RegexPattern struct {
	FieldName    string
	Pattern      *regexp.Regexp
	Transformers []string
}

// RegexExtractor extracts named fields by matching compiled patterns
// against the raw document bytes.
type RegexExtractor struct {
	name     string
	patterns []RegexPattern
}

// NewRegexExtractor builds a RegexExtractor named name with the given
// field patterns.
func NewRegexExtractor(name string, patterns []RegexPattern) *RegexExtractor {
	return &RegexExtractor{name: name, patterns: patterns}
}

func (e *RegexExtractor) Name() string {
	return e.name
}

func (e *RegexExtractor) Extract(rawHTML []byte, url string) (Document, error) {
	if len(e.patterns) == 0 {
		return Document{}, rerrors.New("strategy.RegexExtractor.Extract", rerrors.KindInvalidRequest, url, nil)
	}

	out := Document{
		URL:          url,
		ContentType:  "text/plain",
		ExtractedAt:  time.Now().UTC(),
		StrategyUsed: e.name,
		Fields:       make(map[string]any, len(e.patterns)),
	}

	text := string(rawHTML)
	for _, p := range e.patterns {
		m := p.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			out.Fields[p.FieldName] = nil
			continue
		}
		val, err := ApplyTransformers(p.Transformers, m[1], url)
		if err != nil {
			out.Fields[p.FieldName] = nil
			continue
		}
		out.Fields[p.FieldName] = val
	}
	return out, nil
}
