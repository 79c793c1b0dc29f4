package strategy

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/riptide/core/rerrors"
)

// CSSExtractor extracts named fields via CSS selectors, running each
// field's raw text through its declared transformer pipeline.
type CSSExtractor struct {
	name   string
	fields []FieldSpec
}

// NewCSSExtractor builds a CSSExtractor named name, extracting fields
// per the given specs.
func NewCSSExtractor(name string, fields []FieldSpec) *CSSExtractor {
	return &CSSExtractor{name: name, fields: fields}
}

func (e *CSSExtractor) Name() string {
	return e.name
}

// Extract parses html with goquery and resolves each configured field
// by selector, falling back to the field's Fallback selector if the
// primary selector yields nothing.
func (e *CSSExtractor) Extract(rawHTML []byte, url string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(rawHTML)))
	if err != nil {
		return Document{}, rerrors.New("strategy.CSSExtractor.Extract", rerrors.KindInvalidRequest, url, err)
	}

	out := Document{
		URL:          url,
		ContentType:  "text/html",
		ExtractedAt:  time.Now().UTC(),
		StrategyUsed: e.name,
		Fields:       make(map[string]any, len(e.fields)),
	}
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())

	for _, field := range e.fields {
		raw := firstNonEmptyText(doc, field.Selector)
		if raw == "" && field.Fallback != "" {
			raw = firstNonEmptyText(doc, field.Fallback)
		}
		if raw == "" {
			out.Fields[field.Name] = nil
			continue
		}
		val, err := ApplyTransformers(field.Transformers, raw, url)
		if err != nil {
			out.Fields[field.Name] = nil
			continue
		}
		out.Fields[field.Name] = val
	}

	out.Text = strings.TrimSpace(doc.Find("body").Text())
	return out, nil
}

func firstNonEmptyText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return strings.TrimSpace(sel.Text())
}
