package strategy

import "testing"

const sampleHTML = `<html><head><title> Sample Title </title></head>
<body>
<h1 class="headline">Breaking News</h1>
<span class="price">$1,234.56 USD</span>
<a class="more" href="/more">more</a>
<p>First paragraph of the article.</p>
<p>Second paragraph with more detail.</p>
</body></html>`

func TestCSSExtractorResolvesFieldsAndTransforms(t *testing.T) {
	e := NewCSSExtractor("css-article", []FieldSpec{
		{Name: "headline", Selector: "h1.headline", Transformers: []string{"trim", "normalize_ws"}},
		{Name: "price", Selector: "span.price", Transformers: []string{"currency"}},
		{Name: "missing", Selector: ".does-not-exist", Fallback: ".also-missing"},
	})

	doc, err := e.Extract([]byte(sampleHTML), "https://example.com/article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Sample Title" {
		t.Fatalf("expected trimmed title, got %q", doc.Title)
	}
	if doc.Fields["headline"] != "Breaking News" {
		t.Fatalf("unexpected headline: %v", doc.Fields["headline"])
	}
	if doc.Fields["price"] != 1234.56 {
		t.Fatalf("unexpected price: %v", doc.Fields["price"])
	}
	if doc.Fields["missing"] != nil {
		t.Fatalf("expected nil for unmatched field, got %v", doc.Fields["missing"])
	}
	if doc.StrategyUsed != "css-article" {
		t.Fatalf("expected strategy tag, got %q", doc.StrategyUsed)
	}
}

func TestCSSExtractorFallbackSelector(t *testing.T) {
	html := `<html><body><div class="alt-price">$9.99</div></body></html>`
	e := NewCSSExtractor("css-fallback", []FieldSpec{
		{Name: "price", Selector: ".primary-price", Fallback: ".alt-price", Transformers: []string{"currency"}},
	})
	doc, err := e.Extract([]byte(html), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Fields["price"] != 9.99 {
		t.Fatalf("expected fallback selector match, got %v", doc.Fields["price"])
	}
}
