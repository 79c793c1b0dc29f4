package strategy

import "testing"

func TestNativeExtractorStructuralHeuristics(t *testing.T) {
	e := NewNativeExtractor("native")
	doc, err := e.Extract([]byte(sampleHTML), "https://example.com/article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title == "" {
		t.Fatalf("expected a title to be found")
	}
	if doc.Text == "" {
		t.Fatalf("expected paragraph text to be collected")
	}
	if doc.Metadata["paragraph_count"] != "2" {
		t.Fatalf("expected 2 paragraphs counted, got %v", doc.Metadata)
	}
}

func TestNativeExtractorSkipsScriptContent(t *testing.T) {
	html := `<html><body><script>var x = "<p>fake</p>";</script><p>real paragraph</p></body></html>`
	e := NewNativeExtractor("native")
	doc, err := e.Extract([]byte(html), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "real paragraph" {
		t.Fatalf("expected only real paragraph text, got %q", doc.Text)
	}
}
