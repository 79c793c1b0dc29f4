package strategy

import (
	"regexp"
	"testing"
)

func TestRegexExtractorBindsFieldsToPatterns(t *testing.T) {
	e := NewRegexExtractor("regex-product", []RegexPattern{
		{FieldName: "sku", Pattern: regexp.MustCompile(`sku-(\d+)`), Transformers: []string{"trim"}},
		{FieldName: "price", Pattern: regexp.MustCompile(`\$([\d.]+)`), Transformers: []string{"number"}},
	})

	doc, err := e.Extract([]byte("product sku-4821 priced at $19.99 today"), "https://example.com/p/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Fields["sku"] != "4821" {
		t.Fatalf("unexpected sku: %v", doc.Fields["sku"])
	}
	if doc.Fields["price"] != 19.99 {
		t.Fatalf("unexpected price: %v", doc.Fields["price"])
	}
}

func TestRegexExtractorNoMatchYieldsNilField(t *testing.T) {
	e := NewRegexExtractor("regex-product", []RegexPattern{
		{FieldName: "sku", Pattern: regexp.MustCompile(`sku-(\d+)`)},
	})
	doc, err := e.Extract([]byte("nothing relevant here"), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Fields["sku"] != nil {
		t.Fatalf("expected nil field, got %v", doc.Fields["sku"])
	}
}
