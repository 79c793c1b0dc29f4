package strategy

import "testing"

func TestApplyTransformersChain(t *testing.T) {
	v, err := ApplyTransformers([]string{"trim", "normalize_ws", "lowercase"}, "  Hello   World  ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello world" {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestApplyTransformersURLAbs(t *testing.T) {
	v, err := ApplyTransformers([]string{"trim", "url_abs"}, "/a/b?c=1", "https://example.com/x/y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "https://example.com/a/b?c=1" {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestApplyTransformersDateISO(t *testing.T) {
	v, err := ApplyTransformers([]string{"date_iso"}, "January 2, 2024", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "2024-01-02" {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestApplyTransformersFailureYieldsNil(t *testing.T) {
	v, err := ApplyTransformers([]string{"number"}, "no digits here", "")
	if err != nil {
		t.Fatalf("transformer failure should not bubble as error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil for failed transform, got %v", v)
	}
}

func TestApplyBoundRegexExtract(t *testing.T) {
	v, err := ApplyBoundRegexExtract(`sku-(\d+)`, "product sku-4821 in stock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "4821" {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestJSONParseProducesStructuredValue(t *testing.T) {
	v, err := ApplyTransformers([]string{"json_parse"}, `{"a":1,"b":"x"}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", v)
	}
	if m["b"] != "x" {
		t.Fatalf("unexpected parsed value: %v", m)
	}
}

func TestHTMLDecode(t *testing.T) {
	v, err := ApplyTransformers([]string{"html_decode"}, "Tom &amp; Jerry", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "Tom & Jerry" {
		t.Fatalf("unexpected result: %v", v)
	}
}
