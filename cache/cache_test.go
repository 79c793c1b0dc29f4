package cache

import (
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func newTestCache(t *testing.T, compress bool) *Cache {
	t.Helper()
	c := &Cache{
		prefix:              "riptide:cache",
		namespace:           "test",
		version:             "v1",
		ttl:                 time.Hour,
		compress:            compress,
		minBytes:            16,
		minRatio:            0.9,
		invalidationChannel: "riptide:cache:invalidate",
	}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.encoder = enc
		c.decoder = dec
	}
	return c
}

func TestNamespacedKeyIsStableAndHashed(t *testing.T) {
	c := newTestCache(t, false)
	k1 := c.namespacedKey("https://example.com/a")
	k2 := c.namespacedKey("https://example.com/a")
	k3 := c.namespacedKey("https://example.com/b")

	if k1 != k2 {
		t.Fatalf("expected stable key derivation, got %q vs %q", k1, k2)
	}
	if k1 == k3 {
		t.Fatalf("expected distinct keys for distinct inputs")
	}
	if k1[:len("riptide:cache:test:v1:")] != "riptide:cache:test:v1:" {
		t.Fatalf("expected prefix:namespace:version stem, got %q", k1)
	}
}

func TestEncodeDecodeRoundTripUncompressed(t *testing.T) {
	c := newTestCache(t, false)
	entry := Entry{Value: []byte("hello world"), ContentType: "text/plain"}

	wire, err := c.encode(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.decode(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Value) != "hello world" || got.ContentType != "text/plain" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEncodeDecodeRoundTripCompressed(t *testing.T) {
	c := newTestCache(t, true)
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	entry := Entry{Value: big, ContentType: "text/html"}

	wire, err := c.encode(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.decode(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Value) != string(big) {
		t.Fatalf("round trip mismatch after compression")
	}
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	c := newTestCache(t, false)
	entry := Entry{Value: []byte("trustworthy"), ContentType: "text/plain"}
	wire, err := c.encode(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tampered := append([]byte{}, wire...)
	for i := range tampered {
		if tampered[i] != '{' && tampered[i] != '"' {
			tampered[i] ^= 0xFF
			break
		}
	}

	if _, err := c.decode(tampered); err == nil {
		t.Fatalf("expected integrity failure for tampered payload")
	}
}

func TestStemPatternWithoutNamespace(t *testing.T) {
	c := newTestCache(t, false)
	c.namespace = ""
	if got := c.stemPattern(); got != "riptide:cache:v1:*" {
		t.Fatalf("unexpected stem pattern: %q", got)
	}
}
