package redisx

import (
	"testing"

	"github.com/riptide/core/rerrors"
)

func TestNewRejectsEmptyURL(t *testing.T) {
	_, err := New(Options{})
	if !rerrors.Is(err, rerrors.KindInvalidRequest) {
		t.Fatalf("expected invalid request error, got %v", err)
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	_, err := New(Options{URL: "redis://127.0.0.1:1"})
	if err == nil {
		t.Fatalf("expected connection error for unreachable redis")
	}
	if !rerrors.Is(err, rerrors.KindTransport) {
		t.Fatalf("expected transport kind, got %v", rerrors.KindOf(err))
	}
}

func TestKeyNamespacing(t *testing.T) {
	c := &Client{namespace: "riptide:cache"}
	if got := c.key("abc123"); got != "riptide:cache:abc123" {
		t.Fatalf("unexpected namespaced key: %q", got)
	}

	bare := &Client{}
	if got := bare.key("abc123"); got != "abc123" {
		t.Fatalf("expected bare key unchanged, got %q", got)
	}
}
