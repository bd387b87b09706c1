package tts

import (
	"context"
	"testing"
	"time"
)

func TestCacheReuse(t *testing.T) {
	m := NewMock()
	cache := NewCache(m)

	ctx := context.Background()
	req := Request{Text: "welcome to the restaurant", Voice: "hi-IN-KavyaNeural", Language: "hi-IN"}

	first, err := cache.Synthesize(ctx, req)
	if err != nil {
		t.Fatalf("first synthesis failed: %v", err)
	}
	second, err := cache.Synthesize(ctx, req)
	if err != nil {
		t.Fatalf("cached synthesis failed: %v", err)
	}

	if m.CallCount("Synthesize") != 1 {
		t.Errorf("expected 1 provider call, got %d", m.CallCount("Synthesize"))
	}
	if first.Duration != second.Duration || len(first.Audio) != len(second.Audio) {
		t.Error("cached result differs from original")
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}
}

func TestCacheKeyDiscriminates(t *testing.T) {
	m := NewMock()
	cache := NewCache(m)
	ctx := context.Background()

	requests := []Request{
		{Text: "hello", Voice: "hi-IN-KavyaNeural", Language: "hi-IN"},
		{Text: "hello", Voice: "en-IN-NeerjaNeural", Language: "hi-IN"},
		{Text: "hello", Voice: "hi-IN-KavyaNeural", Language: "en-IN"},
		{Text: "goodbye", Voice: "hi-IN-KavyaNeural", Language: "hi-IN"},
	}
	for _, req := range requests {
		if _, err := cache.Synthesize(ctx, req); err != nil {
			t.Fatalf("synthesis failed: %v", err)
		}
	}

	if m.CallCount("Synthesize") != len(requests) {
		t.Errorf("expected %d provider calls, got %d", len(requests), m.CallCount("Synthesize"))
	}
	if cache.Len() != len(requests) {
		t.Errorf("expected %d cache entries, got %d", len(requests), cache.Len())
	}
}

func TestCacheSkipsErrors(t *testing.T) {
	// A failed synthesis must not poison the cache.
	failing := true
	m := NewMock()
	m.SynthesizeFunc = func(ctx context.Context, req Request) (*AudioResult, error) {
		if failing {
			return nil, WrapError("mock", ErrProviderUnavailable)
		}
		return &AudioResult{Audio: []byte{1}, Duration: time.Millisecond}, nil
	}
	cache := NewCache(m)
	ctx := context.Background()
	req := Request{Text: "retry me"}

	if _, err := cache.Synthesize(ctx, req); err == nil {
		t.Fatal("expected error from failing provider")
	}
	failing = false
	if _, err := cache.Synthesize(ctx, req); err != nil {
		t.Fatalf("expected recovery after provider healed, got %v", err)
	}
	if m.CallCount("Synthesize") != 2 {
		t.Errorf("expected 2 provider calls, got %d", m.CallCount("Synthesize"))
	}
}
