package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d inside the burst was denied", i)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("request past the burst was allowed")
	}

	// One token refills per second at 60/min
	time.Sleep(time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("request after refill was denied")
	}
}

func TestLimiter_KeysAreIsolated(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("10.0.0.1")
	}

	if limiter.Allow("10.0.0.1") {
		t.Fatal("exhausted client was allowed")
	}
	// A greedy scraper must not starve the probe
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("fresh client was denied")
	}
}

func TestLimiter_Refill(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 600, // 10 per second
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("bucket of one allowed a second immediate request")
	}

	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("request after a token's worth of waiting was denied")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RequestsPerMinute != 120 {
		t.Errorf("RequestsPerMinute = %d, want 120", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("BurstSize = %d, want 20", cfg.BurstSize)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Errorf("CleanupInterval = %v, want 1m", cfg.CleanupInterval)
	}
}
