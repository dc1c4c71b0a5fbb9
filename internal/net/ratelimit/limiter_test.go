package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(2.0, 2) // 2 RPS, burst of 2

	// Should allow first 2 requests immediately (burst)
	if !limiter.Allow("api.binance.com") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("api.binance.com") {
		t.Error("Second request should be allowed")
	}

	if limiter.Allow("api.binance.com") {
		t.Error("Third request should be blocked")
	}
}

func TestLimiter_MultipleHosts(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	// Each host should have independent rate limiting
	if !limiter.Allow("host1.com") {
		t.Error("First request to host1 should be allowed")
	}
	if !limiter.Allow("host2.com") {
		t.Error("First request to host2 should be allowed")
	}

	if limiter.Allow("host1.com") {
		t.Error("Second request to host1 should be blocked")
	}
	if limiter.Allow("host2.com") {
		t.Error("Second request to host2 should be blocked")
	}
}

func TestSpacing_Wait(t *testing.T) {
	limiter := NewSpacing(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx, "api.binance.com"); err != nil {
		t.Fatalf("Wait should not error on first request: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("First request should be immediate, took %v", elapsed)
	}

	start = time.Now()
	if err := limiter.Wait(ctx, "api.binance.com"); err != nil {
		t.Fatalf("Wait should not error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Second request should wait ~100ms, took %v", elapsed)
	}

	if got := limiter.Interval(); got != 100*time.Millisecond {
		t.Errorf("Interval should be 100ms, got %v", got)
	}
}

func TestSpacing_Disabled(t *testing.T) {
	limiter := NewSpacing(0)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("api.binance.com") {
			t.Fatalf("request %d should be allowed when spacing is disabled", i)
		}
	}
	if limiter.Interval() != 0 {
		t.Errorf("Interval should be zero when disabled, got %v", limiter.Interval())
	}
}

func TestLimiter_WaitTimeout(t *testing.T) {
	limiter := NewLimiter(0.1, 1) // 10 second spacing

	limiter.Allow("api.binance.com")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx, "api.binance.com")
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Wait should timeout with short context")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("Wait should timeout quickly, took %v", elapsed)
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewLimiter(100.0, 10)
	host := "concurrent-test.com"

	const numGoroutines = 50
	const requestsPerGoroutine = 5

	var allowed, blocked int64
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < requestsPerGoroutine; j++ {
				if limiter.Allow(host) {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&blocked, 1)
				}
			}
		}()
	}

	wg.Wait()

	if total := allowed + blocked; total != numGoroutines*requestsPerGoroutine {
		t.Errorf("Total requests %d != expected %d", total, numGoroutines*requestsPerGoroutine)
	}
	if allowed < 10 {
		t.Errorf("Should allow at least burst amount, allowed %d", allowed)
	}
	if blocked == 0 {
		t.Errorf("Should block some requests with this load, blocked %d", blocked)
	}
}
