package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)

	rl.getLimiter("stale-client")
	rl.getLimiter("fresh-client")
	if len(rl.visitors) != 2 {
		t.Fatalf("expected 2 visitors, got %d", len(rl.visitors))
	}

	rl.visitors["stale-client"].lastSeen = time.Now().Add(-limiterMaxIdle - time.Second)
	rl.nextSweep = time.Now().Add(-time.Second)

	rl.getLimiter("fresh-client")

	if _, ok := rl.visitors["stale-client"]; ok {
		t.Fatalf("stale visitor should have been evicted")
	}
	if _, ok := rl.visitors["fresh-client"]; !ok {
		t.Fatalf("fresh visitor should have survived the sweep")
	}
}

func TestRateLimiterSweepKeepsBucketState(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	if !rl.getLimiter("client").Allow() {
		t.Fatalf("first request should pass")
	}

	// A sweep must not reset an active client's bucket.
	rl.nextSweep = time.Now().Add(-time.Second)
	if rl.getLimiter("client").Allow() {
		t.Fatalf("second immediate request should be limited")
	}
}
