package relay

import (
	"testing"
	"time"
)

func TestTokenBucketBurstThenRefill(t *testing.T) {
	tb := newTokenBucket(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !tb.allow() {
			t.Fatalf("allow() = false within burst (call %d)", i)
		}
	}
	if tb.allow() {
		t.Error("allow() = true after burst exhausted")
	}

	time.Sleep(60 * time.Millisecond)
	if !tb.allow() {
		t.Error("allow() = false after refill interval")
	}
}

func TestTokenBucketCapacityIsCapped(t *testing.T) {
	tb := newTokenBucket(2, 10*time.Millisecond)

	// Idle time must not accumulate more than the burst capacity.
	time.Sleep(100 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if tb.allow() {
			allowed++
		}
	}
	if allowed > 2 {
		t.Errorf("allowed %d calls after idle, want at most 2", allowed)
	}
}
