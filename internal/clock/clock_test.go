package clock

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []int
	expires []int
}

func (r *recorder) onTick(_, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) onExpire(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires = append(r.expires, round)
}

func (r *recorder) snapshot() ([]int, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...), append([]int(nil), r.expires...)
}

func TestCountdownTicksDownAndExpiresOnce(t *testing.T) {
	rec := &recorder{}
	c := New(50*time.Millisecond, 10*time.Millisecond, rec.onTick, rec.onExpire)

	c.Start(context.Background(), 1)
	time.Sleep(200 * time.Millisecond)

	ticks, expires := rec.snapshot()
	if len(expires) != 1 || expires[0] != 1 {
		t.Fatalf("expected exactly one expiry for round 1, got %v", expires)
	}
	if len(ticks) == 0 || ticks[len(ticks)-1] != 0 {
		t.Fatalf("expected countdown to reach 0, got %v", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] >= ticks[i-1] {
			t.Fatalf("expected strictly decreasing ticks, got %v", ticks)
		}
	}
}

func TestStopCancelsCountdown(t *testing.T) {
	rec := &recorder{}
	c := New(50*time.Millisecond, 10*time.Millisecond, rec.onTick, rec.onExpire)

	c.Start(context.Background(), 1)
	c.Stop()
	time.Sleep(150 * time.Millisecond)

	_, expires := rec.snapshot()
	if len(expires) != 0 {
		t.Fatalf("expected no expiry after Stop, got %v", expires)
	}
}

func TestStartingNextRoundCancelsStaleCountdown(t *testing.T) {
	rec := &recorder{}
	c := New(50*time.Millisecond, 10*time.Millisecond, rec.onTick, rec.onExpire)

	c.Start(context.Background(), 1)
	c.Start(context.Background(), 2)
	time.Sleep(200 * time.Millisecond)

	_, expires := rec.snapshot()
	if len(expires) != 1 || expires[0] != 2 {
		t.Fatalf("expected only round 2 to expire, got %v", expires)
	}
}

func TestContextCancellationStopsClock(t *testing.T) {
	rec := &recorder{}
	c := New(50*time.Millisecond, 10*time.Millisecond, rec.onTick, rec.onExpire)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, 1)
	cancel()
	time.Sleep(150 * time.Millisecond)

	_, expires := rec.snapshot()
	if len(expires) != 0 {
		t.Fatalf("expected no expiry after context cancel, got %v", expires)
	}
}
