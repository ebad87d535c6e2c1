package security

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int) (*EventLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewEventLimiter(EventLimiterConfig{Window: time.Second, MaxEvents: max, Block: 30 * time.Second}).
		WithNowFunc(clock.now)
	return l, clock
}

func TestEventLimiterBlocksAfterMax(t *testing.T) {
	l, _ := newTestLimiter(15)

	for i := 0; i < 15; i++ {
		if !l.IsAllowed("7") {
			t.Fatalf("event %d should be allowed", i+1)
		}
	}
	if l.IsAllowed("7") {
		t.Fatal("16th event in the window should be rejected")
	}
	if got := l.BlockedSecondsRemaining("7"); got != 30 {
		t.Fatalf("expected 30 seconds remaining got %d", got)
	}
	if !l.IsAllowed("8") {
		t.Fatal("other identities must not be affected")
	}
}

func TestEventLimiterBlockOutlivesWindow(t *testing.T) {
	l, clock := newTestLimiter(2)

	l.IsAllowed("1")
	l.IsAllowed("1")
	if l.IsAllowed("1") {
		t.Fatal("expected block")
	}

	clock.advance(5 * time.Second)
	if l.IsAllowed("1") {
		t.Fatal("still blocked after the window resets")
	}
	if got := l.BlockedSecondsRemaining("1"); got != 25 {
		t.Fatalf("expected 25 seconds remaining got %d", got)
	}

	clock.advance(25 * time.Second)
	if got := l.BlockedSecondsRemaining("1"); got != 0 {
		t.Fatalf("expected block to expire got %d", got)
	}
	if !l.IsAllowed("1") {
		t.Fatal("expected events to be allowed after block expires")
	}
}

func TestEventLimiterWindowResets(t *testing.T) {
	l, clock := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		l.IsAllowed("1")
	}
	clock.advance(time.Second)
	for i := 0; i < 3; i++ {
		if !l.IsAllowed("1") {
			t.Fatalf("event %d in new window should be allowed", i+1)
		}
	}
}

func TestEventLimiterRemainingRoundsUp(t *testing.T) {
	l, clock := newTestLimiter(1)
	l.IsAllowed("1")
	l.IsAllowed("1")

	clock.advance(29*time.Second + 100*time.Millisecond)
	if got := l.BlockedSecondsRemaining("1"); got != 1 {
		t.Fatalf("expected 1 got %d", got)
	}
	if got := l.BlockedSecondsRemaining("unknown"); got != 0 {
		t.Fatalf("unknown identity should report 0 got %d", got)
	}
}

func TestEventLimiterSweep(t *testing.T) {
	l, clock := newTestLimiter(1)

	l.IsAllowed("idle")
	l.IsAllowed("blocked")
	l.IsAllowed("blocked")

	clock.advance(2 * time.Second)
	l.IsAllowed("active")

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected 1 entry swept got %d", removed)
	}
	if l.Len() != 2 {
		t.Fatalf("expected blocked and active entries to remain got %d", l.Len())
	}
	if l.BlockedSecondsRemaining("blocked") == 0 {
		t.Fatal("sweep must not clear an active block")
	}
}

func TestEventLimiterUpdateConfig(t *testing.T) {
	l, _ := newTestLimiter(1)
	l.UpdateConfig(EventLimiterConfig{Window: time.Second, MaxEvents: 3, Block: 10 * time.Second})

	for i := 0; i < 3; i++ {
		if !l.IsAllowed("1") {
			t.Fatalf("event %d should be allowed with raised max", i+1)
		}
	}
	if l.IsAllowed("1") {
		t.Fatal("expected block after raised max")
	}
	if got := l.BlockedSecondsRemaining("1"); got != 10 {
		t.Fatalf("expected new block duration got %d", got)
	}

	l.UpdateConfig(EventLimiterConfig{})
	if cfg := l.Config(); cfg != DefaultEventLimiterConfig() {
		t.Fatalf("zero config should fall back to defaults got %+v", cfg)
	}
}

func TestEventLimiterStartStops(t *testing.T) {
	l, _ := newTestLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
