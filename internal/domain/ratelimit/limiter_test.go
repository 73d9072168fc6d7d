package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiterAdmitsExactlyLimit(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(20, WithClock(clock.Now))
	first := clock.Now()

	for i := 0; i < 20; i++ {
		d := l.CheckAndRecord("key-a")
		if !d.Allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		if d.Remaining != 20-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 20-(i+1))
		}
		clock.Advance(time.Minute)
	}

	d := l.CheckAndRecord("key-a")
	if d.Allowed {
		t.Fatal("21st request admitted, want rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("rejected remaining = %d, want 0", d.Remaining)
	}
	if want := first.Add(time.Hour); !d.Reset.Equal(want) {
		t.Errorf("reset = %v, want first request + 1h (%v)", d.Reset, want)
	}
}

func TestLimiterSlidingWindowRecovery(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(3, WithClock(clock.Now))

	l.CheckAndRecord("k")
	clock.Advance(10 * time.Minute)
	l.CheckAndRecord("k")
	clock.Advance(10 * time.Minute)
	l.CheckAndRecord("k")

	if d := l.CheckAndRecord("k"); d.Allowed {
		t.Fatal("4th request within window admitted")
	}

	// Age the oldest timestamp past one hour: exactly one slot opens.
	clock.Advance(41 * time.Minute)
	if d := l.CheckAndRecord("k"); !d.Allowed {
		t.Fatal("request after oldest expired rejected, want admitted")
	}
	if d := l.CheckAndRecord("k"); d.Allowed {
		t.Fatal("second request after single expiry admitted, want rejected")
	}
}

func TestLimiterRejectionDoesNotRecord(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(1, WithClock(clock.Now))

	l.CheckAndRecord("k")
	for i := 0; i < 5; i++ {
		l.CheckAndRecord("k")
	}

	// Only the single admitted request should occupy the window.
	clock.Advance(Window + time.Second)
	if d := l.CheckAndRecord("k"); !d.Allowed {
		t.Fatal("window should be empty after the admitted request aged out")
	}
}

func TestStatusDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		d := l.Status("k")
		if d.Remaining != 2 {
			t.Fatalf("status call %d remaining = %d, want 2", i, d.Remaining)
		}
	}

	first := l.CheckAndRecord("k")
	if first.Remaining != 1 {
		t.Fatalf("after one request remaining = %d, want 1", first.Remaining)
	}
	s := l.Status("k")
	if s.Remaining != 1 || !s.Allowed {
		t.Errorf("status = %+v, want remaining 1 allowed", s)
	}
	if want := clock.Now().Add(Window); !s.Reset.Equal(want) {
		t.Errorf("status reset = %v, want %v", s.Reset, want)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(1, WithClock(clock.Now))

	if d := l.CheckAndRecord("a"); !d.Allowed {
		t.Fatal("key a first request rejected")
	}
	if d := l.CheckAndRecord("b"); !d.Allowed {
		t.Fatal("key b first request rejected")
	}
	if d := l.CheckAndRecord("a"); d.Allowed {
		t.Fatal("key a second request admitted")
	}
}

func TestLimiterConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	l := NewLimiter(50)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.CheckAndRecord("shared"); d.Allowed {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	if count != 50 {
		t.Errorf("admitted %d concurrent requests, want exactly 50", count)
	}
}
