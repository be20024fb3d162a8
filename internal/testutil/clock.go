package testutil

import (
	"sync"
	"time"

	"attendance.service/pkg/clock"
)

// FakeClock is a manually advanced clock for tests. Tickers it creates fire
// only when the clock is moved past their next tick.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	period time.Duration
	next   time.Time
	ch     chan time.Time
	done   chan struct{}
	once   sync.Once
	clock  *FakeClock
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.clock.remove(t)
	})
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker creates a ticker driven by Advance and Set.
func (c *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	if d <= 0 {
		panic("testutil: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time),
		done:   make(chan struct{}),
		clock:  c,
	}
	c.tickers = append(c.tickers, t)
	c.cond.Broadcast()
	return t
}

// BlockUntilTickers waits until at least n tickers are running.
func (c *FakeClock) BlockUntilTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.tickers) < n {
		c.cond.Wait()
	}
}

// Advance moves the clock forward by d. Every tick that falls due is handed
// to its receiver before Advance returns.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.fire()
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
	c.fire()
}

func (c *FakeClock) fire() {
	type tick struct {
		t  *fakeTicker
		at time.Time
	}
	c.mu.Lock()
	var due []tick
	for _, t := range c.tickers {
		for !t.next.After(c.now) {
			due = append(due, tick{t, t.next})
			t.next = t.next.Add(t.period)
		}
	}
	c.mu.Unlock()

	for _, d := range due {
		select {
		case d.t.ch <- d.at:
		case <-d.t.done:
		}
	}
}

func (c *FakeClock) remove(t *fakeTicker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.tickers {
		if x == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}
