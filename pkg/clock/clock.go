package clock

import "time"

// Clock is the time source for everything that reasons about TTLs,
// rate windows and work durations. Tests swap in a fake.
type Clock interface {
	Now() time.Time
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerClock is a Clock that also drives periodic work.
type TickerClock interface {
	Clock
	NewTicker(d time.Duration) Ticker
}

// NewTicker returns a ticker from clk when it can make one, otherwise a
// wall-clock ticker.
func NewTicker(clk Clock, d time.Duration) Ticker {
	if tc, ok := clk.(TickerClock); ok {
		return tc.NewTicker(d)
	}
	return System{}.NewTicker(d)
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
