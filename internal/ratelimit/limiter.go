package ratelimit

import (
	"context"
	"sync"
	"time"

	"attendance.service/pkg/clock"
	"github.com/rs/zerolog/log"
)

// Limits configures the call budget.
type Limits struct {
	PerMinute int
	PerHour   int
	Burst     int
	// BurstReset is how often the in-flight counter is forcibly zeroed.
	BurstReset time.Duration
}

// DefaultLimits stays under the per-user read quota of the spreadsheet API.
func DefaultLimits() Limits {
	return Limits{
		PerMinute:  50,
		PerHour:    2500,
		Burst:      5,
		BurstReset: 5 * time.Second,
	}
}

// Observer is notified when an acquisition is denied.
type Observer interface {
	LimiterDenied(reason string)
}

// Limiter is the call budget every remote fetch must pass. It combines a
// sliding one-hour call log with a bounded in-flight (burst) counter.
//
// State lives in memory only and resets with the process.
type Limiter struct {
	mu     sync.Mutex
	clock  clock.Clock
	limits Limits
	calls  []time.Time
	burst  int
	obs    Observer
}

// New creates a limiter. A nil clock means the system clock.
func New(limits Limits, clk clock.Clock, obs Observer) *Limiter {
	if clk == nil {
		clk = clock.System{}
	}
	if limits.BurstReset <= 0 {
		limits.BurstReset = DefaultLimits().BurstReset
	}
	return &Limiter{clock: clk, limits: limits, obs: obs}
}

// TryAcquire reserves one call. It returns false when the burst ceiling,
// the per-minute ceiling or the per-hour ceiling is reached.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.burst >= l.limits.Burst {
		l.deny("burst")
		return false
	}
	minute, hour := l.countLocked(now)
	if minute >= l.limits.PerMinute {
		l.deny("minute")
		return false
	}
	if hour >= l.limits.PerHour {
		l.deny("hour")
		return false
	}

	l.burst++
	l.logLocked(now)
	return true
}

// Release returns one burst slot. It never drops the counter below zero.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.burst > 0 {
		l.burst--
	}
}

// Acquire is the scoped form of TryAcquire. The returned release func is
// safe to call more than once; only the first call releases.
func (l *Limiter) Acquire() (release func(), ok bool) {
	if !l.TryAcquire() {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(l.Release) }, true
}

// Record logs a call that bypasses the burst gate, such as a write.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logLocked(l.clock.Now())
}

// ResetBurst zeroes the in-flight counter.
func (l *Limiter) ResetBurst() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.burst > 0 {
		log.Debug().Int("burst", l.burst).Msg("Resetting burst counter")
	}
	l.burst = 0
}

// Run zeroes the burst counter every BurstReset until ctx is done. It
// recovers slots leaked by a release that never ran.
func (l *Limiter) Run(ctx context.Context) {
	ticker := clock.NewTicker(l.clock, l.limits.BurstReset)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.ResetBurst()
		}
	}
}

// Status is a point-in-time view of the budget.
type Status struct {
	CallsLastMinute int    `json:"callsLastMinute"`
	CallsLastHour   int    `json:"callsLastHour"`
	InFlight        int    `json:"inFlight"`
	Limits          Limits `json:"limits"`
}

func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	minute, hour := l.countLocked(l.clock.Now())
	return Status{
		CallsLastMinute: minute,
		CallsLastHour:   hour,
		InFlight:        l.burst,
		Limits:          l.limits,
	}
}

func (l *Limiter) countLocked(now time.Time) (minute, hour int) {
	for _, at := range l.calls {
		age := now.Sub(at)
		if age < time.Hour {
			hour++
			if age < time.Minute {
				minute++
			}
		}
	}
	return minute, hour
}

// logLocked appends a call and prunes entries older than an hour.
func (l *Limiter) logLocked(now time.Time) {
	keep := l.calls[:0]
	for _, at := range l.calls {
		if now.Sub(at) < time.Hour {
			keep = append(keep, at)
		}
	}
	l.calls = append(keep, now)
}

func (l *Limiter) deny(reason string) {
	if l.obs != nil {
		l.obs.LimiterDenied(reason)
	}
}
