package cache

import (
	"testing"
	"time"

	"attendance.service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTTLs = map[string]time.Duration{
	"roster":   5 * time.Minute,
	"sessions": time.Minute,
	"ledger":   30 * time.Second,
	"stats":    2 * time.Minute,
}

type counter struct{ hits, misses int }

func (c *counter) CacheHit(string)  { c.hits++ }
func (c *counter) CacheMiss(string) { c.misses++ }

func newTestCache(opts ...Option) (*Cache, *testutil.FakeClock) {
	clk := testutil.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	return New(clk, testTTLs, opts...), clk
}

func TestCache_FreshThenStale(t *testing.T) {
	c, clk := newTestCache()
	c.Set("ledger", []string{"row"})

	assert.True(t, c.IsValid("ledger"))
	clk.Advance(29 * time.Second)
	assert.True(t, c.IsValid("ledger"))

	clk.Advance(time.Second)
	assert.False(t, c.IsValid("ledger"), "age == TTL is no longer valid")

	v, ok := c.Get("ledger")
	require.True(t, ok, "stale payload stays readable")
	assert.Equal(t, []string{"row"}, v)
}

func TestCache_IndependentTTLs(t *testing.T) {
	c, clk := newTestCache()
	c.Set("roster", 1)
	c.Set("ledger", 2)

	clk.Advance(time.Minute)
	assert.True(t, c.IsValid("roster"))
	assert.False(t, c.IsValid("ledger"))
}

func TestCache_GetMissing(t *testing.T) {
	c, _ := newTestCache()
	v, ok := c.Get("sessions")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.False(t, c.IsValid("sessions"))
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache()
	c.Set("roster", 1)
	c.Set("ledger", 2)
	c.Set("sessions", 3)

	c.Invalidate("ledger", "sessions")
	_, ok := c.Get("ledger")
	assert.False(t, ok)
	assert.True(t, c.IsValid("roster"))

	c.Invalidate()
	_, ok = c.Get("roster")
	assert.False(t, ok)
}

func TestCache_DegradedRestoresBaseTTLExactly(t *testing.T) {
	c, clk := newTestCache(WithDegradedTTL(time.Hour))

	c.SetDegraded(true)
	for k := range testTTLs {
		assert.Equal(t, time.Hour, c.TTL(k), k)
	}

	c.Set("ledger", 1)
	clk.Advance(45 * time.Minute)
	assert.True(t, c.IsValid("ledger"), "degraded TTL widens freshness")

	c.SetDegraded(false)
	for k, want := range testTTLs {
		assert.Equal(t, want, c.TTL(k), k)
	}
	assert.False(t, c.IsValid("ledger"))
}

func TestCache_UnconfiguredKeyUsesFallback(t *testing.T) {
	c, clk := newTestCache(WithFallbackTTL(10 * time.Second))
	c.Set("extra", "x")
	assert.Equal(t, 10*time.Second, c.TTL("extra"))
	clk.Advance(11 * time.Second)
	assert.False(t, c.IsValid("extra"))
}

func TestCache_ObserverCountsHitsAndMisses(t *testing.T) {
	obs := &counter{}
	c, clk := newTestCache(WithObserver(obs))
	c.Get("ledger")
	c.Set("ledger", 1)
	c.Get("ledger")
	clk.Advance(time.Minute)
	c.Get("ledger")

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
}

func TestCache_Status(t *testing.T) {
	c, clk := newTestCache()
	c.Set("sessions", 1)
	clk.Advance(10 * time.Second)

	st := c.Status()
	require.Len(t, st, 4)
	assert.Equal(t, "ledger", st[0].Key)
	assert.False(t, st[0].Present)

	var sessions EntryStatus
	for _, s := range st {
		if s.Key == "sessions" {
			sessions = s
		}
	}
	assert.True(t, sessions.Present)
	assert.True(t, sessions.Valid)
	assert.Equal(t, 10*time.Second, sessions.Age)
	assert.Equal(t, time.Minute, sessions.BaseTTL)
}
