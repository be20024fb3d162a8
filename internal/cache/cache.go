package cache

import (
	"sort"
	"sync"
	"time"

	"attendance.service/pkg/clock"
)

// Observer receives hit/miss notifications, typically prometheus counters.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
}

type entry struct {
	val     any
	fetched time.Time
}

// Cache holds one payload per dataset key, each with its own TTL. It never
// evicts on expiry: a stale payload stays readable through Get until it is
// invalidated, and deciding whether stale is good enough is the caller's job.
type Cache struct {
	mu          sync.RWMutex
	clock       clock.Clock
	entries     map[string]entry
	base        map[string]time.Duration
	ttl         map[string]time.Duration
	fallbackTTL time.Duration
	degradedTTL time.Duration
	degraded    bool
	obs         Observer
}

// Option customizes a Cache.
type Option func(*Cache)

// WithObserver reports hits and misses to obs.
func WithObserver(obs Observer) Option {
	return func(c *Cache) { c.obs = obs }
}

// WithDegradedTTL sets the TTL every key gets while degraded.
func WithDegradedTTL(d time.Duration) Option {
	return func(c *Cache) { c.degradedTTL = d }
}

// WithFallbackTTL sets the TTL of keys that have no configured TTL.
func WithFallbackTTL(d time.Duration) Option {
	return func(c *Cache) { c.fallbackTTL = d }
}

// New creates a cache with the given per-key base TTLs.
func New(clk clock.Clock, ttls map[string]time.Duration, opts ...Option) *Cache {
	if clk == nil {
		clk = clock.System{}
	}
	c := &Cache{
		clock:       clk,
		entries:     make(map[string]entry),
		base:        make(map[string]time.Duration, len(ttls)),
		ttl:         make(map[string]time.Duration, len(ttls)),
		fallbackTTL: time.Minute,
		degradedTTL: time.Hour,
	}
	for k, d := range ttls {
		c.base[k] = d
		c.ttl[k] = d
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsValid reports whether key holds a payload younger than its TTL.
func (c *Cache) IsValid(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validLocked(key)
}

// Get returns the payload regardless of age. ok is false only when nothing
// was ever stored or the key was invalidated.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	valid := ok && c.validLocked(key)
	c.mu.RUnlock()

	if c.obs != nil {
		if valid {
			c.obs.CacheHit(key)
		} else {
			c.obs.CacheMiss(key)
		}
	}
	if !ok {
		return nil, false
	}
	return e.val, true
}

// Peek is Get without notifying the observer. The gateway uses it when it
// falls back to a stale copy after already counting the miss.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.val, ok
}

// Set stores payload and stamps it with the current time. The key keeps
// whatever TTL it is configured with.
func (c *Cache) Set(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{val: payload, fetched: c.clock.Now()}
	if _, ok := c.ttl[key]; !ok {
		c.base[key] = c.fallbackTTL
		c.ttl[key] = c.ttlFor(c.fallbackTTL)
	}
}

// Invalidate drops the given keys, or every key when none are given.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// SetDegraded switches every key to the degraded TTL, or back to its base
// TTL. Entries themselves are kept.
func (c *Cache) SetDegraded(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = on
	for k, d := range c.base {
		c.ttl[k] = c.ttlFor(d)
	}
}

// TTL returns the TTL currently in effect for key.
func (c *Cache) TTL(key string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.ttl[key]; ok {
		return d
	}
	return c.ttlFor(c.fallbackTTL)
}

// EntryStatus describes one key for introspection.
type EntryStatus struct {
	Key       string        `json:"key"`
	Present   bool          `json:"present"`
	Valid     bool          `json:"valid"`
	FetchedAt time.Time     `json:"fetchedAt,omitempty"`
	Age       time.Duration `json:"age"`
	TTL       time.Duration `json:"ttl"`
	BaseTTL   time.Duration `json:"baseTtl"`
}

// Status lists every configured or populated key, sorted by name.
func (c *Cache) Status() []EntryStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	out := make([]EntryStatus, 0, len(c.ttl))
	for k, ttl := range c.ttl {
		st := EntryStatus{Key: k, TTL: ttl, BaseTTL: c.base[k]}
		if e, ok := c.entries[k]; ok {
			st.Present = true
			st.FetchedAt = e.fetched
			st.Age = now.Sub(e.fetched)
			st.Valid = c.validLocked(k)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Cache) validLocked(key string) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	ttl, ok := c.ttl[key]
	if !ok {
		ttl = c.ttlFor(c.fallbackTTL)
	}
	return c.clock.Now().Sub(e.fetched) < ttl
}

func (c *Cache) ttlFor(base time.Duration) time.Duration {
	if c.degraded {
		return c.degradedTTL
	}
	return base
}
