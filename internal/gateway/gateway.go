package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"attendance.service/internal/cache"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/ratelimit"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Recorder receives gateway measurements. *metrics.Metrics implements it.
type Recorder interface {
	RemoteCall(op string, d time.Duration, class string)
	StaleServed(dataset string)
	SetEmergency(on bool)
}

type noopRecorder struct{}

func (noopRecorder) RemoteCall(string, time.Duration, string) {}
func (noopRecorder) StaleServed(string)                       {}
func (noopRecorder) SetEmergency(bool)                        {}

// Snapshot is the result of a dataset read.
type Snapshot struct {
	Dataset model.Dataset
	Rows    []model.Row
	// Stale is set when the rows came from an expired cache entry, or when
	// SafeFetch had nothing at all to return.
	Stale bool
}

// Err returns model.ErrDegraded for stale snapshots and nil otherwise.
func (s Snapshot) Err() error {
	if s.Stale {
		return model.ErrDegraded
	}
	return nil
}

// Gateway is the only path from application logic to the remote store. Reads
// go cache first, then through the call budget, then to the store behind a
// circuit breaker, and fall back to stale cache under quota pressure.
type Gateway struct {
	store   repository.SheetStore
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
	group   singleflight.Group
	rec     Recorder

	emergency      atomic.Bool
	quotaFailures  atomic.Int32
	emergencyAfter int32
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithRecorder sends measurements to rec.
func WithRecorder(rec Recorder) Option {
	return func(g *Gateway) {
		if rec != nil {
			g.rec = rec
		}
	}
}

// WithEmergencyAfter sets how many consecutive quota-class failures switch
// emergency mode on. Zero disables the automatic switch.
func WithEmergencyAfter(n int) Option {
	return func(g *Gateway) { g.emergencyAfter = int32(n) }
}

// New wires a gateway. The circuit breaker protects the store from being
// hammered while it is failing.
func New(store repository.SheetStore, c *cache.Cache, l *ratelimit.Limiter, opts ...Option) *Gateway {
	settings := gobreaker.Settings{
		Name:        "Sheet-Store",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}

	g := &Gateway{
		store:          store,
		cache:          c,
		limiter:        l,
		cb:             gobreaker.NewCircuitBreaker(settings),
		rec:            noopRecorder{},
		emergencyAfter: 3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch returns the rows of a dataset.
//
//  1. A fresh cache entry is returned without touching the budget.
//  2. If the limiter refuses, a stale entry is returned, else ErrRateLimitExceeded.
//  3. Otherwise the store is read. Success refreshes the cache. A quota-class
//     failure falls back to stale data like step 2. Any other failure is
//     returned wrapped in ErrRemoteUnavailable.
func (g *Gateway) Fetch(ctx context.Context, ds model.Dataset) (Snapshot, error) {
	ctx, span := otel.Tracer("sheet-gateway").Start(ctx, "gateway.fetch",
		trace.WithAttributes(attribute.String("app.dataset", string(ds))))
	defer span.End()

	if v, ok := g.cache.Get(string(ds)); ok && g.cache.IsValid(string(ds)) {
		span.SetAttributes(attribute.String("app.cache", "hit"))
		return Snapshot{Dataset: ds, Rows: v.([]model.Row)}, nil
	}

	// Concurrent misses share one remote read and one unit of budget.
	v, err, shared := g.group.Do(string(ds), func() (any, error) {
		return g.fetchRemote(ctx, ds)
	})
	span.SetAttributes(attribute.Bool("app.shared", shared))
	if err != nil {
		span.RecordError(err)
		return Snapshot{Dataset: ds}, err
	}
	snap := v.(Snapshot)
	span.SetAttributes(attribute.Bool("app.stale", snap.Stale))
	return snap, nil
}

func (g *Gateway) fetchRemote(ctx context.Context, ds model.Dataset) (Snapshot, error) {
	if v, ok := g.cache.Peek(string(ds)); ok && g.cache.IsValid(string(ds)) {
		return Snapshot{Dataset: ds, Rows: v.([]model.Row)}, nil
	}

	release, ok := g.limiter.Acquire()
	if !ok {
		log.Ctx(ctx).Warn().Str("dataset", string(ds)).Msg("Call budget exhausted")
		return g.stale(ctx, ds, fmt.Errorf("fetch %s: %w", ds, model.ErrRateLimitExceeded))
	}
	defer release()

	// Once started, a remote read is not abandoned because a caller went away.
	rows, err := g.read(context.WithoutCancel(ctx), ds)
	if err == nil {
		g.cache.Set(string(ds), rows)
		g.quotaFailures.Store(0)
		return Snapshot{Dataset: ds, Rows: rows}, nil
	}

	if IsQuotaError(err) {
		n := g.quotaFailures.Add(1)
		if g.emergencyAfter > 0 && n >= g.emergencyAfter && !g.EmergencyMode() {
			log.Ctx(ctx).Error().Int32("failures", n).Msg("Repeated quota failures, entering emergency mode")
			g.SetEmergencyMode(true)
		}
		return g.stale(ctx, ds, fmt.Errorf("fetch %s: %w: %w", ds, model.ErrRateLimitExceeded, err))
	}
	return Snapshot{}, fmt.Errorf("fetch %s: %w: %w", ds, model.ErrRemoteUnavailable, err)
}

// Refresh reads ds from the store, bypassing both the cache and any read
// already in flight, and caches the result. It never serves stale rows, so
// callers can rely on the row numbers it returns.
func (g *Gateway) Refresh(ctx context.Context, ds model.Dataset) (Snapshot, error) {
	ctx, span := otel.Tracer("sheet-gateway").Start(ctx, "gateway.refresh",
		trace.WithAttributes(attribute.String("app.dataset", string(ds))))
	defer span.End()

	g.group.Forget(string(ds))
	release, ok := g.limiter.Acquire()
	if !ok {
		log.Ctx(ctx).Warn().Str("dataset", string(ds)).Msg("Call budget exhausted")
		return Snapshot{Dataset: ds}, fmt.Errorf("refresh %s: %w", ds, model.ErrRateLimitExceeded)
	}
	defer release()

	rows, err := g.read(context.WithoutCancel(ctx), ds)
	if err != nil {
		span.RecordError(err)
		return Snapshot{Dataset: ds}, classify(fmt.Sprintf("refresh %s", ds), err)
	}
	g.cache.Set(string(ds), rows)
	return Snapshot{Dataset: ds, Rows: rows}, nil
}

// stale returns the cached payload for ds regardless of age, or cause when
// there is none.
func (g *Gateway) stale(ctx context.Context, ds model.Dataset, cause error) (Snapshot, error) {
	v, ok := g.cache.Peek(string(ds))
	if !ok {
		return Snapshot{}, cause
	}
	g.rec.StaleServed(string(ds))
	log.Ctx(ctx).Warn().Err(cause).Str("dataset", string(ds)).Msg("Serving stale dataset")
	return Snapshot{Dataset: ds, Rows: v.([]model.Row), Stale: true}, nil
}

// SafeFetch never fails. Any Fetch error switches emergency mode on; the
// best stale copy is returned if there is one, otherwise an empty snapshot.
func (g *Gateway) SafeFetch(ctx context.Context, ds model.Dataset) Snapshot {
	snap, err := g.Fetch(ctx, ds)
	if err == nil {
		return snap
	}

	log.Ctx(ctx).Error().Err(err).Str("dataset", string(ds)).Msg("Safe fetch absorbed an error")
	if !g.EmergencyMode() {
		g.SetEmergencyMode(true)
	}
	if v, ok := g.cache.Peek(string(ds)); ok {
		g.rec.StaleServed(string(ds))
		return Snapshot{Dataset: ds, Rows: v.([]model.Row), Stale: true}
	}
	return Snapshot{Dataset: ds, Stale: true}
}

// SetEmergencyMode widens every cache TTL to the degraded value, or restores
// the configured TTLs. The automatic path only ever turns it on.
func (g *Gateway) SetEmergencyMode(on bool) {
	prev := g.emergency.Swap(on)
	g.cache.SetDegraded(on)
	g.rec.SetEmergency(on)
	if !on {
		g.quotaFailures.Store(0)
	}
	if prev != on {
		log.Warn().Bool("enabled", on).Msg("Emergency mode changed")
	}
}

func (g *Gateway) EmergencyMode() bool {
	return g.emergency.Load()
}

// Invalidate drops cached datasets, or all of them when none are given.
func (g *Gateway) Invalidate(datasets ...model.Dataset) {
	keys := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		keys = append(keys, string(ds))
	}
	g.cache.Invalidate(keys...)
}

// Cache exposes the dataset cache for derived datasets such as stats.
func (g *Gateway) Cache() *cache.Cache {
	return g.cache
}

func (g *Gateway) CacheStatus() []cache.EntryStatus {
	return g.cache.Status()
}

func (g *Gateway) QuotaStatus() ratelimit.Status {
	return g.limiter.Status()
}

// BreakerState reports the circuit breaker state for introspection.
func (g *Gateway) BreakerState() string {
	return g.cb.State().String()
}
