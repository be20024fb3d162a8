package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/sony/gobreaker"
)

// Writes are not gated by the burst limiter: dropping a clock-in because the
// read budget is busy would lose data. They are still logged against the
// minute and hour windows.

func (g *Gateway) AppendRow(ctx context.Context, table model.Dataset, cells []string) (int, error) {
	g.limiter.Record()
	out, err := g.call("append", func() (interface{}, error) {
		return g.store.AppendRow(ctx, table, cells)
	})
	if err != nil {
		return 0, classify(fmt.Sprintf("append %s", table), err)
	}
	return out.(int), nil
}

func (g *Gateway) UpdateCells(ctx context.Context, table model.Dataset, row int, cells map[model.Column]string) error {
	g.limiter.Record()
	_, err := g.call("update", func() (interface{}, error) {
		return nil, g.store.UpdateCells(ctx, table, row, cells)
	})
	if err != nil {
		return classify(fmt.Sprintf("update %s row %d", table, row), err)
	}
	return nil
}

func (g *Gateway) DeleteRow(ctx context.Context, table model.Dataset, row int) error {
	g.limiter.Record()
	_, err := g.call("delete", func() (interface{}, error) {
		return nil, g.store.DeleteRow(ctx, table, row)
	})
	if err != nil {
		return classify(fmt.Sprintf("delete %s row %d", table, row), err)
	}
	return nil
}

func (g *Gateway) read(ctx context.Context, ds model.Dataset) ([]model.Row, error) {
	out, err := g.call("read", func() (interface{}, error) {
		return g.store.ReadRows(ctx, ds)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.Row), nil
}

// call runs fn through the circuit breaker and records its outcome.
func (g *Gateway) call(op string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	out, err := g.cb.Execute(fn)
	class := ""
	if err != nil {
		class = "remote"
		if IsQuotaError(err) {
			class = "quota"
		}
	}
	g.rec.RemoteCall(op, time.Since(start), class)
	return out, err
}

func classify(what string, err error) error {
	if IsQuotaError(err) {
		return fmt.Errorf("%s: %w: %w", what, model.ErrRateLimitExceeded, err)
	}
	return fmt.Errorf("%s: %w: %w", what, model.ErrRemoteUnavailable, err)
}

// IsQuotaError reports whether err means "try again later": an adapter
// quota error, an open circuit breaker, or a message naming quota, rate
// limiting or HTTP 429.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repository.ErrQuotaExceeded) ||
		errors.Is(err, model.ErrRateLimitExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "rate limit", "ratelimit", "rate_limit", "429", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
