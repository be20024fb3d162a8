// Package besteffort runs detached side effects whose failure must never
// reach the caller: webhooks, map updates, summary notifications.
package besteffort

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Runner dispatches tasks without waiting for them. Wait exists for
// graceful shutdown and tests.
type Runner struct {
	wg      conc.WaitGroup
	timeout time.Duration
}

// New creates a runner that gives every task at most timeout to finish.
func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Go runs fn in the background. The task keeps ctx's values (trace ids,
// logger) but not its cancellation, so it outlives the request that
// started it. Errors and panics are logged and swallowed.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.wg.Go(func() {
		defer cancel()

		var pc panics.Catcher
		var err error
		pc.Try(func() { err = fn(taskCtx) })

		if rec := pc.Recovered(); rec != nil {
			log.Ctx(taskCtx).Error().Err(rec.AsError()).Str("task", name).Msg("Best-effort task panicked")
			return
		}
		if err != nil {
			log.Ctx(taskCtx).Warn().Err(err).Str("task", name).Msg("Best-effort task failed")
		}
	})
}

// Wait blocks until every dispatched task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
