// Package sweeper closes sessions nobody clocked out of. It runs once a day
// at a configured cutoff and reuses the reconciler's closing path.
package sweeper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"attendance.service/internal/core"
	"attendance.service/internal/core/identity"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/worktime"
	"attendance.service/internal/ports/messaging"
	"attendance.service/pkg/clock"
	"github.com/rs/zerolog/log"
)

// Closer is the part of *core.AttendanceService the sweeper drives.
type Closer interface {
	OpenSessions(ctx context.Context) ([]model.WorkSession, error)
	CloseSessions(ctx context.Context, sessions []model.WorkSession, at time.Time, note string) []error
	Notify(ctx context.Context, n messaging.Notification)
}

// Recorder receives sweep outcome counts. *metrics.Metrics implements it.
type Recorder interface {
	SweepOutcome(outcome string, n int)
}

type Config struct {
	Hour     int
	Minute   int
	Exempt   []string
	Location *time.Location
}

type Sweeper struct {
	svc    Closer
	clock  clock.Clock
	cfg    Config
	mailer core.SummaryMailer
	rec    Recorder
}

type Option func(*Sweeper)

// WithMailer also emails every run's summary.
func WithMailer(m core.SummaryMailer) Option {
	return func(s *Sweeper) { s.mailer = m }
}

func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.rec = r }
}

func New(svc Closer, clk clock.Clock, cfg Config, opts ...Option) *Sweeper {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Sweeper{svc: svc, clock: clk, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs RunOnce at every cutoff until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := NextCutoff(now, s.cfg.Hour, s.cfg.Minute, s.cfg.Location)
		log.Info().Time("next_run", next).Msg("Auto checkout scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Auto checkout scheduler stopped")
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Auto checkout run failed")
		}
	}
}

// RunOnce closes every eligible open session at today's cutoff in one
// batch. Sessions of exempt employees stay open, and sessions opened on an
// earlier day are left for manual review. When run before the cutoff,
// sessions are closed at the current time instead.
func (s *Sweeper) RunOnce(ctx context.Context) (model.SweepSummary, error) {
	now := s.clock.Now().In(s.cfg.Location)
	at := cutoffOn(now, s.cfg.Hour, s.cfg.Minute, s.cfg.Location)
	if now.Before(at) {
		at = now
	}
	summary := model.SweepSummary{RunAt: now, Cutoff: worktime.Format(at, s.cfg.Location)}

	sessions, err := s.svc.OpenSessions(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing open sessions: %w", err)
	}

	// Bottom-up, the order the closes are applied in.
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Row > sessions[j].Row })

	var due []model.WorkSession
	for _, session := range sessions {
		name := sessionName(session)
		if identity.MatchesAny(session.SystemName, s.cfg.Exempt...) || identity.MatchesAny(session.EmployeeName, s.cfg.Exempt...) {
			summary.Exempted++
			continue
		}

		in, err := worktime.Parse(session.ClockIn, s.cfg.Location)
		if err != nil || !worktime.SameDay(in, now, s.cfg.Location) {
			log.Ctx(ctx).Info().Str("employee", name).Str("clock_in", session.ClockIn).Msg("Session is not from today, left for manual review")
			summary.Skipped++
			continue
		}
		due = append(due, session)
	}

	if len(due) > 0 {
		for i, err := range s.svc.CloseSessions(ctx, due, at, model.AutoCheckoutNote) {
			name := sessionName(due[i])
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("employee", name).Msg("Auto checkout failed")
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			summary.Processed++
			summary.Closed = append(summary.Closed, name)
		}
	}

	log.Ctx(ctx).Info().
		Int("processed", summary.Processed).
		Int("exempted", summary.Exempted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Auto checkout finished")

	s.record(summary)
	s.svc.Notify(ctx, messaging.Notification{
		Action:    messaging.ActionAutoCheckoutSummary,
		Data:      summary,
		Timestamp: now,
	})
	if s.mailer != nil {
		if err := s.mailer.SendSweepSummary(ctx, summary); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Failed to email auto checkout summary")
		}
	}
	return summary, nil
}

func (s *Sweeper) record(summary model.SweepSummary) {
	if s.rec == nil {
		return
	}
	s.rec.SweepOutcome("processed", summary.Processed)
	s.rec.SweepOutcome("exempted", summary.Exempted)
	s.rec.SweepOutcome("skipped", summary.Skipped)
	s.rec.SweepOutcome("failed", summary.Failed)
}

func sessionName(session model.WorkSession) string {
	if session.SystemName != "" {
		return session.SystemName
	}
	return session.EmployeeName
}

// NextCutoff returns the first hour:minute in loc strictly after now.
func NextCutoff(now time.Time, hour, minute int, loc *time.Location) time.Time {
	next := cutoffOn(now, hour, minute, loc)
	if !next.After(now) {
		local := now.In(loc)
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func cutoffOn(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}
