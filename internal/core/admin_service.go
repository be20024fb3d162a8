package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance.service/internal/cache"
	"attendance.service/internal/core/identity"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/worktime"
	"attendance.service/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

const (
	paramDateLayout  = "2006-01-02"
	paramMonthLayout = "2006-01"
)

// GetAdminStats computes the dashboard dataset. The result is cached under
// the stats key; degraded results are returned but not cached.
func (s *AttendanceService) GetAdminStats(ctx context.Context) model.AdminStats {
	c := s.gw.Cache()
	key := string(model.DatasetStats)
	if v, ok := c.Get(key); ok && c.IsValid(key) {
		stats := v.(model.AdminStats)
		stats.EmergencyMode = s.gw.EmergencyMode()
		return stats
	}

	roster := s.gw.SafeFetch(ctx, model.DatasetRoster)
	sessions := s.gw.SafeFetch(ctx, model.DatasetSessions)
	ledger := s.gw.SafeFetch(ctx, model.DatasetLedger)

	now := s.clock.Now()
	stats := model.AdminStats{
		GeneratedAt:   now,
		NotClockedIn:  []string{},
		Working:       []model.WorkingNow{},
		Degraded:      roster.Stale || sessions.Stale || ledger.Stale,
		EmergencyMode: s.gw.EmergencyMode(),
	}

	employees := model.Employees(roster.Rows)
	stats.TotalEmployees = len(employees)

	for _, ss := range model.WorkSessions(sessions.Rows) {
		stats.Working = append(stats.Working, model.WorkingNow{
			Name:     sessionName(ss),
			ClockIn:  ss.ClockIn,
			Location: ss.Location,
			Hours:    s.elapsed(ss),
		})
	}
	stats.WorkingCount = len(stats.Working)

	var today []string
	for _, e := range model.LedgerEntries(ledger.Rows) {
		in, err := worktime.Parse(e.ClockIn, s.loc)
		if err != nil || !worktime.SameDay(in, now, s.loc) {
			continue
		}
		stats.ClockInsToday++
		today = append(today, e.Employee)
		if !e.Open() {
			stats.CompletedToday++
			stats.HoursToday += parseHours(e.WorkingHours)
		}
	}
	stats.HoursToday = roundHours(stats.HoursToday)

	for _, emp := range employees {
		if !identity.MatchesAny(emp.Name, today...) {
			stats.NotClockedIn = append(stats.NotClockedIn, emp.Name)
		}
	}

	if stats.Degraded {
		stats.Warning = model.ErrDegraded.Error()
		log.Ctx(ctx).Warn().Msg("Admin stats computed from stale data")
		return stats
	}
	c.Set(key, stats)
	return stats
}

// GetReportData selects the ledger records for a report. It reads through
// SafeFetch, so a remote outage yields a flagged stale or empty report
// rather than an error; only invalid parameters fail.
func (s *AttendanceService) GetReportData(ctx context.Context, kind model.ReportKind, params model.ReportParams) (model.Report, error) {
	match, err := s.reportFilter(kind, params)
	if err != nil {
		return model.Report{}, err
	}

	report := model.Report{Kind: kind, Params: params, Records: []model.LedgerEntry{}}

	ledger := s.gw.SafeFetch(ctx, model.DatasetLedger)
	report.Degraded = ledger.Stale
	for _, e := range model.LedgerEntries(ledger.Rows) {
		if !match(e) {
			continue
		}
		report.Records = append(report.Records, e)
		report.TotalHours += parseHours(e.WorkingHours)
	}
	report.TotalHours = roundHours(report.TotalHours)

	if kind == model.ReportOpen {
		sessions := s.gw.SafeFetch(ctx, model.DatasetSessions)
		report.Sessions = model.WorkSessions(sessions.Rows)
		report.Degraded = report.Degraded || sessions.Stale
	}
	if report.Degraded {
		report.Warning = model.ErrDegraded.Error()
	}
	return report, nil
}

func (s *AttendanceService) reportFilter(kind model.ReportKind, p model.ReportParams) (func(model.LedgerEntry) bool, error) {
	now := s.clock.Now().In(s.loc)
	clockIn := func(e model.LedgerEntry) (time.Time, bool) {
		t, err := worktime.Parse(e.ClockIn, s.loc)
		return t, err == nil
	}

	switch kind {
	case model.ReportDaily:
		day := now
		if p.Date != "" {
			d, err := time.ParseInLocation(paramDateLayout, p.Date, s.loc)
			if err != nil {
				return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrValidation)
			}
			day = d
		}
		return func(e model.LedgerEntry) bool {
			t, ok := clockIn(e)
			return ok && worktime.SameDay(t, day, s.loc)
		}, nil

	case model.ReportMonthly:
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
		if p.Month != "" {
			m, err := time.ParseInLocation(paramMonthLayout, p.Month, s.loc)
			if err != nil {
				return nil, fmt.Errorf("%w: month must be YYYY-MM", model.ErrValidation)
			}
			month = m
		}
		return func(e model.LedgerEntry) bool {
			t, ok := clockIn(e)
			if !ok {
				return false
			}
			t = t.In(s.loc)
			return t.Year() == month.Year() && t.Month() == month.Month()
		}, nil

	case model.ReportEmployee:
		if identity.Normalize(p.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
		}
		from, to, err := s.dateRange(p.From, p.To)
		if err != nil {
			return nil, err
		}
		return func(e model.LedgerEntry) bool {
			if !identity.IsMatch(e.Employee, p.Name) {
				return false
			}
			if from.IsZero() && to.IsZero() {
				return true
			}
			t, ok := clockIn(e)
			if !ok {
				return false
			}
			return (from.IsZero() || !t.Before(from)) && (to.IsZero() || t.Before(to))
		}, nil

	case model.ReportOpen:
		return func(e model.LedgerEntry) bool { return e.Open() }, nil
	}
	return nil, fmt.Errorf("%w: unknown report kind %q", model.ErrValidation, kind)
}

// dateRange parses an inclusive [from, to] date range; to is returned as the
// start of the following day.
func (s *AttendanceService) dateRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var err error
	if from != "" {
		if f, err = time.ParseInLocation(paramDateLayout, from, s.loc); err != nil {
			return f, t, fmt.Errorf("%w: from must be YYYY-MM-DD", model.ErrValidation)
		}
	}
	if to != "" {
		if t, err = time.ParseInLocation(paramDateLayout, to, s.loc); err != nil {
			return f, t, fmt.Errorf("%w: to must be YYYY-MM-DD", model.ErrValidation)
		}
		t = t.AddDate(0, 0, 1)
	}
	if !f.IsZero() && !t.IsZero() && !f.Before(t) {
		return f, t, fmt.Errorf("%w: from is after to", model.ErrValidation)
	}
	return f, t, nil
}

// SetEmergencyMode switches degraded caching on or off.
func (s *AttendanceService) SetEmergencyMode(on bool) {
	s.gw.SetEmergencyMode(on)
}

// RefreshCache drops every cached dataset so the next read goes remote.
func (s *AttendanceService) RefreshCache() {
	s.gw.Invalidate()
	log.Info().Msg("Cache invalidated on request")
}

func (s *AttendanceService) CacheStatus() []cache.EntryStatus {
	return s.gw.CacheStatus()
}

func (s *AttendanceService) QuotaStatus() ratelimit.Status {
	return s.gw.QuotaStatus()
}

// SystemStatus is the operator view of the data-access layer.
type SystemStatus struct {
	EmergencyMode bool                `json:"emergencyMode"`
	Breaker       string              `json:"breaker"`
	Cache         []cache.EntryStatus `json:"cache"`
	Quota         ratelimit.Status    `json:"quota"`
}

func (s *AttendanceService) SystemStatus() SystemStatus {
	return SystemStatus{
		EmergencyMode: s.gw.EmergencyMode(),
		Breaker:       s.gw.BreakerState(),
		Cache:         s.gw.CacheStatus(),
		Quota:         s.gw.QuotaStatus(),
	}
}

func parseHours(v string) float64 {
	h, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || h < 0 {
		return 0
	}
	return h
}

func roundHours(h float64) float64 {
	v, _ := strconv.ParseFloat(worktime.FormatHours(h), 64)
	return v
}
