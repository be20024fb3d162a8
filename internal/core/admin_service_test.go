package core

import (
	"context"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDay(f *fixture) {
	f.clock.Set(time.Date(2025, 3, 10, 17, 0, 0, 0, ict))
	f.store.Seed(model.DatasetLedger,
		model.LedgerEntry{Employee: "Malee", ClockIn: "09/03/2025 08:00:00", ClockOut: "09/03/2025 15:30:00", WorkingHours: "7.50"}.Cells(),
		model.LedgerEntry{Employee: "Anna", ClockIn: "10/03/2025 08:00:00", ClockOut: "10/03/2025 16:00:00", WorkingHours: "8.00"}.Cells(),
		model.LedgerEntry{Employee: "Somchai", ClockIn: "10/03/2025 09:00:00"}.Cells(),
	)
	f.store.Seed(model.DatasetSessions,
		model.WorkSession{SystemName: "Somchai", EmployeeName: "Somchai Jones", ClockIn: "10/03/2025 09:00:00", LedgerRow: 4}.Cells(),
	)
}

func TestGetAdminStats(t *testing.T) {
	f := newFixture(t, stubGeocoder{})
	seedDay(f)
	ctx := context.Background()

	stats := f.svc.GetAdminStats(ctx)
	assert.Equal(t, 3, stats.TotalEmployees)
	assert.Equal(t, 1, stats.WorkingCount)
	assert.Equal(t, 2, stats.ClockInsToday)
	assert.Equal(t, 1, stats.CompletedToday)
	assert.Equal(t, 8.0, stats.HoursToday)
	assert.Equal(t, []string{"Malee"}, stats.NotClockedIn)
	require.Len(t, stats.Working, 1)
	assert.Equal(t, 8.0, stats.Working[0].Hours)
	assert.False(t, stats.Degraded)

	reads := f.store.Reads(model.DatasetLedger)
	f.clock.Advance(time.Minute)
	f.svc.GetAdminStats(ctx)
	assert.Equal(t, reads, f.store.Reads(model.DatasetLedger), "stats are served from cache")
}

func TestGetAdminStats_DegradedIsNotCached(t *testing.T) {
	f := newFixture(t, stubGeocoder{})
	f.store.FailNext(assert.AnError)

	stats := f.svc.GetAdminStats(context.Background())
	assert.True(t, stats.Degraded)
	assert.Equal(t, model.ErrDegraded.Error(), stats.Warning)
	assert.True(t, stats.EmergencyMode)

	_, cached := f.gw.Cache().Peek(string(model.DatasetStats))
	assert.False(t, cached)
}

func TestGetReportData(t *testing.T) {
	f := newFixture(t, stubGeocoder{})
	seedDay(f)
	ctx := context.Background()

	cases := []struct {
		name    string
		kind    model.ReportKind
		params  model.ReportParams
		records int
		hours   float64
	}{
		{"daily defaults to today", model.ReportDaily, model.ReportParams{}, 2, 8},
		{"daily for a date", model.ReportDaily, model.ReportParams{Date: "2025-03-09"}, 1, 7.5},
		{"monthly", model.ReportMonthly, model.ReportParams{Month: "2025-03"}, 3, 15.5},
		{"monthly other month", model.ReportMonthly, model.ReportParams{Month: "2025-02"}, 0, 0},
		{"employee", model.ReportEmployee, model.ReportParams{Name: "anna"}, 1, 8},
		{"employee in range", model.ReportEmployee, model.ReportParams{Name: "Malee", From: "2025-03-09", To: "2025-03-09"}, 1, 7.5},
		{"employee outside range", model.ReportEmployee, model.ReportParams{Name: "Malee", From: "2025-03-10"}, 0, 0},
		{"open", model.ReportOpen, model.ReportParams{}, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := f.svc.GetReportData(ctx, tc.kind, tc.params)
			require.NoError(t, err)
			assert.Len(t, report.Records, tc.records)
			assert.Equal(t, tc.hours, report.TotalHours)
			assert.False(t, report.Degraded)
		})
	}

	report, err := f.svc.GetReportData(ctx, model.ReportOpen, model.ReportParams{})
	require.NoError(t, err)
	assert.Len(t, report.Sessions, 1)
}

func TestGetReportData_InvalidParams(t *testing.T) {
	f := newFixture(t, stubGeocoder{})
	ctx := context.Background()

	invalid := []struct {
		kind   model.ReportKind
		params model.ReportParams
	}{
		{"weekly", model.ReportParams{}},
		{model.ReportDaily, model.ReportParams{Date: "10/03/2025"}},
		{model.ReportMonthly, model.ReportParams{Month: "March"}},
		{model.ReportEmployee, model.ReportParams{}},
		{model.ReportEmployee, model.ReportParams{Name: "Anna", From: "2025-03-10", To: "2025-03-01"}},
	}
	for _, tc := range invalid {
		_, err := f.svc.GetReportData(ctx, tc.kind, tc.params)
		assert.ErrorIs(t, err, model.ErrValidation, "%s %+v", tc.kind, tc.params)
	}
}

func TestEmergencyAndCacheControls(t *testing.T) {
	f := newFixture(t, stubGeocoder{})
	ctx := context.Background()

	f.svc.SetEmergencyMode(true)
	status := f.svc.SystemStatus()
	assert.True(t, status.EmergencyMode)
	assert.Equal(t, "closed", status.Breaker)
	for _, e := range status.Cache {
		assert.Equal(t, time.Hour, e.TTL)
	}

	f.svc.SetEmergencyMode(false)
	_, err := f.svc.OpenSessions(ctx)
	require.NoError(t, err)
	reads := f.store.Reads(model.DatasetSessions)

	f.svc.RefreshCache()
	_, err = f.svc.OpenSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, reads+1, f.store.Reads(model.DatasetSessions))
	assert.Equal(t, 2, f.svc.QuotaStatus().CallsLastMinute)
	assert.NotEmpty(t, f.svc.CacheStatus())
}
