package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"attendance.service/internal/cache"
	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ratelimit"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// AttendanceService is what the employee-facing routes need.
type AttendanceService interface {
	GetStatus(ctx context.Context, name string) model.Status
	ClockIn(ctx context.Context, req model.ClockRequest) model.ClockResult
	ClockOut(ctx context.Context, req model.ClockRequest) model.ClockResult
}

type AttendanceHandler struct {
	Service AttendanceService
}

func (h *AttendanceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	writeJSON(w, http.StatusOK, h.Service.GetStatus(r.Context(), name))
}

func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Service.ClockIn)
}

func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Service.ClockOut)
}

func (h *AttendanceHandler) clock(w http.ResponseWriter, r *http.Request, op func(context.Context, model.ClockRequest) model.ClockResult) {
	var req model.ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res := op(r.Context(), req)
	writeJSON(w, resultStatus(res), res)
}

// resultStatus maps a ClockResult code onto an HTTP status. The body is the
// result either way.
func resultStatus(res model.ClockResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case model.CodeAlreadyClockedIn, model.CodeNotClockedIn:
		return http.StatusConflict
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// AdminService is what the operator routes need.
type AdminService interface {
	GetAdminStats(ctx context.Context) model.AdminStats
	GetReportData(ctx context.Context, kind model.ReportKind, params model.ReportParams) (model.Report, error)
	SetEmergencyMode(on bool)
	RefreshCache()
	CacheStatus() []cache.EntryStatus
	QuotaStatus() ratelimit.Status
	SystemStatus() core.SystemStatus
}

// Sweeper runs one missed-checkout pass on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (model.SweepSummary, error)
}
