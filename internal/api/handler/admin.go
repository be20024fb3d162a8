package handler

import (
	"encoding/json"
	"net/http"

	"attendance.service/internal/api/middleware"
	"attendance.service/internal/core/model"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type AdminHandler struct {
	Service AdminService
	// Sweeper may be nil when auto checkout is disabled.
	Sweeper Sweeper
}

type EmergencyRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.GetAdminStats(r.Context()))
}

func (h *AdminHandler) Report(w http.ResponseWriter, r *http.Request) {
	kind := model.ReportKind(mux.Vars(r)["kind"])
	q := r.URL.Query()
	params := model.ReportParams{
		Date:  q.Get("date"),
		Month: q.Get("month"),
		Name:  q.Get("name"),
		From:  q.Get("from"),
		To:    q.Get("to"),
	}

	report, err := h.Service.GetReportData(r.Context(), kind, params)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) SetEmergency(w http.ResponseWriter, r *http.Request) {
	var req EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.Service.SetEmergencyMode(req.Enabled)
	log.Ctx(r.Context()).Info().
		Str("operator", middleware.Subject(r.Context())).
		Bool("enabled", req.Enabled).
		Msg("Emergency mode changed")
	writeJSON(w, http.StatusOK, h.Service.SystemStatus())
}

func (h *AdminHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	h.Service.RefreshCache()
	writeJSON(w, http.StatusOK, h.Service.CacheStatus())
}

func (h *AdminHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.CacheStatus())
}

func (h *AdminHandler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.QuotaStatus())
}

func (h *AdminHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.SystemStatus())
}

func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusNotFound, "auto checkout is disabled")
		return
	}
	summary, err := h.Sweeper.RunOnce(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
