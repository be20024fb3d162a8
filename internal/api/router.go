package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/api/middleware"
	"attendance.service/pkg/metrics"
)

// Deps are the collaborators the routes call into.
type Deps struct {
	Attendance     handler.AttendanceService
	Admin          handler.AdminService
	Sweeper        handler.Sweeper
	Metrics        *metrics.Metrics
	AdminSecret    string
	AllowedOrigins []string
}

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(d Deps) *mux.Router {
	attendanceHandler := handler.AttendanceHandler{Service: d.Attendance}
	adminHandler := handler.AdminHandler{Service: d.Admin, Sweeper: d.Sweeper}

	r := mux.NewRouter()

	route := func(sr *mux.Router, path, name string, fn http.HandlerFunc, methods ...string) {
		sr.Handle(path, d.Metrics.WrapHandler(name, fn)).Methods(methods...)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	route(api, "/status/{name}", "status", attendanceHandler.GetStatus, http.MethodGet)
	route(api, "/clock-in", "clock_in", attendanceHandler.ClockIn, http.MethodPost)
	route(api, "/clock-out", "clock_out", attendanceHandler.ClockOut, http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuth(d.AdminSecret))
	route(admin, "/stats", "admin_stats", adminHandler.Stats, http.MethodGet)
	route(admin, "/reports/{kind}", "admin_report", adminHandler.Report, http.MethodGet)
	route(admin, "/emergency", "admin_emergency", adminHandler.SetEmergency, http.MethodPost)
	route(admin, "/cache", "admin_cache", adminHandler.CacheStatus, http.MethodGet)
	route(admin, "/cache/refresh", "admin_cache_refresh", adminHandler.RefreshCache, http.MethodPost)
	route(admin, "/quota", "admin_quota", adminHandler.QuotaStatus, http.MethodGet)
	route(admin, "/system", "admin_system", adminHandler.SystemStatus, http.MethodGet)
	route(admin, "/sweep", "admin_sweep", adminHandler.Sweep, http.MethodPost)

	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}

// NewHandler wraps the router with CORS, panic recovery, access logging,
// the request logger and OpenTelemetry spans, outermost last.
func NewHandler(d Deps) http.Handler {
	var h http.Handler = NewRouter(d)
	h = middleware.RequestLogger(h)
	h = handlers.CORS(
		handlers.AllowedOrigins(d.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.RequestIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.LoggingHandler(os.Stdout, h)
	return otelhttp.NewHandler(h, "api")
}
