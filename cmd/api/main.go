// Entry point for REST API
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance.service/internal/adapters/geocoder"
	"attendance.service/internal/api"
	"attendance.service/internal/api/handler"
	"attendance.service/internal/cache"
	"attendance.service/internal/config"
	"attendance.service/internal/core"
	"attendance.service/internal/gateway"
	"attendance.service/internal/ports/geocoding"
	"attendance.service/internal/ratelimit"
	"attendance.service/internal/worker/sweeper"
	"attendance.service/pkg/besteffort"
	"attendance.service/pkg/clock"
	"attendance.service/pkg/logger"
	"attendance.service/pkg/metrics"
	"attendance.service/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	// Configure structured logging
	logger.Setup(cfg.IsLocalDev)

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, cfg.OTELEndpoint, cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Error opening store")
	}
	defer closeStore()

	notifier, closeNotifier, err := newNotifier(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("notifier", cfg.Notifier).Msg("Error creating notifier")
	}
	defer closeNotifier()

	// Initialize dependencies
	clk := clock.System{}
	m := metrics.New()
	limiter := ratelimit.New(cfg.Limits(), clk, m)
	dataCache := cache.New(clk, cfg.TTLs(), append(cfg.CacheOptions(), cache.WithObserver(m))...)
	gw := gateway.New(store, dataCache, limiter,
		gateway.WithRecorder(m),
		gateway.WithEmergencyAfter(cfg.EmergencyAfter),
	)
	tasks := besteffort.New(10 * time.Second)
	var geo geocoding.Geocoder = geocoding.Nop{}
	if cfg.GeocoderURL != "" {
		geo = geocoder.New(cfg.GeocoderURL, cfg.GeocoderUserAgent)
	}
	service := core.NewAttendanceService(gw, geo, notifier, tasks, clk, cfg.Location())

	go limiter.Run(ctx)

	var sweep handler.Sweeper
	if cfg.AutoCheckoutEnabled {
		opts := []sweeper.Option{sweeper.WithRecorder(m)}
		mailer, err := newSummaryMailer(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating summary mailer")
		}
		if mailer != nil {
			opts = append(opts, sweeper.WithMailer(mailer))
		}
		sw := sweeper.New(service, clk, sweeper.Config{
			Hour:     cfg.AutoCheckoutHour,
			Minute:   cfg.AutoCheckoutMinute,
			Exempt:   cfg.AutoCheckoutExempt,
			Location: cfg.Location(),
		}, opts...)
		go sw.Start(ctx)
		sweep = sw
	}

	if cfg.AdminJWTSecret == "" {
		log.Warn().Msg("ADMIN_JWT_SECRET is empty; admin routes will reject every request")
	}

	// Setup router and server
	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: api.NewHandler(api.Deps{
			Attendance:     service,
			Admin:          service,
			Sweeper:        sweep,
			Metrics:        m,
			AdminSecret:    cfg.AdminJWTSecret,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("store", cfg.Store).Msg("API Service starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Stop the sweeper and the burst reset loop
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight notifications finish
	tasks.Wait()

	log.Info().Msg("Server exiting")
}
