package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"turfbook/internal/config"
	"turfbook/internal/domain"
	"turfbook/internal/export"
	"turfbook/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking engine over a JSON API.
type HTTPServer struct {
	cfg          config.APIConfig
	availability *service.AvailabilityService
	bookings     *service.BookingService
	payments     *service.PaymentService
	reminders    *service.ReminderService
	exporter     *export.Exporter
	cache        domain.CacheRepository
	logger       *zerolog.Logger
	server       *http.Server
	auth         *HTTPAuth
}

func NewHTTPServer(
	cfg config.APIConfig,
	availability *service.AvailabilityService,
	bookings *service.BookingService,
	payments *service.PaymentService,
	reminders *service.ReminderService,
	exporter *export.Exporter,
	cache domain.CacheRepository,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		availability: availability,
		bookings:     bookings,
		payments:     payments,
		reminders:    reminders,
		exporter:     exporter,
		cache:        cache,
		logger:       logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/turfs", srv.handleTurfs)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByPath)
	mux.HandleFunc("/api/v1/webhooks/", srv.handleWebhook)
	mux.HandleFunc("/api/v1/reminders/dispatch", srv.handleDispatchReminders)
	mux.HandleFunc("/api/v1/reminder-schedules", srv.handleSchedules)
	mux.HandleFunc("/api/v1/reminder-schedules/", srv.handleScheduleByPath)
	mux.HandleFunc("/api/v1/exports/bookings", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the routed handler; used directly in tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
