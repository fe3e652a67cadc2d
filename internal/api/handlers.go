package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"turfbook/internal/database"
	"turfbook/internal/export"
	"turfbook/internal/gateway"
	"turfbook/internal/metrics"
	"turfbook/internal/models"
	"turfbook/internal/service"
)

const maxWebhookBody = 1 << 20 // 1 MiB

func (s *HTTPServer) handleTurfs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("turfs")

	writeJSON(w, http.StatusOK, map[string]any{"turfs": s.availability.Turfs()})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("availability")

	const prefix = "/api/v1/availability/"
	rawID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if rawID == "" || strings.Contains(rawID, "/") {
		writeError(w, http.StatusBadRequest, "turf_id is required")
		return
	}
	turfID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid turf_id")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	hours, err := s.availability.AvailableHours(r.Context(), turfID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve availability")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"turf_id": turfID,
		"date":    date,
		"hours":   hours,
	})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createBooking(w, r)
	case http.MethodGet:
		s.listUserBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_create")

	var body struct {
		UserID      int64  `json:"user_id"`
		UserName    string `json:"user_name"`
		Phone       string `json:"phone"`
		TurfID      int64  `json:"turf_id"`
		BookingDate string `json:"booking_date"`
		Hours       []int  `json:"hours"`
		PaymentPlan string `json:"payment_plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), service.CreateBookingRequest{
		UserID:      body.UserID,
		UserName:    body.UserName,
		Phone:       body.Phone,
		TurfID:      body.TurfID,
		BookingDate: body.BookingDate,
		Hours:       body.Hours,
		PaymentPlan: body.PaymentPlan,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) listUserBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_list")

	rawUser := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if rawUser == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	bookings, err := s.bookings.GetUserBookings(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleBookingByPath routes /api/v1/bookings/{id}[/action].
// A non-numeric id is treated as a booking code.
func (s *HTTPServer) handleBookingByPath(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		// Коды бронирования вида TRF-...: только чтение
		if r.Method == http.MethodGet && len(parts) == 1 {
			s.getBookingByCode(w, r, parts[0])
			return
		}
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getBooking(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.transitionBooking(w, r, id, models.BookingStatusCancelled)
	case action == "complete" && r.Method == http.MethodPost:
		s.transitionBooking(w, r, id, models.BookingStatusCompleted)
	case action == "order" && r.Method == http.MethodPost:
		s.createOrder(w, r, id)
	case action == "payments" && r.Method == http.MethodGet:
		s.listBookingPayments(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("bookings_get")

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) getBookingByCode(w http.ResponseWriter, r *http.Request, code string) {
	metrics.IncHTTP("bookings_get")

	booking, err := s.bookings.GetBookingByCode(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) transitionBooking(w http.ResponseWriter, r *http.Request, id int64, to string) {
	metrics.IncHTTP("bookings_transition")

	var body struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var err error
	if to == models.BookingStatusCancelled {
		err = s.bookings.CancelBooking(r.Context(), id, body.Version)
	} else {
		err = s.bookings.CompleteBooking(r.Context(), id, body.Version)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) createOrder(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("orders_create")

	var body struct {
		UserID  int64  `json:"user_id"`
		Gateway string `json:"gateway"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payment, order, err := s.payments.CreateOrder(r.Context(), id, body.UserID, body.Gateway)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":     order.OrderID,
		"amount":       order.Amount,
		"currency":     order.Currency,
		"checkout_url": order.CheckoutURL,
		"gateway":      payment.Gateway,
		"payment_type": payment.PaymentType,
	})
}

func (s *HTTPServer) listBookingPayments(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("payments_list")

	payments, err := s.payments.GetBookingPayments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// handleWebhook receives gateway callbacks at /api/v1/webhooks/{gateway}.
// The endpoint is unauthenticated (gateways sign instead) but rate limited.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("webhook")

	gatewayName := strings.TrimPrefix(r.URL.Path, "/api/v1/webhooks/")
	if gatewayName == "" || strings.Contains(gatewayName, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if s.cache != nil {
		allowed, err := s.cache.CheckRateLimit(r.Context(), "webhook:"+gatewayName,
			models.RateLimitWebhooks, models.RateLimitWindow*time.Second)
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	// Razorpay и Cashfree подписывают запросы разными заголовками
	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" {
		signature = r.Header.Get("x-webhook-signature")
	}
	timestamp := r.Header.Get("x-webhook-timestamp")

	result, err := s.payments.Reconcile(r.Context(), gatewayName, raw, signature, timestamp)
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	case err != nil && result != nil && result.Outcome == service.ReconcileRejected:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"outcome":  result.Outcome,
	})
}

func (s *HTTPServer) handleDispatchReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("reminders_dispatch")

	report, err := s.reminders.Dispatch(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("schedules_list")
		schedules, err := s.reminders.ListSchedules(r.Context(), false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list schedules")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
	case http.MethodPost:
		metrics.IncHTTP("schedules_create")
		var body struct {
			Label     string `json:"label"`
			Value     int64  `json:"value"`
			Unit      string `json:"unit"`
			SortOrder int64  `json:"sort_order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		schedule, err := s.reminders.CreateSchedule(r.Context(), body.Label, body.Value, body.Unit, body.SortOrder)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, schedule)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleScheduleByPath(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, "/api/v1/reminder-schedules/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		metrics.IncHTTP("schedules_update")
		var body struct {
			Label     string `json:"label"`
			Value     int64  `json:"value"`
			Unit      string `json:"unit"`
			SortOrder int64  `json:"sort_order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		schedule, err := s.reminders.UpdateSchedule(r.Context(), id, body.Label, body.Value, body.Unit, body.SortOrder)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
	case http.MethodPatch:
		metrics.IncHTTP("schedules_toggle")
		var body struct {
			Active bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.reminders.ToggleSchedule(r.Context(), id, body.Active); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case http.MethodDelete:
		metrics.IncHTTP("schedules_delete")
		if err := s.reminders.DeleteSchedule(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export")

	start := strings.TrimSpace(r.URL.Query().Get("start"))
	end := strings.TrimSpace(r.URL.Query().Get("end"))
	if start == "" || end == "" {
		start, end = export.DefaultRange(7)
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	path, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

// writeDomainError maps sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrTurfNotFound),
		errors.Is(err, database.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrSlotConflict),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, service.ErrBookingNotPayable),
		errors.Is(err, service.ErrTurfNotAvailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotBookingOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrEmptyHours),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, database.ErrPricingIncomplete),
		errors.Is(err, service.ErrNothingToPay),
		errors.Is(err, gateway.ErrUnknownGateway):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrGatewayMisconfigured),
		errors.Is(err, gateway.ErrGatewayRequestFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
