package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"turfbook/internal/database"
	"turfbook/internal/domain"
	"turfbook/internal/events"
	"turfbook/internal/metrics"
	"turfbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const codeRetryAttempts = 5

// ErrTurfNotAvailable возвращается при брони на закрытую площадку
var ErrTurfNotAvailable = errors.New("turf is not open for booking")

type BookingService struct {
	store          domain.BookingStore
	availability   *AvailabilityService
	eventBus       domain.EventPublisher
	maxBookingDays int
	loc            *time.Location
	logger         *zerolog.Logger
}

// CreateBookingRequest is the caller-facing shape of a new booking.
type CreateBookingRequest struct {
	UserID      int64
	UserName    string
	Phone       string
	TurfID      int64
	BookingDate string // YYYY-MM-DD
	Hours       []int
	PaymentPlan string // advance (default) or full
}

func NewBookingService(store domain.BookingStore, availability *AvailabilityService, eventBus domain.EventPublisher, maxBookingDays int, loc *time.Location, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	if loc == nil {
		loc = time.Local
	}
	return &BookingService{
		store:          store,
		availability:   availability,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		loc:            loc,
		logger:         logger,
	}
}

func (s *BookingService) ValidateBookingDate(date string) error {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return fmt.Errorf("invalid booking date %q: %w", date, err)
	}

	now := time.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	// Дата не должна быть в прошлом
	if day.Before(today) {
		return database.ErrPastDate
	}

	if day.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}

	return nil
}

// CreateBooking prices and persists a multi-hour booking atomically. Either
// every requested hour is held or nothing is written.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	hours, err := normalizeHours(req.Hours)
	if err != nil {
		return nil, err
	}

	if err := s.ValidateBookingDate(req.BookingDate); err != nil {
		return nil, err
	}

	turf, err := s.store.GetTurf(req.TurfID)
	if err != nil {
		return nil, err
	}
	// Закрытая площадка не отдает часы через resolver, бронь тоже закрыта
	if !turf.IsAvailable {
		return nil, ErrTurfNotAvailable
	}

	total, err := s.priceHours(ctx, req.TurfID, hours)
	if err != nil {
		return nil, err
	}

	plan := req.PaymentPlan
	if plan == "" {
		plan = models.PaymentPlanAdvance
	}

	var advance int64
	switch plan {
	case models.PaymentPlanAdvance:
		advance = int64(math.Round(models.AdvancePercent * float64(total)))
	case models.PaymentPlanFull:
		// Скидка за полную оплату; вся сумма становится первым платежом
		total -= int64(math.Round(models.FullPaymentDiscountPercent * float64(total)))
		advance = total
	default:
		return nil, fmt.Errorf("unknown payment plan %q", plan)
	}

	booking := &models.Booking{
		UserID:        req.UserID,
		UserName:      req.UserName,
		Phone:         req.Phone,
		TurfID:        turf.ID,
		TurfName:      turf.Name,
		BookingDate:   req.BookingDate,
		Hours:         hours,
		TotalAmount:   total,
		AdvanceAmount: advance,
		PaymentStatus: models.PaymentStatusUnpaid,
		Status:        models.BookingStatusPendingPayment,
	}

	for attempt := 0; attempt < codeRetryAttempts; attempt++ {
		booking.BookingCode = generateBookingCode()
		err = s.store.CreateBookingWithSlots(ctx, booking)
		if !errors.Is(err, database.ErrDuplicateCode) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCreated()
	if s.availability != nil {
		s.availability.Invalidate(ctx, booking.TurfID, booking.BookingDate)
	}
	s.publishEvent(events.EventBookingCreated, booking)

	s.logger.Info().
		Str("booking_code", booking.BookingCode).
		Int64("turf_id", booking.TurfID).
		Str("date", booking.BookingDate).
		Ints("hours", booking.Hours).
		Int64("total", booking.TotalAmount).
		Msg("booking created")

	return booking, nil
}

// CancelBooking releases the held hours. Terminal states cannot be cancelled.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, version int64) error {
	if err := s.store.TransitionBooking(ctx, bookingID, version, models.BookingStatusCancelled); err != nil {
		return err
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err == nil {
		if s.availability != nil {
			s.availability.Invalidate(ctx, booking.TurfID, booking.BookingDate)
		}
		s.publishEvent(events.EventBookingCancelled, booking)
	}

	return nil
}

// CompleteBooking marks a confirmed booking as played out.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID int64, version int64) error {
	if err := s.store.TransitionBooking(ctx, bookingID, version, models.BookingStatusCompleted); err != nil {
		return err
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err == nil {
		if s.availability != nil {
			s.availability.Invalidate(ctx, booking.TurfID, booking.BookingDate)
		}
		s.publishEvent(events.EventBookingCompleted, booking)
	}

	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	return s.store.GetBookingByCode(ctx, code)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.store.GetUserBookings(ctx, userID)
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	return s.store.GetBookingsByDateRange(ctx, start, end)
}

func (s *BookingService) priceHours(ctx context.Context, turfID int64, hours []int) (int64, error) {
	priced, err := s.store.GetPricedHours(ctx, turfID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, hour := range hours {
		price, ok := priced[hour]
		if !ok {
			return 0, database.ErrPricingIncomplete
		}
		total += price
	}
	return total, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		BookingCode:   booking.BookingCode,
		UserID:        booking.UserID,
		UserName:      booking.UserName,
		TurfID:        booking.TurfID,
		TurfName:      booking.TurfName,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		BookingDate:   booking.BookingDate,
		Hours:         booking.Hours,
		TotalAmount:   booking.TotalAmount,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

// normalizeHours sorts, deduplicates and range-checks requested hours.
func normalizeHours(raw []int) ([]int, error) {
	if len(raw) == 0 {
		return nil, database.ErrEmptyHours
	}

	seen := make(map[int]bool, len(raw))
	hours := make([]int, 0, len(raw))
	for _, h := range raw {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("hour %d out of range", h)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	sort.Ints(hours)
	return hours, nil
}

// generateBookingCode builds a short human-readable code like TRF-SX41K2-7F3A.
// Uniqueness is enforced by the database; callers retry on collision.
func generateBookingCode() string {
	token := strings.ToUpper(strconv.FormatInt(time.Now().Unix(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", models.BookingCodePrefix, token, suffix)
}
