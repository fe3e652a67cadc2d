package domain

import (
	"context"
	"time"

	"turfbook/internal/models"
)

// BookingStore covers turf/pricing reads and booking writes used by the
// availability resolver and booking orchestration.
type BookingStore interface {
	GetTurf(id int64) (*models.Turf, error)
	GetTurfs() []*models.Turf
	GetPricedHours(ctx context.Context, turfID int64) (map[int]int64, error)
	GetHeldHours(ctx context.Context, turfID int64, date string) ([]int, error)
	CreateBookingWithSlots(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*models.Booking, error)
	TransitionBooking(ctx context.Context, id int64, version int64, to string) error
	GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
	GetConfirmedBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
}

// PaymentStore covers the payment attempt lifecycle and the transactional
// credit application used by webhook reconciliation.
type PaymentStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	GetBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error)
	MarkPaymentFailed(ctx context.Context, orderID string) error
	ApplySuccessfulPayment(ctx context.Context, orderID, gatewayPaymentID string) (*models.Booking, bool, error)
	ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Payment, error)
	RecomputeReceived(ctx context.Context, bookingID int64) (*models.Booking, error)
	SetBookingOrder(ctx context.Context, id int64, gateway, orderID string) error
}

// ReminderStore covers schedule definitions and sent markers.
type ReminderStore interface {
	GetTurf(id int64) (*models.Turf, error)
	GetConfirmedBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
	ListReminderSchedules(ctx context.Context, activeOnly bool) ([]*models.ReminderSchedule, error)
	GetReminderSchedule(ctx context.Context, id int64) (*models.ReminderSchedule, error)
	CreateReminderSchedule(ctx context.Context, schedule *models.ReminderSchedule) error
	UpdateReminderSchedule(ctx context.Context, schedule *models.ReminderSchedule) error
	DeleteReminderSchedule(ctx context.Context, id int64) error
	ToggleReminderSchedule(ctx context.Context, id int64, active bool) error
	WasReminderSent(ctx context.Context, bookingID, scheduleID int64) (bool, error)
	MarkReminderSent(ctx context.Context, bookingID, scheduleID int64) (bool, error)
}

// Notifier delivers a reminder to the customer. The wire protocol to the
// messaging provider lives entirely behind this interface.
type Notifier interface {
	SendReminder(ctx context.Context, payload *models.ReminderPayload) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CacheRepository кэширует ответы доступности и ограничивает частоту
// обращений к вебхук-эндпоинтам.
type CacheRepository interface {
	GetAvailability(ctx context.Context, turfID int64, date string) ([]int, bool, error)
	SetAvailability(ctx context.Context, turfID int64, date string, hours []int) error
	InvalidateAvailability(ctx context.Context, turfID int64, date string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
