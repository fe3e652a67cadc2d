package database

import (
	"context"
	"testing"

	"turfbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(code string, turfID int64, date string, hours []int, total, advance int64) *models.Booking {
	return &models.Booking{
		BookingCode:   code,
		UserID:        7,
		UserName:      "Arjun",
		Phone:         "+911234567890",
		TurfID:        turfID,
		TurfName:      "Turf A",
		BookingDate:   date,
		Hours:         hours,
		TotalAmount:   total,
		AdvanceAmount: advance,
	}
}

func TestCreateBookingWithSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{18: 500, 19: 500})

	booking := newBooking("TRF-1", 1, "2026-09-15", []int{18, 19}, 1000, 300)
	require.NoError(t, db.CreateBookingWithSlots(ctx, booking))

	assert.NotZero(t, booking.ID)
	assert.Equal(t, models.BookingStatusPendingPayment, booking.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, booking.PaymentStatus)
	assert.Equal(t, int64(1), booking.Version)

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{18, 19}, loaded.Hours)
	assert.Equal(t, int64(1000), loaded.TotalAmount)

	byCode, err := db.GetBookingByCode(ctx, "TRF-1")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byCode.ID)

	held, err := db.GetHeldHours(ctx, 1, "2026-09-15")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{18, 19}, held)
}

func TestCreateBookingSlotConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{10: 400, 11: 400})

	first := newBooking("TRF-1", 1, "2026-09-15", []int{10, 11}, 800, 240)
	require.NoError(t, db.CreateBookingWithSlots(ctx, first))

	// Пересечение в один час валит всю вставку
	second := newBooking("TRF-2", 1, "2026-09-15", []int{11, 12}, 800, 240)
	err := db.CreateBookingWithSlots(ctx, second)
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Частичного коммита нет: час 12 остался свободен
	held, err := db.GetHeldHours(ctx, 1, "2026-09-15")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{10, 11}, held)

	// Тот же час на другую дату свободен
	otherDate := newBooking("TRF-3", 1, "2026-09-16", []int{10}, 400, 120)
	assert.NoError(t, db.CreateBookingWithSlots(ctx, otherDate))
}

func TestCreateBookingValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.CreateBookingWithSlots(ctx, newBooking("TRF-1", 1, "2026-09-15", nil, 0, 0))
	assert.ErrorIs(t, err, ErrEmptyHours)

	first := newBooking("TRF-1", 1, "2026-09-15", []int{9}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, first))

	dup := newBooking("TRF-1", 1, "2026-09-16", []int{9}, 400, 120)
	err = db.CreateBookingWithSlots(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestTransitionBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{10: 400})

	booking := newBooking("TRF-1", 1, "2026-09-15", []int{10}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, booking))

	// pending_payment -> completed запрещен
	err := db.TransitionBooking(ctx, booking.ID, booking.Version, models.BookingStatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, db.TransitionBooking(ctx, booking.ID, booking.Version, models.BookingStatusConfirmed))

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, loaded.Status)
	assert.Equal(t, int64(2), loaded.Version)

	// Устаревшая версия отклоняется
	err = db.TransitionBooking(ctx, booking.ID, 1, models.BookingStatusCancelled)
	assert.ErrorIs(t, err, ErrVersionConflict)

	require.NoError(t, db.TransitionBooking(ctx, booking.ID, loaded.Version, models.BookingStatusCancelled))

	// Отмена освобождает часы
	held, err := db.GetHeldHours(ctx, 1, "2026-09-15")
	require.NoError(t, err)
	assert.Empty(t, held)

	// Терминальный статус не оживает
	loaded, err = db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	err = db.TransitionBooking(ctx, booking.ID, loaded.Version, models.BookingStatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelledBookingFreesHourForOthers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{10: 400})

	booking := newBooking("TRF-1", 1, "2026-09-15", []int{10}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, booking))
	require.NoError(t, db.TransitionBooking(ctx, booking.ID, booking.Version, models.BookingStatusCancelled))

	rebook := newBooking("TRF-2", 1, "2026-09-15", []int{10}, 400, 120)
	assert.NoError(t, db.CreateBookingWithSlots(ctx, rebook))
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{10: 400, 11: 400})

	b1 := newBooking("TRF-1", 1, "2026-09-15", []int{10}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, b1))
	b2 := newBooking("TRF-2", 1, "2026-09-16", []int{11}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, b2))
	require.NoError(t, db.TransitionBooking(ctx, b2.ID, b2.Version, models.BookingStatusConfirmed))

	all, err := db.GetBookingsByDateRange(ctx, "2026-09-15", "2026-09-16")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := db.GetConfirmedBookingsByDateRange(ctx, "2026-09-15", "2026-09-16")
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, b2.ID, confirmed[0].ID)
	assert.Equal(t, []int{11}, confirmed[0].Hours)

	mine, err := db.GetUserBookings(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestSetBookingOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{10: 400})

	booking := newBooking("TRF-1", 1, "2026-09-15", []int{10}, 400, 120)
	require.NoError(t, db.CreateBookingWithSlots(ctx, booking))

	require.NoError(t, db.SetBookingOrder(ctx, booking.ID, models.GatewayRazorpay, "order_123"))

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayRazorpay, loaded.Gateway)
	assert.Equal(t, "order_123", loaded.GatewayOrderID)

	err = db.SetBookingOrder(ctx, 999, models.GatewayRazorpay, "order_456")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
