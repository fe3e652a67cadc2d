package database

import (
	"context"
	"testing"
	"time"

	"turfbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBookingWithPayment(t *testing.T, db *DB, orderID string, amount int64) *models.Booking {
	ctx := context.Background()
	seedTurf(t, db, 1, map[int]int64{18: 500, 19: 500})

	booking := newBooking("TRF-"+orderID, 1, "2026-09-15", []int{18, 19}, 1000, 300)
	require.NoError(t, db.CreateBookingWithSlots(ctx, booking))
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		BookingID:      booking.ID,
		Amount:         amount,
		PaymentType:    models.PaymentTypeAdvance,
		Gateway:        models.GatewayRazorpay,
		GatewayOrderID: orderID,
	}))
	return booking
}

func TestCreatePaymentDuplicateOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	err := db.CreatePayment(ctx, &models.Payment{
		BookingID:      booking.ID,
		Amount:         300,
		PaymentType:    models.PaymentTypeAdvance,
		Gateway:        models.GatewayRazorpay,
		GatewayOrderID: "order_1",
	})
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestApplySuccessfulPayment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	updated, applied, err := db.ApplySuccessfulPayment(ctx, "order_1", "pay_1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(300), updated.ReceivedAmount)
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)

	payment, err := db.GetPaymentByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptSuccess, payment.Status)
	assert.Equal(t, "pay_1", payment.GatewayPaymentID)

	// Повторная доставка не меняет состояние
	second, applied, err := db.ApplySuccessfulPayment(ctx, "order_1", "pay_1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, second)

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), loaded.ReceivedAmount)

	// Второй платеж докрывает остаток
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		BookingID:      booking.ID,
		Amount:         700,
		PaymentType:    models.PaymentTypeFull,
		Gateway:        models.GatewayRazorpay,
		GatewayOrderID: "order_2",
	}))
	updated, applied, err = db.ApplySuccessfulPayment(ctx, "order_2", "pay_2")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1000), updated.ReceivedAmount)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)
}

func TestApplyPaymentUnknownOrder(t *testing.T) {
	db := setupTestDB(t)
	_, applied, err := db.ApplySuccessfulPayment(context.Background(), "order_missing", "pay_x")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.False(t, applied)
}

func TestApplyPaymentCancelledBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	require.NoError(t, db.TransitionBooking(ctx, booking.ID, booking.Version, models.BookingStatusCancelled))

	_, applied, err := db.ApplySuccessfulPayment(ctx, "order_1", "pay_1")
	assert.ErrorIs(t, err, ErrBookingCancelled)
	assert.False(t, applied)

	// Откат: платеж остался pending, бронь не ожила
	payment, err := db.GetPaymentByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptPending, payment.Status)

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, loaded.Status)
	assert.Equal(t, int64(0), loaded.ReceivedAmount)
}

func TestMarkPaymentFailed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	require.NoError(t, db.MarkPaymentFailed(ctx, "order_1"))
	payment, err := db.GetPaymentByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptFailed, payment.Status)

	// Успешный платеж в failed не переводится
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		BookingID:      booking.ID,
		Amount:         700,
		PaymentType:    models.PaymentTypeFull,
		Gateway:        models.GatewayRazorpay,
		GatewayOrderID: "order_2",
	}))
	_, applied, err := db.ApplySuccessfulPayment(ctx, "order_2", "pay_2")
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, db.MarkPaymentFailed(ctx, "order_2"))
	payment, err = db.GetPaymentByOrderID(ctx, "order_2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptSuccess, payment.Status)
}

func TestFailedAttemptStillCredits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	// Шлюз прислал failed за неудачную попытку, потом captured за удачную
	// на том же заказе. Кредит не должен теряться
	require.NoError(t, db.MarkPaymentFailed(ctx, "order_1"))

	updated, applied, err := db.ApplySuccessfulPayment(ctx, "order_1", "pay_retry")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(300), updated.ReceivedAmount)
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)

	loaded, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), loaded.ReceivedAmount)
}

func TestListPendingPaymentsBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBookingWithPayment(t, db, "order_1", 300)

	pending, err := db.ListPendingPaymentsBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "order_1", pending[0].GatewayOrderID)

	pending, err = db.ListPendingPaymentsBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecomputeReceived(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	booking := seedBookingWithPayment(t, db, "order_1", 300)

	_, applied, err := db.ApplySuccessfulPayment(ctx, "order_1", "pay_1")
	require.NoError(t, err)
	require.True(t, applied)

	// Сумма сходится, пересчет ничего не меняет
	recomputed, err := db.RecomputeReceived(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), recomputed.ReceivedAmount)
	assert.Equal(t, models.PaymentStatusPartial, recomputed.PaymentStatus)
}
