package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turfbook/internal/models"
)

const paymentColumns = `id, booking_id, amount, payment_type, gateway,
        gateway_order_id, gateway_payment_id, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	var paymentID sql.NullString
	err := row.Scan(
		&p.ID, &p.BookingID, &p.Amount, &p.PaymentType, &p.Gateway,
		&p.GatewayOrderID, &paymentID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.GatewayPaymentID = paymentID.String
	return &p, nil
}

// CreatePayment регистрирует платежную попытку со статусом pending.
func (db *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	now := time.Now()
	result, err := db.db.ExecContext(ctx, `
        INSERT INTO payments (
            booking_id, amount, payment_type, gateway, gateway_order_id,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.BookingID, payment.Amount, payment.PaymentType, payment.Gateway,
		payment.GatewayOrderID, models.PaymentAttemptPending, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment id: %w", err)
	}
	payment.ID = id
	payment.Status = models.PaymentAttemptPending
	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

func (db *DB) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = ?`, orderID)
	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	return payment, err
}

func (db *DB) GetBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
         WHERE booking_id = ? ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaymentFailed переводит pending-платеж в failed. Успешные не трогает.
func (db *DB) MarkPaymentFailed(ctx context.Context, orderID string) error {
	_, err := db.db.ExecContext(ctx, `
        UPDATE payments SET status = ?, updated_at = ?
        WHERE gateway_order_id = ? AND status = ?`,
		models.PaymentAttemptFailed, time.Now(), orderID, models.PaymentAttemptPending)
	return err
}

// ApplySuccessfulPayment зачисляет успешный платеж на бронь одной транзакцией.
//
// Возвращает (booking, true, nil) при первом зачислении. Повторная доставка
// того же вебхука дает (nil, false, nil): условный UPDATE не трогает строку
// со статусом success, и кредит не применяется второй раз. Зачисление на
// отмененную бронь откатывается целиком и возвращает ErrBookingCancelled.
func (db *DB) ApplySuccessfulPayment(ctx context.Context, orderID, gatewayPaymentID string) (*models.Booking, bool, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = ?`, orderID)
	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, false, ErrPaymentNotFound
	}
	if err != nil {
		return nil, false, err
	}

	// Защита от дублей: success не перезаписывается. Failed может стать
	// success: шлюз шлет payment.failed за неудачную попытку на заказе,
	// а потом captured за удачную на том же заказе
	result, err := tx.ExecContext(ctx, `
        UPDATE payments SET status = ?, gateway_payment_id = ?, updated_at = ?
        WHERE gateway_order_id = ? AND status != ?`,
		models.PaymentAttemptSuccess, gatewayPaymentID, time.Now(),
		orderID, models.PaymentAttemptSuccess)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark payment success: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		return nil, false, nil
	}

	bookingRow := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, payment.BookingID)
	booking, err := scanBooking(bookingRow)
	if err == sql.ErrNoRows {
		return nil, false, ErrBookingNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if booking.Status == models.BookingStatusCancelled {
		// Вся транзакция откатывается, платеж остается pending
		return nil, false, ErrBookingCancelled
	}

	// Сумма берется из строки платежа, не из тела вебхука
	newReceived := booking.ReceivedAmount + payment.Amount
	paymentStatus := models.DerivePaymentStatus(newReceived, booking.TotalAmount)
	status := booking.Status
	if status == models.BookingStatusPendingPayment {
		status = models.BookingStatusConfirmed
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE bookings SET received_amount = ?, payment_status = ?, status = ?,
            updated_at = ?, version = version + 1
        WHERE id = ?`,
		newReceived, paymentStatus, status, time.Now(), booking.ID,
	); err != nil {
		return nil, false, fmt.Errorf("failed to credit booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit payment application: %w", err)
	}

	booking.ReceivedAmount = newReceived
	booking.PaymentStatus = paymentStatus
	booking.Status = status
	booking.Version++
	if err := db.loadHours(ctx, booking); err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

// ListPendingPaymentsBefore возвращает pending-платежи старше порога
// для фоновой сверки со шлюзом.
func (db *DB) ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Payment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
         WHERE status = ? AND created_at < ? ORDER BY created_at`,
		models.PaymentAttemptPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// RecomputeReceived пересчитывает received_amount как сумму успешных платежей.
// Компенсация на случай сбоя между записью платежа и обновлением брони.
func (db *DB) RecomputeReceived(ctx context.Context, bookingID int64) (*models.Booking, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var sum int64
	err = tx.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(amount), 0) FROM payments
        WHERE booking_id = ? AND status = ?`,
		bookingID, models.PaymentAttemptSuccess).Scan(&sum)
	if err != nil {
		return nil, err
	}

	bookingRow := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
	booking, err := scanBooking(bookingRow)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if booking.ReceivedAmount == sum {
		return booking, tx.Commit()
	}

	paymentStatus := models.DerivePaymentStatus(sum, booking.TotalAmount)
	if _, err := tx.ExecContext(ctx, `
        UPDATE bookings SET received_amount = ?, payment_status = ?,
            updated_at = ?, version = version + 1
        WHERE id = ?`,
		sum, paymentStatus, time.Now(), bookingID,
	); err != nil {
		return nil, fmt.Errorf("failed to recompute received amount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	booking.ReceivedAmount = sum
	booking.PaymentStatus = paymentStatus
	booking.Version++
	return booking, nil
}
