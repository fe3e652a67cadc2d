package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turfbook/internal/models"
)

const bookingColumns = `id, booking_code, user_id, user_name, phone, turf_id, turf_name,
        booking_date, total_amount, advance_amount, received_amount, payment_status,
        status, gateway, gateway_order_id, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var gateway, orderID sql.NullString
	err := row.Scan(
		&b.ID, &b.BookingCode, &b.UserID, &b.UserName, &b.Phone, &b.TurfID, &b.TurfName,
		&b.BookingDate, &b.TotalAmount, &b.AdvanceAmount, &b.ReceivedAmount, &b.PaymentStatus,
		&b.Status, &gateway, &orderID, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Gateway = gateway.String
	b.GatewayOrderID = orderID.String
	return &b, nil
}

// CreateBookingWithSlots вставляет бронь и все её часы одной транзакцией.
// Конфликт по часу ловится дважды: предварительным просмотром занятых часов
// и уникальным индексом на живых слотах. Решает индекс.
func (db *DB) CreateBookingWithSlots(ctx context.Context, booking *models.Booking) error {
	if len(booking.Hours) == 0 {
		return ErrEmptyHours
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
        INSERT INTO bookings (
            booking_code, user_id, user_name, phone, turf_id, turf_name,
            booking_date, total_amount, advance_amount, received_amount,
            payment_status, status, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, 1)`,
		booking.BookingCode, booking.UserID, booking.UserName, booking.Phone,
		booking.TurfID, booking.TurfName, booking.BookingDate,
		booking.TotalAmount, booking.AdvanceAmount,
		models.PaymentStatusUnpaid, models.BookingStatusPendingPayment,
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get booking id: %w", err)
	}

	for _, hour := range booking.Hours {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO booking_slots (booking_id, turf_id, booking_date, hour, released)
            VALUES (?, ?, ?, ?, 0)`,
			id, booking.TurfID, booking.BookingDate, hour,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrSlotConflict
			}
			return fmt.Errorf("failed to insert slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.ReceivedAmount = 0
	booking.PaymentStatus = models.PaymentStatusUnpaid
	booking.Status = models.BookingStatusPendingPayment
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// GetHeldHours возвращает часы, занятые живыми бронями на дату.
func (db *DB) GetHeldHours(ctx context.Context, turfID int64, date string) ([]int, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT hour FROM booking_slots
        WHERE turf_id = ? AND booking_date = ? AND released = 0`,
		turfID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load held hours: %w", err)
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadHours(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (db *DB) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ?`, code)
	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadHours(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (db *DB) loadHours(ctx context.Context, booking *models.Booking) error {
	rows, err := db.db.QueryContext(ctx, `
        SELECT hour FROM booking_slots WHERE booking_id = ? ORDER BY hour`,
		booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load booking hours: %w", err)
	}
	defer rows.Close()

	booking.Hours = booking.Hours[:0]
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return err
		}
		booking.Hours = append(booking.Hours, h)
	}
	return rows.Err()
}

// TransitionBooking переводит бронь в новый статус с оптимистичной блокировкой.
// Отмена и завершение освобождают часы в той же транзакции.
func (db *DB) TransitionBooking(ctx context.Context, id int64, version int64, to string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}

	if !models.CanTransition(current, to) {
		return ErrInvalidTransition
	}

	result, err := tx.ExecContext(ctx, `
        UPDATE bookings SET status = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`,
		to, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	if !models.HoldsSlots(to) {
		if _, err := tx.ExecContext(ctx, `
            UPDATE booking_slots SET released = 1 WHERE booking_id = ?`, id); err != nil {
			return fmt.Errorf("failed to release slots: %w", err)
		}
	}

	return tx.Commit()
}

// SetBookingOrder привязывает шлюз и идентификатор заказа к брони.
func (db *DB) SetBookingOrder(ctx context.Context, id int64, gateway, orderID string) error {
	result, err := db.db.ExecContext(ctx, `
        UPDATE bookings SET gateway = ?, gateway_order_id = ?, updated_at = ?
        WHERE id = ?`,
		gateway, orderID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set booking order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetBookingsByDate возвращает брони площадки на дату (любой статус).
func (db *DB) GetBookingsByDate(ctx context.Context, turfID int64, date string) ([]*models.Booking, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE turf_id = ? AND booking_date = ? ORDER BY created_at`,
		turfID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	defer rows.Close()

	return db.collectBookings(ctx, rows)
}

// GetConfirmedBookingsByDateRange возвращает подтвержденные брони в диапазоне дат.
// Диапазон включительный, даты в формате YYYY-MM-DD.
func (db *DB) GetConfirmedBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE status = ? AND booking_date BETWEEN ? AND ?
         ORDER BY booking_date, created_at`,
		models.BookingStatusConfirmed, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed bookings: %w", err)
	}
	defer rows.Close()

	return db.collectBookings(ctx, rows)
}

// GetBookingsByDateRange возвращает все брони в диапазоне дат для отчетов.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booking_date BETWEEN ? AND ?
         ORDER BY booking_date, created_at`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	defer rows.Close()

	return db.collectBookings(ctx, rows)
}

// GetUserBookings возвращает брони пользователя, свежие первыми.
func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user bookings: %w", err)
	}
	defer rows.Close()

	return db.collectBookings(ctx, rows)
}

func (db *DB) collectBookings(ctx context.Context, rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, booking := range bookings {
		if err := db.loadHours(ctx, booking); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}
