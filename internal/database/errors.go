package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrSlotConflict означает, что хотя бы один запрошенный час уже занят
	ErrSlotConflict = errors.New("requested hour is already booked")

	// ErrPricingIncomplete означает отсутствие цены на запрошенный час
	ErrPricingIncomplete = errors.New("no price configured for requested hour")

	ErrEmptyHours       = errors.New("hours set is empty")
	ErrPastDate         = errors.New("booking date is in the past")
	ErrDateTooFar       = errors.New("booking date is too far in the future")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrVersionConflict  = errors.New("booking was modified concurrently")

	ErrTurfNotFound     = errors.New("turf not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrScheduleNotFound = errors.New("reminder schedule not found")

	// ErrDuplicateOrder означает повторное использование gateway_order_id
	ErrDuplicateOrder = errors.New("gateway order id already exists")

	// ErrBookingCancelled возвращается при попытке зачислить платеж на отмененную бронь
	ErrBookingCancelled = errors.New("booking is cancelled")

	// ErrDuplicateCode означает коллизию человекочитаемого кода брони
	ErrDuplicateCode = errors.New("booking code already exists")
)

// isUniqueViolation распознает нарушение уникального индекса SQLite.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
