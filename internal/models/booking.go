package models

import "time"

type Booking struct {
	ID             int64     `json:"id"`
	BookingCode    string    `json:"booking_code"`
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name"`
	Phone          string    `json:"phone"`
	TurfID         int64     `json:"turf_id"`
	TurfName       string    `json:"turf_name"`
	BookingDate    string    `json:"booking_date"` // YYYY-MM-DD, turf-local
	Hours          []int     `json:"hours"`
	TotalAmount    int64     `json:"total_amount"`
	AdvanceAmount  int64     `json:"advance_amount"`
	ReceivedAmount int64     `json:"received_amount"`
	PaymentStatus  string    `json:"payment_status"` // unpaid, partial, paid
	Status         string    `json:"status"`         // pending_payment, confirmed, completed, cancelled
	Gateway        string    `json:"gateway,omitempty"`
	GatewayOrderID string    `json:"gateway_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}

// BookingSlot is one held hour of a booking. Rows are written together with
// the parent booking and never change afterwards; cancellation flips Released
// so the partial unique index stops guarding the hour.
type BookingSlot struct {
	ID          int64  `json:"id"`
	BookingID   int64  `json:"booking_id"`
	TurfID      int64  `json:"turf_id"`
	BookingDate string `json:"booking_date"`
	Hour        int    `json:"hour"`
	Released    bool   `json:"released"`
}

// CanTransition reports whether a booking status change is allowed.
// cancelled and completed are terminal.
func CanTransition(from, to string) bool {
	switch from {
	case BookingStatusPendingPayment:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCompleted || to == BookingStatusCancelled
	default:
		return false
	}
}

// HoldsSlots reports whether a booking in the given status keeps its hours
// unavailable to others.
func HoldsSlots(status string) bool {
	return status == BookingStatusPendingPayment || status == BookingStatusConfirmed
}

// DerivePaymentStatus computes the parallel payment_status field from amounts.
func DerivePaymentStatus(received, total int64) string {
	switch {
	case received <= 0:
		return PaymentStatusUnpaid
	case received >= total:
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

// EarliestHour returns the first held hour, or -1 when no hours are set.
func (b *Booking) EarliestHour() int {
	if len(b.Hours) == 0 {
		return -1
	}
	min := b.Hours[0]
	for _, h := range b.Hours[1:] {
		if h < min {
			min = h
		}
	}
	return min
}

// LatestHour returns the last held hour, or -1 when no hours are set.
func (b *Booking) LatestHour() int {
	if len(b.Hours) == 0 {
		return -1
	}
	max := b.Hours[0]
	for _, h := range b.Hours[1:] {
		if h > max {
			max = h
		}
	}
	return max
}

// SlotStart converts the booking date plus the earliest held hour into a
// wall-clock time in the given location. Returns the zero time when the
// booking has no hours or the date does not parse.
func (b *Booking) SlotStart(loc *time.Location) time.Time {
	hour := b.EarliestHour()
	if hour < 0 {
		return time.Time{}
	}
	day, err := time.ParseInLocation("2006-01-02", b.BookingDate, loc)
	if err != nil {
		return time.Time{}
	}
	return day.Add(time.Duration(hour) * time.Hour)
}
