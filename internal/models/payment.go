package models

import "time"

// Payment is one gateway payment attempt. A booking can hold several rows
// (retries, balance top-ups); gateway_order_id is unique per attempt.
type Payment struct {
	ID               int64     `json:"id"`
	BookingID        int64     `json:"booking_id"`
	Amount           int64     `json:"amount"`
	PaymentType      string    `json:"payment_type"` // advance, full
	Gateway          string    `json:"gateway"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Status           string    `json:"status"` // pending, success, failed
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
