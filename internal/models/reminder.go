package models

import (
	"fmt"
	"time"
)

// ReminderSchedule is an administration-managed offset before slot start at
// which a reminder is dispatched.
type ReminderSchedule struct {
	ID            int64     `json:"id"`
	Label         string    `json:"label"`
	MinutesBefore int64     `json:"minutes_before"`
	IsActive      bool      `json:"is_active"`
	SortOrder     int64     `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReminderMinutes converts a {value, unit} pair into minutes before slot start.
func ReminderMinutes(value int64, unit string) (int64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("reminder value must be positive, got %d", value)
	}
	switch unit {
	case ReminderUnitDay:
		return value * 1440, nil
	case ReminderUnitHour:
		return value * 60, nil
	case ReminderUnitMinute:
		return value, nil
	default:
		return 0, fmt.Errorf("unknown reminder unit %q", unit)
	}
}

// ReminderPayload is the normalized message handed to the notifier.
type ReminderPayload struct {
	BookingCode  string `json:"booking_code"`
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	Phone        string `json:"phone"`
	TurfName     string `json:"turf_name"`
	LocationName string `json:"location_name"`
	ServiceName  string `json:"service_name"`
	BookingDate  string `json:"booking_date"`
	TimeRange    string `json:"time_range"`
	Amount       int64  `json:"amount"`
}

// FormatTimeRange renders a contiguous-or-not hour set as "18:00 - 20:00".
// The end bound is one hour past the latest held hour.
func FormatTimeRange(hours []int) string {
	if len(hours) == 0 {
		return ""
	}
	min, max := hours[0], hours[0]
	for _, h := range hours[1:] {
		if h < min {
			min = h
		}
		if h > max {
			max = h
		}
	}
	return fmt.Sprintf("%02d:00 - %02d:00", min, max+1)
}
