package notifier

import (
	"context"

	"turfbook/internal/models"

	"github.com/rs/zerolog"
)

// LogNotifier writes reminders to the log. Stands in for Telegram in
// environments without a bot token.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendReminder(ctx context.Context, payload *models.ReminderPayload) error {
	n.logger.Info().
		Str("booking_code", payload.BookingCode).
		Int64("user_id", payload.UserID).
		Str("turf", payload.TurfName).
		Str("date", payload.BookingDate).
		Str("time_range", payload.TimeRange).
		Msg("reminder (log only)")
	return nil
}
