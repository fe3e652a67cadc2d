package notifier

import (
	"context"
	"fmt"

	"turfbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the narrow slice of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers booking reminders as Telegram messages. The
// booking's user ID doubles as the chat ID.
type TelegramNotifier struct {
	bot TelegramSender
}

func NewTelegramNotifier(bot TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

func (n *TelegramNotifier) SendReminder(ctx context.Context, payload *models.ReminderPayload) error {
	msg := tgbotapi.NewMessage(payload.UserID, FormatReminder(payload))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram reminder: %w", err)
	}
	return nil
}

// FormatReminder renders the reminder text shared by all notifier backends.
func FormatReminder(p *models.ReminderPayload) string {
	text := fmt.Sprintf(
		"⏰ *Booking reminder*\n\n"+
			"Code: `%s`\n"+
			"Turf: %s\n"+
			"Date: %s\n"+
			"Time: %s",
		p.BookingCode, p.TurfName, p.BookingDate, p.TimeRange,
	)
	if p.LocationName != "" {
		text += fmt.Sprintf("\nLocation: %s", p.LocationName)
	}
	if p.ServiceName != "" {
		text += fmt.Sprintf("\nService: %s", p.ServiceName)
	}
	if p.Amount > 0 {
		text += fmt.Sprintf("\nAmount: ₹%d", p.Amount)
	}
	return text
}
