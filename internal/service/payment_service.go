package service

import (
	"context"
	"errors"
	"time"

	"turfbook/internal/database"
	"turfbook/internal/domain"
	"turfbook/internal/events"
	"turfbook/internal/gateway"
	"turfbook/internal/metrics"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidSignature возвращается при несовпадении подписи вебхука
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrNothingToPay возвращается при попытке оплатить уже оплаченную бронь
	ErrNothingToPay = errors.New("booking has no outstanding amount")

	// ErrNotBookingOwner возвращается при попытке оплатить чужую бронь
	ErrNotBookingOwner = errors.New("booking belongs to another user")

	// ErrBookingNotPayable возвращается для отмененных и завершенных броней
	ErrBookingNotPayable = errors.New("booking is not in a payable state")
)

// Reconcile outcomes.
const (
	ReconcileApplied  = "applied"
	ReconcileIgnored  = "ignored"
	ReconcileRejected = "rejected"
)

// ReconcileResult describes what one webhook delivery did to the ledger.
type ReconcileResult struct {
	Outcome   string          `json:"outcome"`
	OrderID   string          `json:"order_id,omitempty"`
	PaymentID string          `json:"payment_id,omitempty"`
	Booking   *models.Booking `json:"booking,omitempty"`
}

type PaymentService struct {
	store         domain.PaymentStore
	gateways      *gateway.Registry
	activeGateway string
	currency      string
	eventBus      domain.EventPublisher
	sweepGrace    time.Duration
	logger        *zerolog.Logger
}

func NewPaymentService(store domain.PaymentStore, gateways *gateway.Registry, activeGateway, currency string, eventBus domain.EventPublisher, sweepGrace time.Duration, logger *zerolog.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	if sweepGrace <= 0 {
		sweepGrace = models.DefaultSweepGraceMinutes * time.Minute
	}
	return &PaymentService{
		store:         store,
		gateways:      gateways,
		activeGateway: activeGateway,
		currency:      currency,
		eventBus:      eventBus,
		sweepGrace:    sweepGrace,
		logger:        logger,
	}
}

// CreateOrder opens a gateway order for the booking's next due amount: the
// advance while nothing is received, the outstanding balance afterwards.
// userID 0 skips the ownership check (operator calls). Empty gatewayName
// falls back to the configured active gateway.
func (s *PaymentService) CreateOrder(ctx context.Context, bookingID, userID int64, gatewayName string) (*models.Payment, *gateway.Order, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	if userID != 0 && booking.UserID != userID {
		return nil, nil, ErrNotBookingOwner
	}

	switch booking.Status {
	case models.BookingStatusPendingPayment, models.BookingStatusConfirmed:
	default:
		return nil, nil, ErrBookingNotPayable
	}

	amount := booking.AdvanceAmount
	paymentType := models.PaymentTypeAdvance
	if booking.ReceivedAmount > 0 {
		amount = booking.TotalAmount - booking.ReceivedAmount
		paymentType = models.PaymentTypeFull
	} else if booking.AdvanceAmount >= booking.TotalAmount {
		paymentType = models.PaymentTypeFull
	}
	if amount <= 0 {
		return nil, nil, ErrNothingToPay
	}

	if gatewayName == "" {
		gatewayName = s.activeGateway
	}
	g, err := s.gateways.Get(gatewayName)
	if err != nil {
		return nil, nil, err
	}

	order, err := g.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  booking.BookingCode,
		Notes: map[string]string{
			"booking_code": booking.BookingCode,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	payment := &models.Payment{
		BookingID:      booking.ID,
		Amount:         amount,
		PaymentType:    paymentType,
		Gateway:        g.Name(),
		GatewayOrderID: order.OrderID,
		Status:         models.PaymentAttemptPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, nil, err
	}

	if err := s.store.SetBookingOrder(ctx, booking.ID, g.Name(), order.OrderID); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("failed to record gateway order on booking")
	}

	s.logger.Info().
		Str("booking_code", booking.BookingCode).
		Str("gateway", g.Name()).
		Str("order_id", order.OrderID).
		Int64("amount", amount).
		Msg("gateway order created")

	return payment, order, nil
}

// Reconcile applies one raw webhook delivery. The outcome is always recorded,
// and redeliveries of an already-applied payment come back as ignored. The
// webhook-declared amount is never trusted; credit comes from the stored
// payment row.
func (s *PaymentService) Reconcile(ctx context.Context, gatewayName string, rawPayload []byte, signature, timestamp string) (*ReconcileResult, error) {
	g, err := s.gateways.Get(gatewayName)
	if err != nil {
		metrics.IncWebhook(gatewayName, ReconcileRejected)
		return &ReconcileResult{Outcome: ReconcileRejected}, err
	}

	if !g.VerifyWebhookSignature(rawPayload, signature, timestamp) {
		metrics.IncWebhook(gatewayName, ReconcileRejected)
		s.logger.Warn().Str("gateway", gatewayName).Msg("webhook signature mismatch")
		return &ReconcileResult{Outcome: ReconcileRejected}, ErrInvalidSignature
	}

	event, err := g.ExtractWebhookEvent(rawPayload)
	if err != nil {
		metrics.IncWebhook(gatewayName, ReconcileRejected)
		return &ReconcileResult{Outcome: ReconcileRejected}, err
	}

	result := &ReconcileResult{OrderID: event.OrderID, PaymentID: event.PaymentID}

	if !event.Success {
		// Неуспех подтверждаем без изменения состояния: попытка остается
		// pending, и поздний captured по тому же заказу все еще зачислится
		payment, err := s.store.GetPaymentByOrderID(ctx, event.OrderID)
		switch {
		case errors.Is(err, database.ErrPaymentNotFound):
			s.logger.Warn().Str("gateway", gatewayName).Str("order_id", event.OrderID).Msg("failure webhook for unknown order")
		case err != nil:
			return nil, err
		default:
			s.logger.Info().
				Str("gateway", gatewayName).
				Str("order_id", event.OrderID).
				Int64("booking_id", payment.BookingID).
				Msg("payment attempt failed at gateway")
			s.publishPaymentEvent(events.EventPaymentFailed, nil, gatewayName, event)
		}
		metrics.IncWebhook(gatewayName, ReconcileIgnored)
		result.Outcome = ReconcileIgnored
		return result, nil
	}

	booking, applied, err := s.store.ApplySuccessfulPayment(ctx, event.OrderID, event.PaymentID)
	switch {
	case errors.Is(err, database.ErrPaymentNotFound):
		// Заказ не наш: фиксируем и отвечаем 200, чтобы шлюз не ретраил
		s.logger.Warn().Str("gateway", gatewayName).Str("order_id", event.OrderID).Msg("webhook for unknown order")
		metrics.IncWebhook(gatewayName, ReconcileIgnored)
		result.Outcome = ReconcileIgnored
		return result, nil
	case errors.Is(err, database.ErrBookingCancelled):
		s.logger.Error().Str("gateway", gatewayName).Str("order_id", event.OrderID).Msg("payment arrived for cancelled booking")
		metrics.IncWebhook(gatewayName, ReconcileRejected)
		result.Outcome = ReconcileRejected
		return result, nil
	case err != nil:
		return nil, err
	}

	if !applied {
		// Повторная доставка уже зачисленного платежа
		metrics.IncWebhook(gatewayName, ReconcileIgnored)
		result.Outcome = ReconcileIgnored
		return result, nil
	}

	metrics.IncWebhook(gatewayName, ReconcileApplied)
	metrics.IncPaymentApplied(gatewayName)
	s.publishPaymentEvent(events.EventPaymentApplied, booking, gatewayName, event)
	if booking.Status == models.BookingStatusConfirmed {
		s.publishBookingConfirmed(booking)
	}

	s.logger.Info().
		Str("gateway", gatewayName).
		Str("order_id", event.OrderID).
		Str("booking_code", booking.BookingCode).
		Str("payment_status", booking.PaymentStatus).
		Msg("payment applied")

	result.Outcome = ReconcileApplied
	result.Booking = booking
	return result, nil
}

// ReconcilePending polls the gateways for payments that stayed pending past
// the grace window. Covers lost webhooks. Returns how many were applied.
func (s *PaymentService) ReconcilePending(ctx context.Context) (int, error) {
	now := time.Now()
	cutoff := now.Add(-s.sweepGrace)
	expiry := now.Add(-models.PaymentAttemptExpiryHours * time.Hour)
	pending, err := s.store.ListPendingPaymentsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, payment := range pending {
		g, err := s.gateways.Get(payment.Gateway)
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", payment.GatewayOrderID).Msg("pending payment references unknown gateway")
			continue
		}

		status, err := g.QueryOrderStatus(ctx, payment.GatewayOrderID)
		if err != nil {
			s.logger.Warn().Err(err).Str("gateway", payment.Gateway).Str("order_id", payment.GatewayOrderID).Msg("order status query failed")
			continue
		}
		if !status.Captured {
			// Сутки без захвата — попытка брошена; поздний success все
			// равно пройдет, условный UPDATE пропускает только success
			if payment.CreatedAt.Before(expiry) {
				if err := s.store.MarkPaymentFailed(ctx, payment.GatewayOrderID); err != nil {
					s.logger.Warn().Err(err).Str("order_id", payment.GatewayOrderID).Msg("failed to expire stale payment attempt")
				} else {
					s.logger.Info().Str("order_id", payment.GatewayOrderID).Msg("stale payment attempt expired")
				}
			}
			continue
		}

		booking, ok, err := s.store.ApplySuccessfulPayment(ctx, payment.GatewayOrderID, status.PaymentID)
		if errors.Is(err, database.ErrBookingCancelled) {
			s.logger.Error().Str("order_id", payment.GatewayOrderID).Msg("captured payment belongs to cancelled booking")
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", payment.GatewayOrderID).Msg("failed to apply swept payment")
			continue
		}
		if !ok {
			continue
		}

		applied++
		metrics.IncPaymentApplied(payment.Gateway)

		// Контрольный пересчет: received_amount должен сходиться с суммой
		// успешных платежей, расхождение чинится на месте
		if healed, err := s.store.RecomputeReceived(ctx, booking.ID); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("received amount recompute failed")
		} else if healed.ReceivedAmount != booking.ReceivedAmount {
			s.logger.Warn().
				Int64("booking_id", booking.ID).
				Int64("was", booking.ReceivedAmount).
				Int64("now", healed.ReceivedAmount).
				Msg("received amount drift repaired")
			booking = healed
		}

		s.publishPaymentEvent(events.EventPaymentApplied, booking, payment.Gateway, &gateway.WebhookEvent{
			OrderID:   payment.GatewayOrderID,
			PaymentID: status.PaymentID,
			Success:   true,
		})
		if booking.Status == models.BookingStatusConfirmed {
			s.publishBookingConfirmed(booking)
		}

		s.logger.Info().
			Str("gateway", payment.Gateway).
			Str("order_id", payment.GatewayOrderID).
			Msg("pending payment reconciled from gateway status")
	}

	return applied, nil
}

func (s *PaymentService) GetBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	return s.store.GetBookingPayments(ctx, bookingID)
}

func (s *PaymentService) publishPaymentEvent(eventType string, booking *models.Booking, gatewayName string, event *gateway.WebhookEvent) {
	if s.eventBus == nil {
		return
	}

	payload := events.PaymentEventPayload{
		Gateway:        gatewayName,
		GatewayOrderID: event.OrderID,
		PaymentID:      event.PaymentID,
	}
	if booking != nil {
		payload.BookingID = booking.ID
		payload.BookingCode = booking.BookingCode
		payload.Amount = booking.ReceivedAmount
		payload.PaymentStatus = booking.PaymentStatus
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (s *PaymentService) publishBookingConfirmed(booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		BookingCode:   booking.BookingCode,
		UserID:        booking.UserID,
		UserName:      booking.UserName,
		TurfID:        booking.TurfID,
		TurfName:      booking.TurfName,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		BookingDate:   booking.BookingDate,
		Hours:         booking.Hours,
		TotalAmount:   booking.TotalAmount,
	}

	if err := s.eventBus.PublishJSON(events.EventBookingConfirmed, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
