package models

const (
	BookingStatusPendingPayment = "pending_payment"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusCompleted      = "completed"
	BookingStatusCancelled      = "cancelled"
)

const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

const (
	PaymentAttemptPending = "pending"
	PaymentAttemptSuccess = "success"
	PaymentAttemptFailed  = "failed"
)

const (
	PaymentPlanAdvance = "advance"
	PaymentPlanFull    = "full"
)

const (
	PaymentTypeAdvance = "advance"
	PaymentTypeFull    = "full"
)

const (
	GatewayRazorpay = "razorpay"
	GatewayCashfree = "cashfree"
)

const (
	ReminderUnitDay    = "day"
	ReminderUnitHour   = "hour"
	ReminderUnitMinute = "min"
)

const (
	// AdvancePercent доля предоплаты от общей суммы
	AdvancePercent = 0.30

	// FullPaymentDiscountPercent скидка при полной оплате
	FullPaymentDiscountPercent = 0.10

	// BookingCodePrefix префикс человекочитаемого кода брони
	BookingCodePrefix = "TRF"

	// DefaultReminderToleranceMin окно допуска при выборе напоминаний
	DefaultReminderToleranceMin = 2

	// DefaultAvailabilityCacheTTL время жизни кэша доступности в секундах
	DefaultAvailabilityCacheTTL = 30

	// DefaultSweepGraceMinutes возраст pending-платежа до фоновой сверки
	DefaultSweepGraceMinutes = 10

	// PaymentAttemptExpiryHours возраст, после которого незахваченная
	// попытка считается брошенной и выводится из фоновой сверки
	PaymentAttemptExpiryHours = 24

	// DefaultMaxBookingDays горизонт бронирования по умолчанию
	DefaultMaxBookingDays = 90

	// DefaultGatewayTimeoutSec таймаут исходящих запросов к шлюзам
	DefaultGatewayTimeoutSec = 5

	// RateLimitWebhooks запросов на вебхук-эндпоинт в окне
	RateLimitWebhooks = 60

	// RateLimitWindow окно ограничения частоты в секундах
	RateLimitWindow = 60
)
