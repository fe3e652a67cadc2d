package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGatewayMisconfigured возвращается при отсутствии учетных данных шлюза
	ErrGatewayMisconfigured = errors.New("payment gateway credentials are not configured")

	// ErrGatewayRequestFailed возвращается при сетевой или HTTP ошибке шлюза
	ErrGatewayRequestFailed = errors.New("payment gateway request failed")

	ErrUnknownGateway = errors.New("unknown payment gateway")
)

// OrderRequest описывает создание заказа на оплату.
type OrderRequest struct {
	Amount   int64  // целые единицы валюты
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway-side object representing one payment attempt.
type Order struct {
	OrderID     string
	Amount      int64
	Currency    string
	CheckoutURL string
}

// OrderStatus is the normalized answer to "did this order get captured".
type OrderStatus struct {
	Captured  bool
	PaymentID string
}

// WebhookEvent is the normalized shape extracted from a gateway callback.
// Success folds each gateway's vocabulary (captured / SUCCESS) into one flag.
type WebhookEvent struct {
	OrderID   string
	PaymentID string
	Success   bool
}

// PaymentGateway is the uniform contract over the two supported gateways.
// Implementations never trust webhook-declared amounts; the reconciler credits
// from the stored payment row.
type PaymentGateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyWebhookSignature(rawPayload []byte, signature, timestamp string) bool
	ExtractWebhookEvent(rawPayload []byte) (*WebhookEvent, error)
	QueryOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)
}

// Registry держит сконфигурированные шлюзы и выбирает их по имени.
// Выбор активного шлюза — явный параметр вызова, не глобальное состояние.
type Registry struct {
	gateways map[string]PaymentGateway
}

func NewRegistry(gateways ...PaymentGateway) *Registry {
	m := make(map[string]PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

func (r *Registry) Get(name string) (PaymentGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	return g, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
