package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"turfbook/internal/models"

	"github.com/google/uuid"
)

const (
	cashfreeDefaultBaseURL    = "https://api.cashfree.com"
	cashfreeDefaultAPIVersion = "2023-08-01"
)

// CashfreeConfig holds API and webhook credentials for the Cashfree gateway.
type CashfreeConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
}

type Cashfree struct {
	cfg CashfreeConfig
	hc  *http.Client
}

func NewCashfree(cfg CashfreeConfig, timeout time.Duration) *Cashfree {
	if cfg.BaseURL == "" {
		cfg.BaseURL = cashfreeDefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = cashfreeDefaultAPIVersion
	}
	if timeout <= 0 {
		timeout = models.DefaultGatewayTimeoutSec * time.Second
	}
	return &Cashfree{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

func (g *Cashfree) Name() string { return models.GatewayCashfree }

func (g *Cashfree) configured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

func (g *Cashfree) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", g.cfg.APIVersion)
	req.Header.Set("x-client-id", g.cfg.ClientID)
	req.Header.Set("x-client-secret", g.cfg.ClientSecret)
}

// CreateOrder создает заказ через POST /pg/orders. У Cashfree идентификатор
// заказа выбирает мерчант: receipt плюс случайный суффикс, чтобы каждая
// попытка оплаты получала свой order_id.
func (g *Cashfree) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if !g.configured() {
		return nil, ErrGatewayMisconfigured
	}

	orderID := fmt.Sprintf("%s-%s", req.Receipt, strings.ToUpper(uuid.NewString()[:8]))
	body := map[string]any{
		"order_id":       orderID,
		"order_amount":   req.Amount,
		"order_currency": req.Currency,
	}
	if len(req.Notes) > 0 {
		body["order_tags"] = req.Notes
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/pg/orders", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	g.setHeaders(httpReq)

	resp, err := g.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message != "" {
			return nil, fmt.Errorf("%w: %s (status=%d)", ErrGatewayRequestFailed, apiErr.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status=%d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	var created struct {
		OrderID          string  `json:"order_id"`
		OrderAmount      float64 `json:"order_amount"`
		OrderCurrency    string  `json:"order_currency"`
		PaymentSessionID string  `json:"payment_session_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}

	return &Order{
		OrderID:     created.OrderID,
		Amount:      int64(created.OrderAmount),
		Currency:    created.OrderCurrency,
		CheckoutURL: created.PaymentSessionID,
	}, nil
}

// VerifyWebhookSignature сверяет base64 HMAC-SHA256 от timestamp+body
// с заголовком x-webhook-signature. Сравнение за постоянное время.
func (g *Cashfree) VerifyWebhookSignature(rawPayload []byte, signature, timestamp string) bool {
	if g.cfg.ClientSecret == "" || signature == "" || timestamp == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.cfg.ClientSecret))
	mac.Write([]byte(timestamp))
	mac.Write(rawPayload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ExtractWebhookEvent разбирает форму data.{order,payment}.
// Успех у Cashfree — payment_status "SUCCESS".
func (g *Cashfree) ExtractWebhookEvent(rawPayload []byte) (*WebhookEvent, error) {
	var payload struct {
		Type string `json:"type"`
		Data struct {
			Order struct {
				OrderID string `json:"order_id"`
			} `json:"order"`
			Payment struct {
				CfPaymentID   json.Number `json:"cf_payment_id"`
				PaymentStatus string      `json:"payment_status"`
			} `json:"payment"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, fmt.Errorf("malformed cashfree payload: %w", err)
	}

	if payload.Data.Order.OrderID == "" {
		return nil, fmt.Errorf("cashfree payload has no order_id")
	}

	return &WebhookEvent{
		OrderID:   payload.Data.Order.OrderID,
		PaymentID: payload.Data.Payment.CfPaymentID.String(),
		Success:   payload.Data.Payment.PaymentStatus == "SUCCESS",
	}, nil
}

// QueryOrderStatus запрашивает заказ; оплаченный имеет order_status "PAID".
func (g *Cashfree) QueryOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if !g.configured() {
		return nil, ErrGatewayMisconfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.BaseURL+"/pg/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	g.setHeaders(httpReq)

	resp, err := g.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status=%d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	var order struct {
		OrderStatus string `json:"order_status"`
		CfOrderID   string `json:"cf_order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}

	if order.OrderStatus == "PAID" {
		return &OrderStatus{Captured: true, PaymentID: order.CfOrderID}, nil
	}
	return &OrderStatus{}, nil
}
