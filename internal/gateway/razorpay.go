package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turfbook/internal/models"
)

const razorpayDefaultBaseURL = "https://api.razorpay.com"

// RazorpayConfig holds API and webhook credentials for the Razorpay gateway.
type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type Razorpay struct {
	cfg RazorpayConfig
	hc  *http.Client
}

func NewRazorpay(cfg RazorpayConfig, timeout time.Duration) *Razorpay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = razorpayDefaultBaseURL
	}
	if timeout <= 0 {
		timeout = models.DefaultGatewayTimeoutSec * time.Second
	}
	return &Razorpay{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

func (g *Razorpay) Name() string { return models.GatewayRazorpay }

func (g *Razorpay) configured() bool {
	return g.cfg.KeyID != "" && g.cfg.KeySecret != ""
}

// CreateOrder создает заказ через POST /v1/orders. Сумма уходит в пайсах.
func (g *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if !g.configured() {
		return nil, ErrGatewayMisconfigured
	}

	body := map[string]any{
		"amount":   req.Amount * 100,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/v1/orders", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

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
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Error.Description != "" {
			return nil, fmt.Errorf("%w: %s (status=%d)", ErrGatewayRequestFailed, apiErr.Error.Description, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status=%d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	var created struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}

	return &Order{
		OrderID:  created.ID,
		Amount:   created.Amount / 100,
		Currency: created.Currency,
	}, nil
}

// VerifyWebhookSignature сверяет hex HMAC-SHA256 тела с заголовком
// X-Razorpay-Signature. Сравнение за постоянное время.
func (g *Razorpay) VerifyWebhookSignature(rawPayload []byte, signature, _ string) bool {
	if g.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ExtractWebhookEvent разбирает форму payload.payment.entity.
// Успех у Razorpay — статус "captured".
func (g *Razorpay) ExtractWebhookEvent(rawPayload []byte) (*WebhookEvent, error) {
	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, fmt.Errorf("malformed razorpay payload: %w", err)
	}

	entity := payload.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil, fmt.Errorf("razorpay payload has no order_id")
	}

	return &WebhookEvent{
		OrderID:   entity.OrderID,
		PaymentID: entity.ID,
		Success:   entity.Status == "captured",
	}, nil
}

// QueryOrderStatus запрашивает платежи заказа и ищет captured среди них.
func (g *Razorpay) QueryOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if !g.configured() {
		return nil, ErrGatewayMisconfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.BaseURL+"/v1/orders/"+orderID+"/payments", nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status=%d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	var payments struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}

	for _, item := range payments.Items {
		if item.Status == "captured" {
			return &OrderStatus{Captured: true, PaymentID: item.ID}, nil
		}
	}
	return &OrderStatus{}, nil
}
