package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

type LauncxConfig struct {
	BaseURL        string
	APIKey         string
	CallbackSecret string
	HTTPTimeout    time.Duration
}

// LauncxProvider integrates the Launcx Indonesian checkout. Callbacks are
// authenticated with an HMAC-SHA256 over the raw JSON body, delivered in
// the X-Callback-Signature header.
type LauncxProvider struct {
	cfg    LauncxConfig
	client *http.Client
}

func NewLauncxProvider(cfg LauncxConfig) *LauncxProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LauncxProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *LauncxProvider) Name() string {
	return "launcx"
}

func (p *LauncxProvider) CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("launcx api key is not configured")
	}

	request := map[string]any{
		"orderId":  intent.Reference,
		"amount":   intent.Amount,
		"currency": intent.Currency,
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v1/transactions", p.authHeaders(), request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			ID          string `json:"id"`
			CheckoutURL string `json:"checkoutUrl"`
			Status      string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &PayinReceipt{
		ExternalID:  strings.TrimSpace(payload.Data.ID),
		CheckoutURL: strings.TrimSpace(payload.Data.CheckoutURL),
		Status:      mapLauncxStatus(payload.Data.Status),
	}, nil
}

func (p *LauncxProvider) CreatePayout(ctx context.Context, intent *PayoutIntent) (*PayoutReceipt, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("launcx api key is not configured")
	}

	request := map[string]any{
		"orderId":       intent.Reference,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
		"accountNumber": intent.Account,
		"channel":       intent.Channel,
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v1/disbursements", p.authHeaders(), request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &PayoutReceipt{
		ExternalID: strings.TrimSpace(payload.Data.ID),
		Status:     mapLauncxStatus(payload.Data.Status),
		Message:    payload.Data.Message,
	}, nil
}

func (p *LauncxProvider) ParseCallback(req *CallbackRequest) (*CallbackEvent, error) {
	signature := req.Header.Get("X-Callback-Signature")
	if !hmacEqualHex(signature, p.cfg.CallbackSecret, req.Body) {
		return nil, ErrInvalidSignature
	}

	var payload struct {
		OrderID string          `json:"orderId"`
		ID      string          `json:"id"`
		Status  string          `json:"status"`
		Amount  decimal.Decimal `json:"amount"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, ErrMalformedCallback
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return nil, ErrMalformedCallback
	}

	return &CallbackEvent{
		Reference:  strings.TrimSpace(payload.OrderID),
		ExternalID: strings.TrimSpace(payload.ID),
		Status:     mapLauncxStatus(payload.Status),
		Amount:     payload.Amount,
		Message:    payload.Message,
	}, nil
}

func (p *LauncxProvider) QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error) {
	body, err := getJSON(ctx, p.client, p.cfg.BaseURL+"/api/v1/transactions/"+url.PathEscape(reference), p.authHeaders())
	if err != nil {
		return entity.StatusPending, err
	}

	var payload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.StatusPending, err
	}

	return mapLauncxStatus(payload.Data.Status), nil
}

func (p *LauncxProvider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
}

func mapLauncxStatus(status string) entity.TxStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "SUCCESS", "DONE", "SETTLED":
		return entity.StatusCompleted
	case "FAILED", "EXPIRED", "CANCELLED":
		return entity.StatusFailed
	default:
		return entity.StatusPending
	}
}
