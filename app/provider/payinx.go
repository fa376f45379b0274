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

type PayinXConfig struct {
	BaseURL     string
	SecretKey   string
	PublicKey   string
	CallbackURL string
	RedirectURL string
	HTTPTimeout time.Duration
}

// PayinXProvider talks to the PayinX wallet aggregator. Collections use
// the hosted checkout endpoint unless a wallet channel is requested, in
// which case the direct payment endpoint is used. Callbacks are plain
// reference+status notifications carried in the query string or body.
type PayinXProvider struct {
	cfg    PayinXConfig
	client *http.Client
}

func NewPayinXProvider(cfg PayinXConfig) *PayinXProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PayinXProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *PayinXProvider) Name() string {
	return "payinx"
}

func (p *PayinXProvider) CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("payinx secret key is not configured")
	}

	request := map[string]any{
		"currency":       intent.Currency,
		"amount":         intent.Amount.StringFixed(2),
		"reference":      intent.Reference,
		"callback_url":   p.cfg.CallbackURL,
		"redirect_url":   p.cfg.RedirectURL,
		"customer_phone": intent.MSISDN,
	}

	endpoint := p.cfg.BaseURL + "/api/v1/create_payment"
	if channel := strings.ToLower(strings.TrimSpace(intent.Channel)); channel == "bkash" || channel == "nagad" {
		endpoint = p.cfg.BaseURL + "/api/v1/create_direct_payment"
		request["payment_method"] = channel
	}

	body, err := postJSON(ctx, p.client, endpoint, p.authHeaders(false), request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status  json.RawMessage `json:"status"`
		Message string          `json:"message"`
		Data    struct {
			PaymentID  string `json:"payment_id"`
			PaymentURL string `json:"payment_url"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	status := payload.Data.Status
	if status == "" {
		// The hosted endpoint reports a numeric HTTP-style status at the
		// top level and carries no per-order state yet.
		status = "pending"
	}

	return &PayinReceipt{
		ExternalID:  strings.TrimSpace(payload.Data.PaymentID),
		CheckoutURL: strings.TrimSpace(payload.Data.PaymentURL),
		Status:      mapPayinXStatus(status),
		Message:     payload.Message,
	}, nil
}

func (p *PayinXProvider) CreatePayout(ctx context.Context, intent *PayoutIntent) (*PayoutReceipt, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("payinx secret key is not configured")
	}

	request := map[string]any{
		"amount":          intent.Amount.StringFixed(2),
		"currency":        intent.Currency,
		"payment_method":  intent.Channel,
		"withdraw_number": intent.Account,
		"callback_url":    p.cfg.CallbackURL,
		"reference":       intent.Reference,
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v1/payout_request", p.authHeaders(true), request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Message string `json:"message"`
		Data    struct {
			PaymentID string `json:"payment_id"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	status := payload.Data.Status
	if status == "" {
		status = "pending"
	}

	return &PayoutReceipt{
		ExternalID: strings.TrimSpace(payload.Data.PaymentID),
		Status:     mapPayinXStatus(status),
		Message:    payload.Message,
	}, nil
}

// ParseCallback reads the reference and status from the query string,
// falling back to the JSON body. PayinX does not sign its callbacks.
func (p *PayinXProvider) ParseCallback(req *CallbackRequest) (*CallbackEvent, error) {
	var payload struct {
		Reference     string          `json:"reference"`
		Status        string          `json:"status"`
		PaymentID     string          `json:"payment_id"`
		PaymentMethod string          `json:"payment_method"`
		Amount        decimal.Decimal `json:"amount"`
		Message       string          `json:"message"`
	}
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return nil, ErrMalformedCallback
		}
	}

	reference := strings.TrimSpace(req.Query.Get("reference"))
	if reference == "" {
		reference = strings.TrimSpace(payload.Reference)
	}
	status := strings.TrimSpace(req.Query.Get("status"))
	if status == "" {
		status = strings.TrimSpace(payload.Status)
	}
	if reference == "" || status == "" {
		return nil, ErrMalformedCallback
	}
	if !payinXKnownStatus(status) {
		return nil, ErrMalformedCallback
	}

	return &CallbackEvent{
		Reference:  reference,
		ExternalID: strings.TrimSpace(payload.PaymentID),
		Status:     mapPayinXStatus(status),
		Amount:     payload.Amount,
		Message:    payload.Message,
	}, nil
}

func (p *PayinXProvider) QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error) {
	endpoint := p.cfg.BaseURL + "/api/v1/cash_check?ref=" + url.QueryEscape(reference)
	body, err := getJSON(ctx, p.client, endpoint, p.authHeaders(false))
	if err != nil {
		return entity.StatusPending, err
	}

	var payload struct {
		Data []struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.StatusPending, err
	}
	if len(payload.Data) == 0 {
		return entity.StatusPending, ErrOrderNotFound
	}

	return mapPayinXStatus(payload.Data[0].Status), nil
}

func (p *PayinXProvider) authHeaders(includePublicKey bool) map[string]string {
	headers := map[string]string{
		"X-SECRET-KEY": p.cfg.SecretKey,
	}
	if includePublicKey {
		headers["Public-Key"] = p.cfg.PublicKey
		headers["Secret-Key"] = p.cfg.SecretKey
	}
	return headers
}

func payinXKnownStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "failed", "cancelled", "rejected", "pending", "awaited", "onhold":
		return true
	}
	return false
}

func mapPayinXStatus(status string) entity.TxStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return entity.StatusCompleted
	case "failed", "cancelled", "rejected":
		return entity.StatusFailed
	default:
		// pending, awaited and onhold stay pending
		return entity.StatusPending
	}
}
