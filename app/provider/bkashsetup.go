package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assanpay/gateway/app/entity"
)

type BkashSetupConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

// BkashSetupProvider fronts the internal bKash tokenized-checkout bridge.
// The bridge owns the bKash credentials; callbacks arrive as unsigned
// redirects carrying a paymentID and status query pair, so a completed
// status is re-checked against the bridge before being trusted.
type BkashSetupProvider struct {
	cfg    BkashSetupConfig
	client *http.Client
}

func NewBkashSetupProvider(cfg BkashSetupConfig) *BkashSetupProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BkashSetupProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *BkashSetupProvider) Name() string {
	return "bkash_setup"
}

func (p *BkashSetupProvider) CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error) {
	if strings.TrimSpace(p.cfg.BaseURL) == "" {
		return nil, errors.New("bkash setup base url is not configured")
	}

	request := map[string]any{
		"orderID":  intent.Reference,
		"amount":   intent.Amount.StringFixed(2),
		"currency": intent.Currency,
		"msisdn":   intent.MSISDN,
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/payment/create", nil, request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		PaymentID     string `json:"paymentID"`
		BkashURL      string `json:"bkashURL"`
		StatusCode    string `json:"statusCode"`
		StatusMessage string `json:"statusMessage"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.BkashURL) == "" {
		return nil, errors.New("bkash setup checkout url missing: " + payload.StatusMessage)
	}

	return &PayinReceipt{
		ExternalID:  strings.TrimSpace(payload.PaymentID),
		CheckoutURL: strings.TrimSpace(payload.BkashURL),
		Status:      entity.StatusPending,
		Message:     payload.StatusMessage,
	}, nil
}

func (p *BkashSetupProvider) CreatePayout(_ context.Context, _ *PayoutIntent) (*PayoutReceipt, error) {
	return nil, ErrOperationNotSupported
}

func (p *BkashSetupProvider) ParseCallback(req *CallbackRequest) (*CallbackEvent, error) {
	reference := strings.TrimSpace(req.Query.Get("order_id"))
	paymentID := strings.TrimSpace(req.Query.Get("paymentID"))
	if reference == "" && paymentID == "" {
		return nil, ErrMalformedCallback
	}

	var status entity.TxStatus
	switch strings.ToLower(strings.TrimSpace(req.Query.Get("status"))) {
	case "success":
		status = entity.StatusCompleted
	case "failure", "cancel":
		status = entity.StatusFailed
	default:
		status = entity.StatusPending
	}

	return &CallbackEvent{
		Reference:      reference,
		ExternalID:     paymentID,
		Status:         status,
		VerifyRemotely: status == entity.StatusCompleted,
	}, nil
}

func (p *BkashSetupProvider) QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error) {
	body, err := getJSON(ctx, p.client, p.cfg.BaseURL+"/payment/status/"+url.PathEscape(reference), nil)
	if err != nil {
		return entity.StatusPending, err
	}

	var payload struct {
		TransactionStatus string `json:"transactionStatus"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.StatusPending, err
	}

	switch strings.ToLower(strings.TrimSpace(payload.TransactionStatus)) {
	case "completed":
		return entity.StatusCompleted, nil
	case "failed", "cancelled":
		return entity.StatusFailed, nil
	default:
		return entity.StatusPending, nil
	}
}
