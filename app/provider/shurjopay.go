package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

type ShurjoPayConfig struct {
	BaseURL     string
	Username    string
	Password    string
	Prefix      string
	ReturnURL   string
	CancelURL   string
	HTTPTimeout time.Duration
}

// ShurjoPayProvider integrates the Bangladeshi shurjoPay gateway. The
// gateway issues short-lived bearer tokens, and its return-URL callback
// carries no trusted status, so events are flagged for remote verification.
type ShurjoPayProvider struct {
	cfg    ShurjoPayConfig
	client *http.Client

	mu          sync.Mutex
	token       string
	storeID     int64
	tokenExpiry time.Time
}

func NewShurjoPayProvider(cfg ShurjoPayConfig) *ShurjoPayProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "SP"
	}
	return &ShurjoPayProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *ShurjoPayProvider) Name() string {
	return "shurjopay"
}

func (p *ShurjoPayProvider) CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error) {
	token, storeID, err := p.authToken(ctx)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"token":          token,
		"store_id":       storeID,
		"prefix":         p.cfg.Prefix,
		"order_id":       intent.Reference,
		"amount":         intent.Amount.StringFixed(2),
		"currency":       intent.Currency,
		"customer_phone": intent.MSISDN,
		"return_url":     p.cfg.ReturnURL,
		"cancel_url":     p.cfg.CancelURL,
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/secret-pay", map[string]string{
		"Authorization": "Bearer " + token,
	}, request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		SPOrderID   string `json:"sp_order_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.CheckoutURL) == "" {
		return nil, errors.New("shurjopay checkout url missing")
	}

	return &PayinReceipt{
		ExternalID:  strings.TrimSpace(payload.SPOrderID),
		CheckoutURL: strings.TrimSpace(payload.CheckoutURL),
		Status:      entity.StatusPending,
	}, nil
}

func (p *ShurjoPayProvider) CreatePayout(_ context.Context, _ *PayoutIntent) (*PayoutReceipt, error) {
	return nil, ErrOperationNotSupported
}

func (p *ShurjoPayProvider) ParseCallback(req *CallbackRequest) (*CallbackEvent, error) {
	reference := strings.TrimSpace(req.Query.Get("order_id"))
	if reference == "" {
		return nil, ErrMalformedCallback
	}

	// The redirect carries nothing signed. Hand back a pending event and
	// let the caller confirm through the verification endpoint.
	return &CallbackEvent{
		Reference:      reference,
		Status:         entity.StatusPending,
		VerifyRemotely: true,
	}, nil
}

func (p *ShurjoPayProvider) QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error) {
	token, _, err := p.authToken(ctx)
	if err != nil {
		return entity.StatusPending, err
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/verification", map[string]string{
		"Authorization": "Bearer " + token,
	}, map[string]string{"order_id": reference})
	if err != nil {
		return entity.StatusPending, err
	}

	var results []struct {
		SPCode any             `json:"sp_code"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return entity.StatusPending, err
	}
	if len(results) == 0 {
		return entity.StatusPending, ErrOrderNotFound
	}

	return mapShurjoPayCode(stringifyField(results[0].SPCode)), nil
}

func (p *ShurjoPayProvider) authToken(ctx context.Context) (string, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, p.storeID, nil
	}

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/get_token", nil, map[string]string{
		"username": p.cfg.Username,
		"password": p.cfg.Password,
	})
	if err != nil {
		return "", 0, err
	}

	var payload struct {
		Token     string `json:"token"`
		StoreID   int64  `json:"store_id"`
		ExpiresIn int64  `json:"expires_in"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", 0, errors.New("shurjopay token request rejected: " + payload.Message)
	}

	ttl := payload.ExpiresIn
	if ttl <= 0 {
		ttl = 3600
	}
	p.token = payload.Token
	p.storeID = payload.StoreID
	p.tokenExpiry = time.Now().Add(time.Duration(ttl-60) * time.Second)

	return p.token, p.storeID, nil
}

func mapShurjoPayCode(code string) entity.TxStatus {
	switch strings.TrimSpace(code) {
	case "1000":
		return entity.StatusCompleted
	case "1001", "1002":
		return entity.StatusFailed
	default:
		return entity.StatusPending
	}
}
