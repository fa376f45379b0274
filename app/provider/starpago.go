package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

type StarPagoConfig struct {
	BaseURL       string
	AppID         string
	Secret        string
	NotifyURL     string
	ReturnURL     string
	SignatureAlgo string
	HTTPTimeout   time.Duration
}

// StarPagoProvider integrates the StarPago hosted-checkout gateway. Every
// request and callback carries a digest over the sorted non-empty fields
// with the merchant secret appended as a trailing key parameter.
type StarPagoProvider struct {
	cfg    StarPagoConfig
	client *http.Client
}

// Callback notifications sign only this fixed set of fields, regardless of
// what else the payload carries.
var starPagoCallbackSignedFields = []string{
	"orderStatus", "orderNo", "merOrderNo", "amount",
	"currency", "attach", "createTime", "updateTime",
}

func NewStarPagoProvider(cfg StarPagoConfig) *StarPagoProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.SignatureAlgo == "" {
		cfg.SignatureAlgo = "sha256"
	}
	return &StarPagoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *StarPagoProvider) Name() string {
	return "starpago"
}

func (p *StarPagoProvider) CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error) {
	if strings.TrimSpace(p.cfg.Secret) == "" {
		return nil, errors.New("starpago secret is not configured")
	}

	fields := map[string]string{
		"appId":      p.cfg.AppID,
		"merOrderNo": intent.Reference,
		"amount":     intent.Amount.StringFixed(2),
		"currency":   intent.Currency,
		"notifyUrl":  p.cfg.NotifyURL,
		"returnUrl":  p.cfg.ReturnURL,
	}
	fields["sign"] = sortedFieldDigest(fields, p.cfg.Secret, p.cfg.SignatureAlgo)

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v2/payment/order/create", nil, fields)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			OrderNo     string `json:"orderNo"`
			PayURL      string `json:"payUrl"`
			OrderStatus string `json:"orderStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Code != 200 {
		return nil, fmt.Errorf("starpago order create rejected: code=%d msg=%s", payload.Code, payload.Msg)
	}

	return &PayinReceipt{
		ExternalID:  strings.TrimSpace(payload.Data.OrderNo),
		CheckoutURL: strings.TrimSpace(payload.Data.PayURL),
		Status:      mapStarPagoStatus(payload.Data.OrderStatus),
		Message:     payload.Msg,
	}, nil
}

func (p *StarPagoProvider) CreatePayout(ctx context.Context, intent *PayoutIntent) (*PayoutReceipt, error) {
	if strings.TrimSpace(p.cfg.Secret) == "" {
		return nil, errors.New("starpago secret is not configured")
	}

	fields := map[string]string{
		"appId":      p.cfg.AppID,
		"merOrderNo": intent.Reference,
		"amount":     intent.Amount.StringFixed(2),
		"currency":   intent.Currency,
		"account":    intent.Account,
		"channel":    intent.Channel,
		"notifyUrl":  p.cfg.NotifyURL,
	}
	fields["sign"] = sortedFieldDigest(fields, p.cfg.Secret, p.cfg.SignatureAlgo)

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v2/payout/order/create", nil, fields)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			OrderNo     string `json:"orderNo"`
			OrderStatus string `json:"orderStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Code != 200 {
		return nil, fmt.Errorf("starpago payout create rejected: code=%d msg=%s", payload.Code, payload.Msg)
	}

	return &PayoutReceipt{
		ExternalID: strings.TrimSpace(payload.Data.OrderNo),
		Status:     mapStarPagoStatus(payload.Data.OrderStatus),
		Message:    payload.Msg,
	}, nil
}

func (p *StarPagoProvider) ParseCallback(req *CallbackRequest) (*CallbackEvent, error) {
	var raw map[string]any
	if err := json.Unmarshal(req.Body, &raw); err != nil {
		return nil, ErrMalformedCallback
	}

	sign, _ := raw["sign"].(string)
	fields := make(map[string]string, len(starPagoCallbackSignedFields))
	for _, key := range starPagoCallbackSignedFields {
		fields[key] = stringifyField(raw[key])
	}
	expected := sortedFieldDigest(fields, p.cfg.Secret, p.cfg.SignatureAlgo)
	if sign == "" || !strings.EqualFold(sign, expected) {
		return nil, ErrInvalidSignature
	}

	reference := stringifyField(raw["merOrderNo"])
	if reference == "" {
		return nil, ErrMalformedCallback
	}

	amount, _ := decimal.NewFromString(stringifyField(raw["amount"]))

	return &CallbackEvent{
		Reference:  reference,
		ExternalID: stringifyField(raw["orderNo"]),
		Status:     mapStarPagoStatus(stringifyField(raw["orderStatus"])),
		Amount:     amount,
		Message:    stringifyField(raw["msg"]),
	}, nil
}

func (p *StarPagoProvider) QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error) {
	fields := map[string]string{
		"appId":      p.cfg.AppID,
		"merOrderNo": reference,
	}
	fields["sign"] = sortedFieldDigest(fields, p.cfg.Secret, p.cfg.SignatureAlgo)

	body, err := postJSON(ctx, p.client, p.cfg.BaseURL+"/api/v2/payment/order/query", nil, fields)
	if err != nil {
		return entity.StatusPending, err
	}

	var payload struct {
		Code int `json:"code"`
		Data struct {
			OrderStatus string `json:"orderStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.StatusPending, err
	}
	if payload.Code != 200 {
		return entity.StatusPending, ErrOrderNotFound
	}

	return mapStarPagoStatus(payload.Data.OrderStatus), nil
}

// stringifyField renders a decoded JSON value the way StarPago signs it:
// numbers without a trailing .0 when integral, everything else as-is.
func stringifyField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return decimal.NewFromFloat(t).String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		encoded, _ := json.Marshal(t)
		return string(encoded)
	}
}

func mapStarPagoStatus(status string) entity.TxStatus {
	switch strings.TrimSpace(status) {
	case "2", "3":
		return entity.StatusCompleted
	case "-1", "-2", "-3":
		return entity.StatusFailed
	default:
		// 0 created, 1 processing, -4 under review
		return entity.StatusPending
	}
}
