package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

var (
	ErrInvalidSignature      = errors.New("invalid callback signature")
	ErrOperationNotSupported = errors.New("operation is not supported by provider")
	ErrOrderNotFound         = errors.New("provider order not found")
	ErrMalformedCallback     = errors.New("malformed callback payload")
)

// PayinIntent describes a collection order to be created at a provider.
type PayinIntent struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	MSISDN    string
	Channel   string
}

type PayinReceipt struct {
	ExternalID  string
	CheckoutURL string
	Status      entity.TxStatus
	Message     string
}

// PayoutIntent describes a disbursement order to be created at a provider.
type PayoutIntent struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Account   string
	Channel   string
}

type PayoutReceipt struct {
	ExternalID string
	Status     entity.TxStatus
	Message    string
}

// CallbackRequest carries the inbound notification exactly as the provider
// delivered it, so adapters can verify signatures over the unmodified body.
type CallbackRequest struct {
	Body   []byte
	Header http.Header
	Query  url.Values
}

// CallbackEvent is the provider-neutral result of parsing a callback.
// VerifyRemotely is set by adapters whose notifications carry no trusted
// status; the caller must confirm via QueryStatus before acting on it.
type CallbackEvent struct {
	Reference      string
	ExternalID     string
	Status         entity.TxStatus
	Amount         decimal.Decimal
	Message        string
	VerifyRemotely bool
}

type Adapter interface {
	Name() string
	CreatePayin(ctx context.Context, intent *PayinIntent) (*PayinReceipt, error)
	CreatePayout(ctx context.Context, intent *PayoutIntent) (*PayoutReceipt, error)
	ParseCallback(req *CallbackRequest) (*CallbackEvent, error)
	QueryStatus(ctx context.Context, reference string) (entity.TxStatus, error)
}
