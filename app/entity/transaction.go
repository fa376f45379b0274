package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

// Terminal reports whether the status permits no further transition.
func (s TxStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	WebhookNone    int32 = 0
	WebhookPending int32 = 1
	WebhookSuccess int32 = 10
	WebhookFailed  int32 = 20
)

// ProviderDetails carries the provider-side identity of a transaction or
// disbursement. ExternalID is filled in by the reconciliation path once the
// provider reports its own order number.
type ProviderDetails struct {
	Name       string `json:"name"`
	SubName    string `json:"sub_name,omitempty"`
	MSISDN     string `json:"msisdn,omitempty"`
	Account    string `json:"account,omitempty"`
	ExternalID string `json:"transaction_id,omitempty"`
	ReceiptURL string `json:"receipt_url,omitempty"`
}

type Transaction struct {
	ID uint64

	TransactionID         string
	MerchantTransactionID string
	MerchantID            uint64

	OriginalAmount decimal.Decimal
	SettledAmount  decimal.Decimal

	Type   string
	Status TxStatus

	ProviderDetails ProviderDetails
	ResponseMessage *string

	CallbackSent     bool
	CallbackResponse *string

	WebhookStatus   int32
	WebhookAttempts int32
	WebhookNextAt   *time.Time
	WebhookLastErr  *string

	DateTime  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
