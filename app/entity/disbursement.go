package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Disbursement struct {
	ID uint64

	SystemOrderID         string
	MerchantCustomOrderID string
	MerchantID            uint64

	// TransactionAmount is the amount requested for payout; MerchantAmount is
	// the amount debited from the merchant's disbursable balance, i.e. the
	// requested amount plus commission, GST and withholding tax.
	TransactionAmount decimal.Decimal
	Commission        decimal.Decimal
	GST               decimal.Decimal
	WithholdingTax    decimal.Decimal
	MerchantAmount    decimal.Decimal

	Account  string
	Provider string

	Status          TxStatus
	ResponseMessage *string

	ProviderDetails ProviderDetails

	CallbackSent     bool
	CallbackResponse *string

	WebhookStatus   int32
	WebhookAttempts int32
	WebhookNextAt   *time.Time
	WebhookLastErr  *string

	DisbursementDate time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
