package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessEnvelope(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

func ErrorEnvelope(message string) Envelope {
	return Envelope{Status: "error", Message: message}
}

type TransactionResponse struct {
	TransactionID         string          `json:"transaction_id"`
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
	SettledAmount         decimal.Decimal `json:"settled_amount"`
	Type                  string          `json:"type"`
	Status                string          `json:"status"`
	Provider              string          `json:"provider"`
	CheckoutURL           string          `json:"checkout_url,omitempty"`
	Message               string          `json:"message,omitempty"`
	DateTime              time.Time       `json:"date_time"`
}

type DisbursementResponse struct {
	SystemOrderID    string          `json:"system_order_id"`
	MerchantOrderID  string          `json:"merchant_order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Commission       decimal.Decimal `json:"commission"`
	GST              decimal.Decimal `json:"gst"`
	WithholdingTax   decimal.Decimal `json:"withholding_tax"`
	MerchantAmount   decimal.Decimal `json:"merchant_amount"`
	Account          string          `json:"account"`
	Provider         string          `json:"provider"`
	Status           string          `json:"status"`
	Message          string          `json:"message,omitempty"`
	DisbursementDate time.Time       `json:"disbursement_date"`
}
