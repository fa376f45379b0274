package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CallbackModeSingle   = "SINGLE"
	CallbackModeSeparate = "SEPARATE"
)

const (
	InquiryModeDatabase = "database"
	InquiryModeLive     = "live"
)

// Merchant is referenced by the orchestration core, not owned by it. The
// routing maps resolve a payment method (bkash, nagad, qris, ovo, ...) to a
// provider name; DepositMethod and WithdrawalMethod act as fallbacks when a
// method has no explicit entry.
type Merchant struct {
	MerchantID uint64
	UID        string

	BalanceToDisburse decimal.Decimal

	DepositMethod     string
	DepositRouting    map[string]string
	WithdrawalMethod  string
	WithdrawalRouting map[string]string

	WebhookURL        string
	PayoutCallbackURL string
	CallbackMode      string
	Encrypted         bool
	CallbackKey       string

	CommissionRate     decimal.Decimal
	SettlementDuration int

	DisbursementRate           decimal.Decimal
	DisbursementGST            decimal.Decimal
	DisbursementWithholdingTax decimal.Decimal

	InquiryMode string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveDepositProvider returns the provider configured for a deposit
// method, or "" when the method is not assigned to any provider.
func (m *Merchant) ResolveDepositProvider(method string) string {
	if name, ok := m.DepositRouting[method]; ok && name != "" {
		return name
	}
	return m.DepositMethod
}

// ResolveWithdrawalProvider returns the provider configured for a withdrawal
// method, or "" when the method is not assigned to any provider.
func (m *Merchant) ResolveWithdrawalProvider(method string) string {
	if name, ok := m.WithdrawalRouting[method]; ok && name != "" {
		return name
	}
	return m.WithdrawalMethod
}

// PayoutWebhookURL picks the endpoint for payout notifications: merchants in
// SEPARATE mode receive payouts on a dedicated URL.
func (m *Merchant) PayoutWebhookURL() string {
	if m.CallbackMode == CallbackModeSeparate && m.PayoutCallbackURL != "" {
		return m.PayoutCallbackURL
	}
	return m.WebhookURL
}
