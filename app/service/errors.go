package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrMerchantNotFound     = errors.New("merchant not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNoProviderConfigured = errors.New("no provider configured for payment method")
	ErrProviderUnsupported  = errors.New("provider is not supported")
	ErrDuplicateOrderID     = errors.New("order id already used")
	ErrInsufficientBalance  = errors.New("insufficient disbursable balance")
	ErrAmountBelowMinimum   = errors.New("amount is below the minimum payout")
	ErrProviderRejected     = errors.New("provider rejected the request")
	ErrCallbackRejected     = errors.New("callback rejected")
)
