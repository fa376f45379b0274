package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/app/repository"
	"github.com/assanpay/gateway/app/types"
)

type PayinResult struct {
	Transaction *entity.Transaction
	CheckoutURL string
}

// CreatePayin stores the pending transaction before the provider call so the
// commission terms are fixed at creation and the row survives a crash mid
// request. The settled amount is snapshotted here and never recomputed.
func (s *PaymentService) CreatePayin(ctx context.Context, req *types.PayinRequest) (*PayinResult, error) {
	merchant, err := s.merchantRepo.FindByUID(ctx, req.MerchantUID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	providerName := merchant.ResolveDepositProvider(req.Method)
	if providerName == "" {
		return nil, ErrNoProviderConfigured
	}
	adapter, err := s.providerReg.Get(providerName)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	now := time.Now().UTC()
	reference := newSystemReference(payinReferencePrefix(adapter.Name()), now)
	merchantReference := reference
	if req.OrderID != "" {
		merchantReference = uniqueMerchantReference(req.OrderID)
	}

	commission := req.Amount.Mul(merchant.CommissionRate).Round(2)
	tx := &entity.Transaction{
		TransactionID:         reference,
		MerchantTransactionID: merchantReference,
		MerchantID:            merchant.MerchantID,
		OriginalAmount:        req.Amount,
		SettledAmount:         req.Amount.Sub(commission),
		Type:                  req.Method,
		Status:                entity.StatusPending,
		ProviderDetails: entity.ProviderDetails{
			Name:    adapter.Name(),
			SubName: req.Method,
			MSISDN:  req.MSISDN,
		},
		DateTime:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.txRepo.Create(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrTransactionAlreadyExists) {
			return nil, ErrDuplicateOrderID
		}
		return nil, err
	}

	receipt, err := adapter.CreatePayin(ctx, &provider.PayinIntent{
		Reference: reference,
		Amount:    req.Amount,
		Currency:  req.Currency,
		MSISDN:    req.MSISDN,
		Channel:   req.Method,
	})
	if err != nil {
		_, _ = s.finalizePayin(ctx, tx, merchant, entity.StatusFailed, "", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}

	tx.ProviderDetails.ExternalID = receipt.ExternalID
	if receipt.Message != "" {
		msg := receipt.Message
		tx.ResponseMessage = &msg
	}
	if receipt.Status.Terminal() {
		if _, err := s.finalizePayin(ctx, tx, merchant, receipt.Status, receipt.ExternalID, receipt.Message); err != nil {
			return nil, err
		}
	}

	return &PayinResult{Transaction: tx, CheckoutURL: receipt.CheckoutURL}, nil
}

// markTransactionWebhookDue queues the merchant notification. Delivery
// waits a short interval so the merchant's redirect handling can finish
// before the webhook lands.
func (s *PaymentService) markTransactionWebhookDue(tx *entity.Transaction, now time.Time) {
	next := now.Add(s.webhookInitialDelay())
	tx.WebhookStatus = entity.WebhookPending
	tx.WebhookAttempts = 0
	tx.WebhookNextAt = &next
	tx.WebhookLastErr = nil
}

func payinReferencePrefix(providerName string) string {
	switch providerName {
	case "bkash_setup":
		return "BK"
	case "starpago":
		return "DEV-"
	default:
		return "T"
	}
}
