package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/app/repository"
	"github.com/assanpay/gateway/app/types"
)

// CreatePayout debits the merchant's disbursable balance up front, then
// places the order with the provider. A provider rejection leaves a failed
// disbursement row behind and returns the full debit to the balance.
func (s *PaymentService) CreatePayout(ctx context.Context, req *types.PayoutRequest) (*entity.Disbursement, error) {
	merchant, err := s.merchantRepo.FindByUID(ctx, req.MerchantUID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	minAmount := decimal.NewFromFloat(s.paymentsCfg.MinPayoutAmount)
	if req.Amount.LessThan(minAmount) {
		return nil, ErrAmountBelowMinimum
	}

	existing, err := s.disbRepo.FindByMerchantOrderID(ctx, merchant.MerchantID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateOrderID
	}

	providerName := merchant.ResolveWithdrawalProvider(req.Method)
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

	commission := req.Amount.Mul(merchant.DisbursementRate).Round(2)
	gst := req.Amount.Mul(merchant.DisbursementGST).Round(2)
	withholding := req.Amount.Mul(merchant.DisbursementWithholdingTax).Round(2)
	merchantAmount := req.Amount.Add(commission).Add(gst).Add(withholding)

	debited, err := s.merchantRepo.DebitDisbursable(ctx, merchant.MerchantID, merchantAmount)
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	disbursement := &entity.Disbursement{
		SystemOrderID:         newSystemReference("D", now),
		MerchantCustomOrderID: req.OrderID,
		MerchantID:            merchant.MerchantID,
		TransactionAmount:     req.Amount,
		Commission:            commission,
		GST:                   gst,
		WithholdingTax:        withholding,
		MerchantAmount:        merchantAmount,
		Account:               req.Account,
		Provider:              adapter.Name(),
		Status:                entity.StatusPending,
		ProviderDetails: entity.ProviderDetails{
			Name:    adapter.Name(),
			SubName: req.Method,
			Account: req.Account,
		},
		DisbursementDate: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.disbRepo.Create(ctx, disbursement); err != nil {
		_ = s.merchantRepo.CreditDisbursable(ctx, merchant.MerchantID, merchantAmount)
		if errors.Is(err, repository.ErrDisbursementAlreadyExists) {
			return nil, ErrDuplicateOrderID
		}
		return nil, err
	}

	receipt, err := adapter.CreatePayout(ctx, &provider.PayoutIntent{
		Reference: disbursement.SystemOrderID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Account:   req.Account,
		Channel:   req.Method,
	})
	if err != nil {
		s.failPayout(ctx, disbursement, merchant.MerchantID, err.Error(), now)
		return disbursement, nil
	}

	disbursement.ProviderDetails.ExternalID = receipt.ExternalID
	if receipt.Message != "" {
		msg := receipt.Message
		disbursement.ResponseMessage = &msg
	}

	switch receipt.Status {
	case entity.StatusFailed:
		s.failPayout(ctx, disbursement, merchant.MerchantID, receipt.Message, now)
	case entity.StatusCompleted:
		disbursement.Status = entity.StatusCompleted
		s.markDisbursementWebhookDue(disbursement, now)
		disbursement.UpdatedAt = now
		if _, err := s.disbRepo.FinalizeIfPending(ctx, disbursement); err != nil {
			return nil, err
		}
	}

	return disbursement, nil
}

// failPayout records the terminal failure and reverses the balance debit.
// The credit is issued only when the guarded update applied; a row already
// finalized elsewhere keeps its own refund accounting.
func (s *PaymentService) failPayout(ctx context.Context, d *entity.Disbursement, merchantID uint64, reason string, now time.Time) {
	d.Status = entity.StatusFailed
	if reason != "" {
		msg := truncate(reason, 1024)
		d.ResponseMessage = &msg
	}
	s.markDisbursementWebhookDue(d, now)
	d.UpdatedAt = now

	applied, err := s.disbRepo.FinalizeIfPending(ctx, d)
	if err != nil || !applied {
		return
	}
	_ = s.merchantRepo.CreditDisbursable(ctx, merchantID, d.MerchantAmount)
}

func (s *PaymentService) markDisbursementWebhookDue(d *entity.Disbursement, now time.Time) {
	next := now.Add(s.webhookInitialDelay())
	d.WebhookStatus = entity.WebhookPending
	d.WebhookAttempts = 0
	d.WebhookNextAt = &next
	d.WebhookLastErr = nil
}
