package service

import (
	"context"
	"time"

	"github.com/assanpay/gateway/app/entity"
)

// PayinStatus resolves a transaction by either reference. Merchants in
// live inquiry mode get a fresh answer from the provider for rows that
// are still pending; the refreshed status is persisted on the way out.
func (s *PaymentService) PayinStatus(ctx context.Context, reference string) (*entity.Transaction, error) {
	tx, err := s.txRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if tx.Status.Terminal() {
		return tx, nil
	}

	merchant, err := s.merchantRepo.FindByID(ctx, tx.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil || merchant.InquiryMode != entity.InquiryModeLive {
		return tx, nil
	}

	status, err := s.liveStatus(ctx, tx.ProviderDetails.Name, tx.TransactionID)
	if err != nil || !status.Terminal() {
		return tx, nil
	}

	if _, err := s.finalizePayin(ctx, tx, merchant, status, "", ""); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *PaymentService) PayoutStatus(ctx context.Context, reference string) (*entity.Disbursement, error) {
	d, err := s.disbRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrTransactionNotFound
	}
	if d.Status.Terminal() {
		return d, nil
	}

	merchant, err := s.merchantRepo.FindByID(ctx, d.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil || merchant.InquiryMode != entity.InquiryModeLive {
		return d, nil
	}

	status, err := s.liveStatus(ctx, d.Provider, d.SystemOrderID)
	if err != nil || !status.Terminal() {
		return d, nil
	}

	now := time.Now().UTC()
	if status == entity.StatusFailed {
		s.failPayout(ctx, d, d.MerchantID, "failed on provider inquiry", now)
		return d, nil
	}

	d.Status = entity.StatusCompleted
	s.markDisbursementWebhookDue(d, now)
	d.UpdatedAt = now
	if _, err := s.disbRepo.FinalizeIfPending(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PaymentService) liveStatus(ctx context.Context, providerName, reference string) (entity.TxStatus, error) {
	adapter, err := s.providerReg.Get(providerName)
	if err != nil {
		return entity.StatusPending, err
	}
	return adapter.QueryStatus(ctx, reference)
}
