package service

import (
	"context"
	"time"

	"github.com/assanpay/gateway/app/entity"
)

// RunSweepPendingBatch closes out transactions that outlived the pending
// timeout. Collections are failed outright; disbursements are verified
// against the provider and only closed on a terminal answer.
func (s *PaymentService) RunSweepPendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)

	var firstErr error

	transactions, err := s.txRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		firstErr = keepFirstErr(firstErr, err)
	}
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		merchant, err := s.merchantRepo.FindByID(ctx, tx.MerchantID)
		if err != nil || merchant == nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if _, err := s.finalizePayin(ctx, tx, merchant, entity.StatusFailed, "", "expired: no confirmation within pending timeout"); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	disbursements, err := s.disbRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		firstErr = keepFirstErr(firstErr, err)
	}
	for _, d := range disbursements {
		if d == nil {
			continue
		}
		status, err := s.liveStatus(ctx, d.Provider, d.SystemOrderID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !status.Terminal() {
			continue
		}

		if status == entity.StatusFailed {
			s.failPayout(ctx, d, d.MerchantID, "failed on sweep verification", now)
			continue
		}

		d.Status = entity.StatusCompleted
		s.markDisbursementWebhookDue(d, now)
		d.UpdatedAt = now
		if _, err := s.disbRepo.FinalizeIfPending(ctx, d); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunDispatchWebhooksBatch delivers due merchant notifications for both
// transactions and disbursements.
func (s *PaymentService) RunDispatchWebhooksBatch(ctx context.Context) error {
	now := time.Now().UTC()

	var firstErr error

	transactions, err := s.txRepo.ListDueWebhooks(ctx, now, s.batchSize())
	if err != nil {
		firstErr = keepFirstErr(firstErr, err)
	}
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		if err := s.dispatchTransactionWebhook(ctx, tx, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	disbursements, err := s.disbRepo.ListDueWebhooks(ctx, now, s.batchSize())
	if err != nil {
		firstErr = keepFirstErr(firstErr, err)
	}
	for _, d := range disbursements {
		if d == nil {
			continue
		}
		if err := s.dispatchDisbursementWebhook(ctx, d, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}
