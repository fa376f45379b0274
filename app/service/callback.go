package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/provider"
)

// HandlePayinCallback applies a provider notification to a collection
// transaction. Terminal transitions go through a guarded update, so a
// replayed or duplicate callback leaves the row untouched.
func (s *PaymentService) HandlePayinCallback(ctx context.Context, providerName string, req *provider.CallbackRequest) (*entity.Transaction, error) {
	adapter, event, err := s.parseCallback(providerName, req)
	if err != nil {
		return nil, err
	}

	tx, err := s.txRepo.FindByReference(ctx, event.Reference)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if tx.Status.Terminal() {
		// Replays refresh the audit columns but never re-run side effects.
		if applyTransactionAudit(tx, event) {
			_ = s.txRepo.UpdateCallbackAudit(ctx, tx)
		}
		return tx, nil
	}

	status := event.Status
	if event.VerifyRemotely {
		status, err = adapter.QueryStatus(ctx, event.Reference)
		if err != nil {
			return nil, fmt.Errorf("%w: verification failed: %v", ErrCallbackRejected, err)
		}
	}
	if !status.Terminal() {
		return tx, nil
	}

	merchant, err := s.merchantRepo.FindByID(ctx, tx.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	if _, err := s.finalizePayin(ctx, tx, merchant, status, event.ExternalID, event.Message); err != nil {
		return nil, err
	}

	return tx, nil
}

// finalizePayin writes the terminal state and, on completion, queues the
// settlement task. The settled amount was snapshotted at creation and is
// left untouched. The guarded update makes the whole step idempotent.
func (s *PaymentService) finalizePayin(ctx context.Context, tx *entity.Transaction, merchant *entity.Merchant, status entity.TxStatus, externalID, message string) (bool, error) {
	now := time.Now().UTC()
	tx.Status = status
	if externalID != "" {
		tx.ProviderDetails.ExternalID = externalID
	}
	if message != "" {
		msg := truncate(message, 1024)
		tx.ResponseMessage = &msg
	}
	s.markTransactionWebhookDue(tx, now)
	tx.UpdatedAt = now

	applied, err := s.txRepo.FinalizeIfPending(ctx, tx)
	if err != nil || !applied {
		return false, err
	}

	if status == entity.StatusCompleted {
		// A row finalized again after a manual status reset must not queue
		// settlement twice.
		pending, listErr := s.taskRepo.ListPendingForTransaction(ctx, tx.TransactionID)
		if listErr != nil || len(pending) == 0 {
			_ = s.taskRepo.Create(ctx, &entity.ScheduledTask{
				TransactionID: tx.TransactionID,
				Status:        entity.TaskPending,
				ScheduledAt:   s.settlementDate(now, merchant.SettlementDuration),
				CreatedAt:     now,
			})
		}
	}

	return true, nil
}

// HandlePayoutCallback applies a provider notification to a disbursement.
// A failure reported for a pending payout returns the debited amount to
// the merchant's balance.
func (s *PaymentService) HandlePayoutCallback(ctx context.Context, providerName string, req *provider.CallbackRequest) (*entity.Disbursement, error) {
	adapter, event, err := s.parseCallback(providerName, req)
	if err != nil {
		return nil, err
	}

	d, err := s.disbRepo.FindByReference(ctx, event.Reference)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrTransactionNotFound
	}
	if d.Status.Terminal() {
		if applyDisbursementAudit(d, event) {
			_ = s.disbRepo.UpdateCallbackAudit(ctx, d)
		}
		return d, nil
	}

	status := event.Status
	if event.VerifyRemotely {
		status, err = adapter.QueryStatus(ctx, event.Reference)
		if err != nil {
			return nil, fmt.Errorf("%w: verification failed: %v", ErrCallbackRejected, err)
		}
	}
	if !status.Terminal() {
		return d, nil
	}

	now := time.Now().UTC()
	if event.ExternalID != "" {
		d.ProviderDetails.ExternalID = event.ExternalID
	}
	if event.Message != "" {
		msg := truncate(event.Message, 1024)
		d.ResponseMessage = &msg
	}

	if status == entity.StatusFailed {
		s.failPayout(ctx, d, d.MerchantID, event.Message, now)
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

func applyTransactionAudit(tx *entity.Transaction, event *provider.CallbackEvent) bool {
	changed := false
	if event.ExternalID != "" && tx.ProviderDetails.ExternalID != event.ExternalID {
		tx.ProviderDetails.ExternalID = event.ExternalID
		changed = true
	}
	if event.Message != "" {
		msg := truncate(event.Message, 1024)
		if tx.ResponseMessage == nil || *tx.ResponseMessage != msg {
			tx.ResponseMessage = &msg
			changed = true
		}
	}
	if changed {
		tx.UpdatedAt = time.Now().UTC()
	}
	return changed
}

func applyDisbursementAudit(d *entity.Disbursement, event *provider.CallbackEvent) bool {
	changed := false
	if event.ExternalID != "" && d.ProviderDetails.ExternalID != event.ExternalID {
		d.ProviderDetails.ExternalID = event.ExternalID
		changed = true
	}
	if event.Message != "" {
		msg := truncate(event.Message, 1024)
		if d.ResponseMessage == nil || *d.ResponseMessage != msg {
			d.ResponseMessage = &msg
			changed = true
		}
	}
	if changed {
		d.UpdatedAt = time.Now().UTC()
	}
	return changed
}

func (s *PaymentService) parseCallback(providerName string, req *provider.CallbackRequest) (provider.Adapter, *provider.CallbackEvent, error) {
	adapter, err := s.providerReg.Get(providerName)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, nil, ErrProviderUnsupported
		}
		return nil, nil, err
	}

	event, err := adapter.ParseCallback(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}
	if event == nil || event.Reference == "" {
		return nil, nil, ErrCallbackRejected
	}

	return adapter, event, nil
}
