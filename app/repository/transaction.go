package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/assanpay/gateway/app/entity"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
)

const transactionColumns = `
	id, transaction_id, merchant_transaction_id, merchant_id,
	original_amount, settled_amount, type, status,
	provider_details_json, response_message,
	callback_sent, callback_response,
	webhook_status, webhook_attempts, webhook_next_at, webhook_last_error,
	date_time, created_at, updated_at
`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	detailsJSON, err := serializeProviderDetails(tx.ProviderDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (
			transaction_id, merchant_transaction_id, merchant_id,
			original_amount, settled_amount, type, status,
			provider_details_json, response_message,
			callback_sent, callback_response,
			webhook_status, webhook_attempts, webhook_next_at, webhook_last_error,
			date_time, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.TransactionID,
		tx.MerchantTransactionID,
		tx.MerchantID,
		tx.OriginalAmount,
		tx.SettledAmount,
		tx.Type,
		string(tx.Status),
		detailsJSON,
		nullableStringValue(tx.ResponseMessage),
		tx.CallbackSent,
		nullableStringValue(tx.CallbackResponse),
		tx.WebhookStatus,
		tx.WebhookAttempts,
		nullableTimeValue(tx.WebhookNextAt),
		nullableStringValue(tx.WebhookLastErr),
		tx.DateTime,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = uint64(id)
	return nil
}

// FindByReference resolves either the system reference or the merchant's
// own order id; callers do not know which kind they hold.
func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_id = ? OR merchant_transaction_id = ?
		LIMIT 1
	`

	tx := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, reference, reference), tx); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return tx, nil
}

// FinalizeIfPending writes the terminal state carried on tx, guarded so a
// row already in a terminal status is left untouched. Returns false when
// the guard rejected the transition.
func (r *TransactionRepository) FinalizeIfPending(ctx context.Context, tx *entity.Transaction) (bool, error) {
	detailsJSON, err := serializeProviderDetails(tx.ProviderDetails)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE transactions SET
			status = ?,
			settled_amount = ?,
			provider_details_json = ?,
			response_message = ?,
			webhook_status = ?,
			webhook_next_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(tx.Status),
		tx.SettledAmount,
		detailsJSON,
		nullableStringValue(tx.ResponseMessage),
		tx.WebhookStatus,
		nullableTimeValue(tx.WebhookNextAt),
		tx.UpdatedAt,
		tx.ID,
		string(entity.StatusPending),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateCallbackAudit refreshes the message and provider detail columns
// without touching the status, for notifications that replay an outcome
// the row already reached.
func (r *TransactionRepository) UpdateCallbackAudit(ctx context.Context, tx *entity.Transaction) error {
	detailsJSON, err := serializeProviderDetails(tx.ProviderDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE transactions SET
			response_message = ?,
			provider_details_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.ExecContext(ctx, query,
		nullableStringValue(tx.ResponseMessage),
		detailsJSON,
		tx.UpdatedAt,
		tx.ID,
	)
	return err
}

func (r *TransactionRepository) UpdateWebhookDelivery(ctx context.Context, tx *entity.Transaction) error {
	query := `
		UPDATE transactions SET
			callback_sent = ?,
			callback_response = ?,
			webhook_status = ?,
			webhook_attempts = ?,
			webhook_next_at = ?,
			webhook_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.CallbackSent,
		nullableStringValue(tx.CallbackResponse),
		tx.WebhookStatus,
		tx.WebhookAttempts,
		nullableTimeValue(tx.WebhookNextAt),
		nullableStringValue(tx.WebhookLastErr),
		tx.UpdatedAt,
		tx.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, string(entity.StatusPending), cutoff, limit)
}

func (r *TransactionRepository) ListDueWebhooks(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE webhook_status = ?
		  AND webhook_next_at IS NOT NULL
		  AND webhook_next_at <= ?
		ORDER BY webhook_next_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, entity.WebhookPending, now, limit)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]*entity.Transaction, 0)
	for rows.Next() {
		item := &entity.Transaction{}
		if err := scanTransaction(rows, item); err != nil {
			return nil, err
		}
		transactions = append(transactions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(scan rowScanner, tx *entity.Transaction) error {
	var status string
	var detailsJSON string
	var responseMessage sql.NullString
	var callbackResponse sql.NullString
	var webhookNextAt sql.NullTime
	var webhookLastErr sql.NullString

	err := scan.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.MerchantTransactionID,
		&tx.MerchantID,
		&tx.OriginalAmount,
		&tx.SettledAmount,
		&tx.Type,
		&status,
		&detailsJSON,
		&responseMessage,
		&tx.CallbackSent,
		&callbackResponse,
		&tx.WebhookStatus,
		&tx.WebhookAttempts,
		&webhookNextAt,
		&webhookLastErr,
		&tx.DateTime,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return err
	}

	tx.Status = entity.TxStatus(status)
	tx.ResponseMessage = stringPtrFromNull(responseMessage)
	tx.CallbackResponse = stringPtrFromNull(callbackResponse)
	tx.WebhookNextAt = timePtrFromNull(webhookNextAt)
	tx.WebhookLastErr = stringPtrFromNull(webhookLastErr)

	details, err := parseProviderDetails(detailsJSON)
	if err != nil {
		return err
	}
	tx.ProviderDetails = details

	return nil
}
