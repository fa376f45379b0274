package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/assanpay/gateway/app/entity"
)

var (
	ErrDisbursementNotFound      = errors.New("disbursement not found")
	ErrDisbursementAlreadyExists = errors.New("disbursement already exists")
)

const disbursementColumns = `
	id, system_order_id, merchant_custom_order_id, merchant_id,
	transaction_amount, commission, gst, withholding_tax, merchant_amount,
	account, provider, status, response_message,
	provider_details_json,
	callback_sent, callback_response,
	webhook_status, webhook_attempts, webhook_next_at, webhook_last_error,
	disbursement_date, created_at, updated_at
`

type DisbursementRepository struct {
	db DBTX
}

func NewDisbursementRepository(db DBTX) *DisbursementRepository {
	return &DisbursementRepository{db: db}
}

func (r *DisbursementRepository) Create(ctx context.Context, d *entity.Disbursement) error {
	detailsJSON, err := serializeProviderDetails(d.ProviderDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO disbursements (
			system_order_id, merchant_custom_order_id, merchant_id,
			transaction_amount, commission, gst, withholding_tax, merchant_amount,
			account, provider, status, response_message,
			provider_details_json,
			callback_sent, callback_response,
			webhook_status, webhook_attempts, webhook_next_at, webhook_last_error,
			disbursement_date, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		d.SystemOrderID,
		d.MerchantCustomOrderID,
		d.MerchantID,
		d.TransactionAmount,
		d.Commission,
		d.GST,
		d.WithholdingTax,
		d.MerchantAmount,
		d.Account,
		d.Provider,
		string(d.Status),
		nullableStringValue(d.ResponseMessage),
		detailsJSON,
		d.CallbackSent,
		nullableStringValue(d.CallbackResponse),
		d.WebhookStatus,
		d.WebhookAttempts,
		nullableTimeValue(d.WebhookNextAt),
		nullableStringValue(d.WebhookLastErr),
		d.DisbursementDate,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDisbursementAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

func (r *DisbursementRepository) FindByReference(ctx context.Context, reference string) (*entity.Disbursement, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursements
		WHERE system_order_id = ? OR merchant_custom_order_id = ?
		LIMIT 1
	`

	d := &entity.Disbursement{}
	if err := scanDisbursement(r.db.QueryRowContext(ctx, query, reference, reference), d); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return d, nil
}

// FindByMerchantOrderID backs the duplicate-order check on payout creation.
func (r *DisbursementRepository) FindByMerchantOrderID(ctx context.Context, merchantID uint64, orderID string) (*entity.Disbursement, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursements
		WHERE merchant_id = ? AND merchant_custom_order_id = ?
		LIMIT 1
	`

	d := &entity.Disbursement{}
	if err := scanDisbursement(r.db.QueryRowContext(ctx, query, merchantID, orderID), d); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return d, nil
}

// UpdateCallbackAudit mirrors the transaction variant for replayed payout
// notifications.
func (r *DisbursementRepository) UpdateCallbackAudit(ctx context.Context, d *entity.Disbursement) error {
	detailsJSON, err := serializeProviderDetails(d.ProviderDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE disbursements SET
			response_message = ?,
			provider_details_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.ExecContext(ctx, query,
		nullableStringValue(d.ResponseMessage),
		detailsJSON,
		d.UpdatedAt,
		d.ID,
	)
	return err
}

func (r *DisbursementRepository) FinalizeIfPending(ctx context.Context, d *entity.Disbursement) (bool, error) {
	detailsJSON, err := serializeProviderDetails(d.ProviderDetails)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE disbursements SET
			status = ?,
			response_message = ?,
			provider_details_json = ?,
			webhook_status = ?,
			webhook_next_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(d.Status),
		nullableStringValue(d.ResponseMessage),
		detailsJSON,
		d.WebhookStatus,
		nullableTimeValue(d.WebhookNextAt),
		d.UpdatedAt,
		d.ID,
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

func (r *DisbursementRepository) UpdateWebhookDelivery(ctx context.Context, d *entity.Disbursement) error {
	query := `
		UPDATE disbursements SET
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
		d.CallbackSent,
		nullableStringValue(d.CallbackResponse),
		d.WebhookStatus,
		d.WebhookAttempts,
		nullableTimeValue(d.WebhookNextAt),
		nullableStringValue(d.WebhookLastErr),
		d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDisbursementNotFound
	}
	return nil
}

func (r *DisbursementRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Disbursement, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursements
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, string(entity.StatusPending), cutoff, limit)
}

func (r *DisbursementRepository) ListDueWebhooks(ctx context.Context, now time.Time, limit int32) ([]*entity.Disbursement, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursements
		WHERE webhook_status = ?
		  AND webhook_next_at IS NOT NULL
		  AND webhook_next_at <= ?
		ORDER BY webhook_next_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, entity.WebhookPending, now, limit)
}

func (r *DisbursementRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Disbursement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	disbursements := make([]*entity.Disbursement, 0)
	for rows.Next() {
		item := &entity.Disbursement{}
		if err := scanDisbursement(rows, item); err != nil {
			return nil, err
		}
		disbursements = append(disbursements, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return disbursements, nil
}

func scanDisbursement(scan rowScanner, d *entity.Disbursement) error {
	var status string
	var responseMessage sql.NullString
	var detailsJSON string
	var callbackResponse sql.NullString
	var webhookNextAt sql.NullTime
	var webhookLastErr sql.NullString

	err := scan.Scan(
		&d.ID,
		&d.SystemOrderID,
		&d.MerchantCustomOrderID,
		&d.MerchantID,
		&d.TransactionAmount,
		&d.Commission,
		&d.GST,
		&d.WithholdingTax,
		&d.MerchantAmount,
		&d.Account,
		&d.Provider,
		&status,
		&responseMessage,
		&detailsJSON,
		&d.CallbackSent,
		&callbackResponse,
		&d.WebhookStatus,
		&d.WebhookAttempts,
		&webhookNextAt,
		&webhookLastErr,
		&d.DisbursementDate,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return err
	}

	d.Status = entity.TxStatus(status)
	d.ResponseMessage = stringPtrFromNull(responseMessage)
	d.CallbackResponse = stringPtrFromNull(callbackResponse)
	d.WebhookNextAt = timePtrFromNull(webhookNextAt)
	d.WebhookLastErr = stringPtrFromNull(webhookLastErr)

	details, err := parseProviderDetails(detailsJSON)
	if err != nil {
		return err
	}
	d.ProviderDetails = details

	return nil
}
