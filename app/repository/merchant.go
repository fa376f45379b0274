package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

var ErrMerchantNotFound = errors.New("merchant not found")

const merchantColumns = `
	merchant_id, uid, balance_to_disburse,
	deposit_method, deposit_routing_json,
	withdrawal_method, withdrawal_routing_json,
	webhook_url, payout_callback_url, callback_mode, encrypted, callback_key,
	commission_rate, settlement_duration,
	disbursement_rate, disbursement_gst, disbursement_withholding_tax,
	inquiry_mode, created_at, updated_at
`

type MerchantRepository struct {
	db DBTX
}

func NewMerchantRepository(db DBTX) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) FindByUID(ctx context.Context, uid string) (*entity.Merchant, error) {
	query := `
		SELECT ` + merchantColumns + `
		FROM merchants
		WHERE uid = ?
		LIMIT 1
	`
	return r.findOne(ctx, query, uid)
}

func (r *MerchantRepository) FindByID(ctx context.Context, merchantID uint64) (*entity.Merchant, error) {
	query := `
		SELECT ` + merchantColumns + `
		FROM merchants
		WHERE merchant_id = ?
		LIMIT 1
	`
	return r.findOne(ctx, query, merchantID)
}

// DebitDisbursable atomically takes amount from the merchant's disbursable
// balance. The balance check lives in the statement itself; false means the
// balance was short and nothing changed.
func (r *MerchantRepository) DebitDisbursable(ctx context.Context, merchantID uint64, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE merchants
		SET balance_to_disburse = balance_to_disburse - ?, updated_at = ?
		WHERE merchant_id = ? AND balance_to_disburse >= ?
	`

	result, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC(), merchantID, amount)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreditDisbursable returns amount to the merchant's disbursable balance,
// used both for settlement credits and for reversing a failed payout.
func (r *MerchantRepository) CreditDisbursable(ctx context.Context, merchantID uint64, amount decimal.Decimal) error {
	query := `
		UPDATE merchants
		SET balance_to_disburse = balance_to_disburse + ?, updated_at = ?
		WHERE merchant_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC(), merchantID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMerchantNotFound
	}
	return nil
}

func (r *MerchantRepository) findOne(ctx context.Context, query string, arg interface{}) (*entity.Merchant, error) {
	merchant := &entity.Merchant{}
	if err := scanMerchant(r.db.QueryRowContext(ctx, query, arg), merchant); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return merchant, nil
}

func scanMerchant(scan rowScanner, m *entity.Merchant) error {
	var depositRoutingJSON string
	var withdrawalRoutingJSON string
	var payoutCallbackURL sql.NullString

	err := scan.Scan(
		&m.MerchantID,
		&m.UID,
		&m.BalanceToDisburse,
		&m.DepositMethod,
		&depositRoutingJSON,
		&m.WithdrawalMethod,
		&withdrawalRoutingJSON,
		&m.WebhookURL,
		&payoutCallbackURL,
		&m.CallbackMode,
		&m.Encrypted,
		&m.CallbackKey,
		&m.CommissionRate,
		&m.SettlementDuration,
		&m.DisbursementRate,
		&m.DisbursementGST,
		&m.DisbursementWithholdingTax,
		&m.InquiryMode,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if payoutCallbackURL.Valid {
		m.PayoutCallbackURL = payoutCallbackURL.String
	}

	depositRouting, err := parseRouting(depositRoutingJSON)
	if err != nil {
		return err
	}
	m.DepositRouting = depositRouting

	withdrawalRouting, err := parseRouting(withdrawalRoutingJSON)
	if err != nil {
		return err
	}
	m.WithdrawalRouting = withdrawalRouting

	return nil
}
