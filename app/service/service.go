package service

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/config"
)

const defaultBatchSize = int32(100)

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByReference(ctx context.Context, reference string) (*entity.Transaction, error)
	FinalizeIfPending(ctx context.Context, tx *entity.Transaction) (bool, error)
	UpdateCallbackAudit(ctx context.Context, tx *entity.Transaction) error
	UpdateWebhookDelivery(ctx context.Context, tx *entity.Transaction) error
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Transaction, error)
	ListDueWebhooks(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
}

type disbursementRepository interface {
	Create(ctx context.Context, d *entity.Disbursement) error
	FindByReference(ctx context.Context, reference string) (*entity.Disbursement, error)
	FindByMerchantOrderID(ctx context.Context, merchantID uint64, orderID string) (*entity.Disbursement, error)
	FinalizeIfPending(ctx context.Context, d *entity.Disbursement) (bool, error)
	UpdateCallbackAudit(ctx context.Context, d *entity.Disbursement) error
	UpdateWebhookDelivery(ctx context.Context, d *entity.Disbursement) error
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Disbursement, error)
	ListDueWebhooks(ctx context.Context, now time.Time, limit int32) ([]*entity.Disbursement, error)
}

type merchantRepository interface {
	FindByUID(ctx context.Context, uid string) (*entity.Merchant, error)
	FindByID(ctx context.Context, merchantID uint64) (*entity.Merchant, error)
	DebitDisbursable(ctx context.Context, merchantID uint64, amount decimal.Decimal) (bool, error)
	CreditDisbursable(ctx context.Context, merchantID uint64, amount decimal.Decimal) error
}

type scheduledTaskRepository interface {
	Create(ctx context.Context, task *entity.ScheduledTask) error
	ListPendingForTransaction(ctx context.Context, transactionID string) ([]*entity.ScheduledTask, error)
}

type PaymentService struct {
	txRepo       transactionRepository
	disbRepo     disbursementRepository
	merchantRepo merchantRepository
	taskRepo     scheduledTaskRepository
	providerReg  *provider.Registry
	paymentsCfg  config.PaymentsConfig
	webhookHTTP  *http.Client
	settlementTZ *time.Location
}

func NewPaymentService(
	txRepo transactionRepository,
	disbRepo disbursementRepository,
	merchantRepo merchantRepository,
	taskRepo scheduledTaskRepository,
	providerReg *provider.Registry,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	timeout := paymentsCfg.WebhookHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	loc, err := time.LoadLocation(paymentsCfg.SettlementTimezone)
	if err != nil || loc == nil {
		loc = time.UTC
	}

	return &PaymentService{
		txRepo:       txRepo,
		disbRepo:     disbRepo,
		merchantRepo: merchantRepo,
		taskRepo:     taskRepo,
		providerReg:  providerReg,
		paymentsCfg:  paymentsCfg,
		webhookHTTP:  &http.Client{Timeout: timeout},
		settlementTZ: loc,
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func (s *PaymentService) webhookInitialDelay() time.Duration {
	if s.paymentsCfg.WebhookInitialDelay > 0 {
		return s.paymentsCfg.WebhookInitialDelay
	}
	return 10 * time.Second
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
