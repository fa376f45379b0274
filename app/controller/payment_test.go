package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/app/service"
	"github.com/assanpay/gateway/config"
)

type controllerTxRepo struct {
	createFn          func(ctx context.Context, tx *entity.Transaction) error
	findByReferenceFn func(ctx context.Context, reference string) (*entity.Transaction, error)
	finalizeFn        func(ctx context.Context, tx *entity.Transaction) (bool, error)
}

func (r *controllerTxRepo) Create(ctx context.Context, tx *entity.Transaction) error {
	if r.createFn != nil {
		return r.createFn(ctx, tx)
	}
	tx.ID = 1
	return nil
}

func (r *controllerTxRepo) FindByReference(ctx context.Context, reference string) (*entity.Transaction, error) {
	if r.findByReferenceFn != nil {
		return r.findByReferenceFn(ctx, reference)
	}
	return nil, nil
}

func (r *controllerTxRepo) FinalizeIfPending(ctx context.Context, tx *entity.Transaction) (bool, error) {
	if r.finalizeFn != nil {
		return r.finalizeFn(ctx, tx)
	}
	return true, nil
}

func (r *controllerTxRepo) UpdateCallbackAudit(context.Context, *entity.Transaction) error {
	return nil
}

func (r *controllerTxRepo) UpdateWebhookDelivery(context.Context, *entity.Transaction) error {
	return nil
}

func (r *controllerTxRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.Transaction, error) {
	return []*entity.Transaction{}, nil
}

func (r *controllerTxRepo) ListDueWebhooks(context.Context, time.Time, int32) ([]*entity.Transaction, error) {
	return []*entity.Transaction{}, nil
}

type controllerDisbRepo struct {
	createFn                func(ctx context.Context, d *entity.Disbursement) error
	findByMerchantOrderIDFn func(ctx context.Context, merchantID uint64, orderID string) (*entity.Disbursement, error)
	findByReferenceFn       func(ctx context.Context, reference string) (*entity.Disbursement, error)
}

func (r *controllerDisbRepo) Create(ctx context.Context, d *entity.Disbursement) error {
	if r.createFn != nil {
		return r.createFn(ctx, d)
	}
	d.ID = 1
	return nil
}

func (r *controllerDisbRepo) FindByReference(ctx context.Context, reference string) (*entity.Disbursement, error) {
	if r.findByReferenceFn != nil {
		return r.findByReferenceFn(ctx, reference)
	}
	return nil, nil
}

func (r *controllerDisbRepo) FindByMerchantOrderID(ctx context.Context, merchantID uint64, orderID string) (*entity.Disbursement, error) {
	if r.findByMerchantOrderIDFn != nil {
		return r.findByMerchantOrderIDFn(ctx, merchantID, orderID)
	}
	return nil, nil
}

func (r *controllerDisbRepo) FinalizeIfPending(context.Context, *entity.Disbursement) (bool, error) {
	return true, nil
}

func (r *controllerDisbRepo) UpdateCallbackAudit(context.Context, *entity.Disbursement) error {
	return nil
}

func (r *controllerDisbRepo) UpdateWebhookDelivery(context.Context, *entity.Disbursement) error {
	return nil
}

func (r *controllerDisbRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.Disbursement, error) {
	return []*entity.Disbursement{}, nil
}

func (r *controllerDisbRepo) ListDueWebhooks(context.Context, time.Time, int32) ([]*entity.Disbursement, error) {
	return []*entity.Disbursement{}, nil
}

type controllerMerchantRepo struct {
	merchant *entity.Merchant
	debitOK  bool
}

func (r *controllerMerchantRepo) FindByUID(_ context.Context, uid string) (*entity.Merchant, error) {
	if r.merchant != nil && r.merchant.UID == uid {
		return r.merchant, nil
	}
	return nil, nil
}

func (r *controllerMerchantRepo) FindByID(_ context.Context, merchantID uint64) (*entity.Merchant, error) {
	if r.merchant != nil && r.merchant.MerchantID == merchantID {
		return r.merchant, nil
	}
	return nil, nil
}

func (r *controllerMerchantRepo) DebitDisbursable(context.Context, uint64, decimal.Decimal) (bool, error) {
	return r.debitOK, nil
}

func (r *controllerMerchantRepo) CreditDisbursable(context.Context, uint64, decimal.Decimal) error {
	return nil
}

type controllerTaskRepo struct{}

func (r *controllerTaskRepo) Create(context.Context, *entity.ScheduledTask) error {
	return nil
}

func (r *controllerTaskRepo) ListPendingForTransaction(context.Context, string) ([]*entity.ScheduledTask, error) {
	return nil, nil
}

type controllerAdapter struct {
	callbackEvent *provider.CallbackEvent
	callbackErr   error
	payinErr      error
}

func (a *controllerAdapter) Name() string { return "payinx" }

func (a *controllerAdapter) CreatePayin(context.Context, *provider.PayinIntent) (*provider.PayinReceipt, error) {
	if a.payinErr != nil {
		return nil, a.payinErr
	}
	return &provider.PayinReceipt{
		ExternalID:  "ext-1",
		CheckoutURL: "https://provider.example/checkout/ext-1",
		Status:      entity.StatusPending,
	}, nil
}

func (a *controllerAdapter) CreatePayout(context.Context, *provider.PayoutIntent) (*provider.PayoutReceipt, error) {
	return &provider.PayoutReceipt{ExternalID: "ext-po-1", Status: entity.StatusPending}, nil
}

func (a *controllerAdapter) ParseCallback(*provider.CallbackRequest) (*provider.CallbackEvent, error) {
	if a.callbackErr != nil {
		return nil, a.callbackErr
	}
	return a.callbackEvent, nil
}

func (a *controllerAdapter) QueryStatus(context.Context, string) (entity.TxStatus, error) {
	return entity.StatusPending, nil
}

func controllerMerchant() *entity.Merchant {
	return &entity.Merchant{
		MerchantID:                 7,
		UID:                        "mrc-7",
		BalanceToDisburse:          decimal.NewFromInt(10000),
		DepositMethod:              "payinx",
		WithdrawalMethod:           "payinx",
		WebhookURL:                 "https://merchant.example/webhook",
		CommissionRate:             decimal.RequireFromString("0.03"),
		DisbursementRate:           decimal.RequireFromString("0.01"),
		DisbursementGST:            decimal.RequireFromString("0.0016"),
		DisbursementWithholdingTax: decimal.RequireFromString("0.002"),
		InquiryMode:                entity.InquiryModeDatabase,
	}
}

func newControllerForTest(txRepo *controllerTxRepo, disbRepo *controllerDisbRepo, merchantRepo *controllerMerchantRepo, adapter provider.Adapter) *PaymentController {
	paymentService := service.NewPaymentService(
		txRepo,
		disbRepo,
		merchantRepo,
		&controllerTaskRepo{},
		provider.NewRegistry(adapter),
		config.PaymentsConfig{
			MinPayoutAmount:      400,
			PendingTimeout:       15 * time.Minute,
			WebhookInitialDelay:  10 * time.Second,
			WebhookMaxAttempts:   3,
			WebhookRetryInterval: time.Minute,
			WebhookHTTPTimeout:   time.Second,
			SettlementTimezone:   "UTC",
			JobBatchSize:         100,
		},
	)
	return NewPaymentController(paymentService)
}

func TestHealth(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	if err := ctrl.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreatePayinBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payin/mrc-7", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayin(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreatePayinSuccess(t *testing.T) {
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant()}
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, merchantRepo, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payin/mrc-7", bytes.NewBufferString(`{"amount":"500.00","currency":"PKR","msisdn":"03001234567","method":"easypaisa","order_id":"ord-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayin(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			TransactionID string `json:"transaction_id"`
			CheckoutURL   string `json:"checkout_url"`
			Status        string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Status != "success" || payload.Data.TransactionID == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Data.CheckoutURL != "https://provider.example/checkout/ext-1" {
		t.Fatalf("checkout url missing: %+v", payload.Data)
	}
	if payload.Data.Status != "pending" {
		t.Fatalf("unexpected status: %+v", payload.Data)
	}
}

func TestCreatePayinProviderFailure(t *testing.T) {
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant()}
	adapter := &controllerAdapter{payinErr: errors.New("upstream gateway timeout")}
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, merchantRepo, adapter)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payin/mrc-7", bytes.NewBufferString(`{"amount":"500.00","currency":"PKR","msisdn":"03001234567","method":"easypaisa"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayin(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "upstream gateway timeout") {
		t.Fatalf("provider message not surfaced: %s", rec.Body.String())
	}
}

func TestCreatePayinUnknownMerchant(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payin/ghost", bytes.NewBufferString(`{"amount":"500.00","currency":"PKR","method":"easypaisa"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("ghost")

	_ = ctrl.CreatePayin(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreatePayoutInsufficientBalance(t *testing.T) {
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant(), debitOK: false}
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, merchantRepo, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payout/mrc-7", bytesBufferPayout())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayout(ctx)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreatePayoutDuplicateOrderID(t *testing.T) {
	disbRepo := &controllerDisbRepo{findByMerchantOrderIDFn: func(context.Context, uint64, string) (*entity.Disbursement, error) {
		return &entity.Disbursement{ID: 4, MerchantCustomOrderID: "po-1"}, nil
	}}
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant(), debitOK: true}
	ctrl := newControllerForTest(&controllerTxRepo{}, disbRepo, merchantRepo, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payout/mrc-7", bytesBufferPayout())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayout(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreatePayoutSuccess(t *testing.T) {
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant(), debitOK: true}
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, merchantRepo, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payout/mrc-7", bytesBufferPayout())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("merchantId")
	ctx.SetParamValues("mrc-7")

	_ = ctrl.CreatePayout(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data struct {
			SystemOrderID  string `json:"system_order_id"`
			MerchantAmount string `json:"merchant_amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Data.SystemOrderID == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Data.MerchantAmount != "1013.6" {
		t.Fatalf("unexpected merchant amount: %+v", payload.Data)
	}
}

func TestHandlePayinCallbackRejected(t *testing.T) {
	adapter := &controllerAdapter{callbackErr: provider.ErrInvalidSignature}
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, adapter)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/callback/payin/payinx", bytes.NewBufferString(`{"order_id":"T1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("payinx")

	_ = ctrl.HandlePayinCallback(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePayinCallbackAcknowledges(t *testing.T) {
	stored := &entity.Transaction{
		ID:                    3,
		TransactionID:         "T20250101120000001abcd",
		MerchantTransactionID: "ord-1-deadbeef",
		MerchantID:            7,
		OriginalAmount:        decimal.NewFromInt(1000),
		Status:                entity.StatusPending,
	}
	txRepo := &controllerTxRepo{findByReferenceFn: func(context.Context, string) (*entity.Transaction, error) {
		copyItem := *stored
		return &copyItem, nil
	}}
	adapter := &controllerAdapter{callbackEvent: &provider.CallbackEvent{
		Reference: "T20250101120000001abcd",
		Status:    entity.StatusCompleted,
	}}
	merchantRepo := &controllerMerchantRepo{merchant: controllerMerchant()}
	ctrl := newControllerForTest(txRepo, &controllerDisbRepo{}, merchantRepo, adapter)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/callback/payin/payinx", bytes.NewBufferString(`{"order_id":"T20250101120000001abcd","status":"success"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("payinx")

	_ = ctrl.HandlePayinCallback(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "success" {
		t.Fatalf("provider expects a plain success body, got %q", rec.Body.String())
	}
}

func TestPayinStatusRequiresRef(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/status-inquiry/payin", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.PayinStatus(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPayinStatusNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerDisbRepo{}, &controllerMerchantRepo{}, &controllerAdapter{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/status-inquiry/payin?ref=missing", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.PayinStatus(e.NewContext(req, rec))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func bytesBufferPayout() *bytes.Buffer {
	return bytes.NewBufferString(`{"amount":"1000","currency":"PKR","account":"03001234567","method":"jazzcash","order_id":"po-1"}`)
}
