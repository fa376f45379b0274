package service

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assanpay/gateway/app/entity"
)

// webhookPayload is the merchant-facing notification body. The merchant
// acknowledges by responding with the literal string "success"; anything
// else counts as a failed delivery.
type webhookPayload struct {
	Amount  decimal.Decimal `json:"amount"`
	MSISDN  string          `json:"msisdn"`
	Time    int64           `json:"time"`
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Type    string          `json:"type"`
}

type encryptedEnvelope struct {
	EncryptedData string `json:"encrypted_data"`
	IV            string `json:"iv"`
	Tag           string `json:"tag"`
}

func (s *PaymentService) dispatchTransactionWebhook(ctx context.Context, tx *entity.Transaction, now time.Time) error {
	merchant, err := s.merchantRepo.FindByID(ctx, tx.MerchantID)
	if err != nil {
		return err
	}
	if merchant == nil || strings.TrimSpace(merchant.WebhookURL) == "" {
		errMsg := "merchant webhook url is empty"
		tx.WebhookStatus = entity.WebhookFailed
		tx.WebhookNextAt = nil
		tx.WebhookLastErr = &errMsg
		tx.UpdatedAt = now
		return s.txRepo.UpdateWebhookDelivery(ctx, tx)
	}

	payload := webhookPayload{
		Amount:  tx.OriginalAmount,
		MSISDN:  tx.ProviderDetails.MSISDN,
		Time:    now.Unix(),
		OrderID: tx.MerchantTransactionID,
		Status:  webhookOutcome(tx.Status),
		Type:    "payin",
	}

	response, err := s.postWebhook(ctx, merchant, merchant.WebhookURL, payload)
	if err != nil {
		s.recordTransactionWebhookFailure(tx, now, err)
		return s.txRepo.UpdateWebhookDelivery(ctx, tx)
	}

	tx.CallbackSent = true
	trimmed := truncate(response, 1024)
	tx.CallbackResponse = &trimmed
	tx.WebhookStatus = entity.WebhookSuccess
	tx.WebhookNextAt = nil
	tx.WebhookLastErr = nil
	tx.UpdatedAt = now
	return s.txRepo.UpdateWebhookDelivery(ctx, tx)
}

func (s *PaymentService) dispatchDisbursementWebhook(ctx context.Context, d *entity.Disbursement, now time.Time) error {
	merchant, err := s.merchantRepo.FindByID(ctx, d.MerchantID)
	if err != nil {
		return err
	}
	targetURL := ""
	if merchant != nil {
		targetURL = strings.TrimSpace(merchant.PayoutWebhookURL())
	}
	if targetURL == "" {
		errMsg := "merchant payout webhook url is empty"
		d.WebhookStatus = entity.WebhookFailed
		d.WebhookNextAt = nil
		d.WebhookLastErr = &errMsg
		d.UpdatedAt = now
		return s.disbRepo.UpdateWebhookDelivery(ctx, d)
	}

	payload := webhookPayload{
		Amount:  d.TransactionAmount,
		MSISDN:  d.Account,
		Time:    now.Unix(),
		OrderID: d.MerchantCustomOrderID,
		Status:  webhookOutcome(d.Status),
		Type:    "payout",
	}

	response, err := s.postWebhook(ctx, merchant, targetURL, payload)
	if err != nil {
		s.recordDisbursementWebhookFailure(d, now, err)
		return s.disbRepo.UpdateWebhookDelivery(ctx, d)
	}

	d.CallbackSent = true
	trimmed := truncate(response, 1024)
	d.CallbackResponse = &trimmed
	d.WebhookStatus = entity.WebhookSuccess
	d.WebhookNextAt = nil
	d.WebhookLastErr = nil
	d.UpdatedAt = now
	return s.disbRepo.UpdateWebhookDelivery(ctx, d)
}

// webhookOutcome is the merchant-facing status label. Merchants only see
// "success" or "failed"; the stored status vocabulary stays internal.
func webhookOutcome(status entity.TxStatus) string {
	if status == entity.StatusCompleted {
		return "success"
	}
	return "failed"
}

func (s *PaymentService) postWebhook(ctx context.Context, merchant *entity.Merchant, targetURL string, payload webhookPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if merchant.Encrypted {
		envelope, err := encryptWebhookBody(merchant.CallbackKey, body)
		if err != nil {
			return "", err
		}
		body, err = json.Marshal(envelope)
		if err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.webhookHTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook endpoint returned status=%d", resp.StatusCode)
	}
	if strings.TrimSpace(string(respBody)) != "success" {
		return "", fmt.Errorf("webhook endpoint did not acknowledge: body=%q", truncate(string(respBody), 128))
	}

	return string(respBody), nil
}

func (s *PaymentService) recordTransactionWebhookFailure(tx *entity.Transaction, now time.Time, dispatchErr error) {
	tx.WebhookAttempts++
	trimmed := truncate(dispatchErr.Error(), 1024)
	tx.WebhookLastErr = &trimmed

	if tx.WebhookAttempts >= s.webhookMaxAttempts() {
		tx.WebhookStatus = entity.WebhookFailed
		tx.WebhookNextAt = nil
	} else {
		next := now.Add(s.webhookRetryInterval())
		tx.WebhookStatus = entity.WebhookPending
		tx.WebhookNextAt = &next
	}
	tx.UpdatedAt = now
}

func (s *PaymentService) recordDisbursementWebhookFailure(d *entity.Disbursement, now time.Time, dispatchErr error) {
	d.WebhookAttempts++
	trimmed := truncate(dispatchErr.Error(), 1024)
	d.WebhookLastErr = &trimmed

	if d.WebhookAttempts >= s.webhookMaxAttempts() {
		d.WebhookStatus = entity.WebhookFailed
		d.WebhookNextAt = nil
	} else {
		next := now.Add(s.webhookRetryInterval())
		d.WebhookStatus = entity.WebhookPending
		d.WebhookNextAt = &next
	}
	d.UpdatedAt = now
}

func (s *PaymentService) webhookMaxAttempts() int32 {
	if s.paymentsCfg.WebhookMaxAttempts > 0 {
		return s.paymentsCfg.WebhookMaxAttempts
	}
	return 1
}

func (s *PaymentService) webhookRetryInterval() time.Duration {
	if s.paymentsCfg.WebhookRetryInterval > 0 {
		return s.paymentsCfg.WebhookRetryInterval
	}
	return 5 * time.Minute
}

// encryptWebhookBody seals the payload with AES-256-GCM under a key derived
// from the merchant's callback key. The GCM tag travels separately so the
// merchant can feed ciphertext, iv and tag to a standard decrypt routine.
func encryptWebhookBody(callbackKey string, body []byte) (*encryptedEnvelope, error) {
	key := sha256.Sum256([]byte(callbackKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, body, nil)
	tagStart := len(sealed) - gcm.Overhead()

	return &encryptedEnvelope{
		EncryptedData: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		IV:            base64.StdEncoding.EncodeToString(iv),
		Tag:           base64.StdEncoding.EncodeToString(sealed[tagStart:]),
	}, nil
}
