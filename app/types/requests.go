package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PayinRequest struct {
	MerchantUID string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	MSISDN      string          `json:"msisdn"`
	Method      string          `json:"method"`
	OrderID     string          `json:"order_id"`
}

func NewPayinRequestFromContext(ctx echo.Context) (*PayinRequest, error) {
	var body PayinRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.MerchantUID = strings.TrimSpace(ctx.Param("merchantId"))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.MSISDN = strings.TrimSpace(body.MSISDN)
	body.Method = strings.ToLower(strings.TrimSpace(body.Method))
	body.OrderID = strings.TrimSpace(body.OrderID)

	return &body, nil
}

func (r *PayinRequest) Validate() error {
	if r.MerchantUID == "" {
		return errors.New("merchant id is required")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if r.Method == "" {
		return errors.New("method is required")
	}
	return nil
}

type PayoutRequest struct {
	MerchantUID string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Account     string          `json:"account"`
	Method      string          `json:"method"`
	OrderID     string          `json:"order_id"`
}

func NewPayoutRequestFromContext(ctx echo.Context) (*PayoutRequest, error) {
	var body PayoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.MerchantUID = strings.TrimSpace(ctx.Param("merchantId"))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Account = strings.TrimSpace(body.Account)
	body.Method = strings.ToLower(strings.TrimSpace(body.Method))
	body.OrderID = strings.TrimSpace(body.OrderID)

	return &body, nil
}

func (r *PayoutRequest) Validate() error {
	if r.MerchantUID == "" {
		return errors.New("merchant id is required")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if r.Account == "" {
		return errors.New("account is required")
	}
	if r.Method == "" {
		return errors.New("method is required")
	}
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

type StatusInquiryRequest struct {
	Reference string
}

func NewStatusInquiryRequestFromContext(ctx echo.Context) (*StatusInquiryRequest, error) {
	return &StatusInquiryRequest{Reference: strings.TrimSpace(ctx.QueryParam("ref"))}, nil
}

func (r *StatusInquiryRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("ref is required")
	}
	return nil
}
