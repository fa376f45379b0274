package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/assanpay/gateway/app/factory"
	"github.com/assanpay/gateway/app/mapper"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/app/service"
	"github.com/assanpay/gateway/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("gateway-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (c *PaymentController) CreatePayin(ctx echo.Context) error {
	req, err := types.NewPayinRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.CreatePayin(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create payin failed")
	}

	return ctx.JSON(http.StatusCreated, types.SuccessEnvelope(mapper.TransactionToResponse(result.Transaction, result.CheckoutURL)))
}

func (c *PaymentController) CreatePayout(ctx echo.Context) error {
	req, err := types.NewPayoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreatePayout(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create payout failed")
	}

	return ctx.JSON(http.StatusCreated, types.SuccessEnvelope(mapper.DisbursementToResponse(item)))
}

func (c *PaymentController) HandlePayinCallback(ctx echo.Context) error {
	callbackReq, err := callbackRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	providerName := ctx.Param("provider")
	item, err := c.paymentService.HandlePayinCallback(ctx.Request().Context(), providerName, callbackReq)
	if err != nil {
		return c.writeServiceError(ctx, err, "Payin callback failed")
	}

	factory.LoggerWithContext(c.logger.WithFields(logrus.Fields{
		"provider":  providerName,
		"reference": item.TransactionID,
		"status":    item.Status,
	}), ctx).Info("Payin callback processed")

	return ctx.String(http.StatusOK, "success")
}

func (c *PaymentController) HandlePayoutCallback(ctx echo.Context) error {
	callbackReq, err := callbackRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	providerName := ctx.Param("provider")
	item, err := c.paymentService.HandlePayoutCallback(ctx.Request().Context(), providerName, callbackReq)
	if err != nil {
		return c.writeServiceError(ctx, err, "Payout callback failed")
	}

	factory.LoggerWithContext(c.logger.WithFields(logrus.Fields{
		"provider":  providerName,
		"reference": item.SystemOrderID,
		"status":    item.Status,
	}), ctx).Info("Payout callback processed")

	return ctx.String(http.StatusOK, "success")
}

func (c *PaymentController) PayinStatus(ctx echo.Context) error {
	req, err := types.NewStatusInquiryRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.PayinStatus(ctx.Request().Context(), req.Reference)
	if err != nil {
		return c.writeServiceError(ctx, err, "Payin status inquiry failed")
	}

	return ctx.JSON(http.StatusOK, types.SuccessEnvelope(mapper.TransactionToResponse(item, "")))
}

func (c *PaymentController) PayoutStatus(ctx echo.Context) error {
	req, err := types.NewStatusInquiryRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.PayoutStatus(ctx.Request().Context(), req.Reference)
	if err != nil {
		return c.writeServiceError(ctx, err, "Payout status inquiry failed")
	}

	return ctx.JSON(http.StatusOK, types.SuccessEnvelope(mapper.DisbursementToResponse(item)))
}

func (c *PaymentController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrAmountBelowMinimum),
		errors.Is(err, service.ErrNoProviderConfigured),
		errors.Is(err, service.ErrProviderUnsupported),
		errors.Is(err, service.ErrCallbackRejected):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMerchantNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return c.writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateOrderID):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrProviderRejected):
		return c.writeError(ctx, http.StatusBadGateway, err.Error())
	default:
		c.logger.WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, types.ErrorEnvelope(message))
}

// callbackRequestFromContext captures the raw body, headers and query of a
// provider notification so each adapter can verify its own signature scheme.
func callbackRequestFromContext(ctx echo.Context) (*provider.CallbackRequest, error) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return &provider.CallbackRequest{
		Body:   body,
		Header: ctx.Request().Header,
		Query:  ctx.QueryParams(),
	}, nil
}
