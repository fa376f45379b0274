package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// NewModuleLogger returns a logger tagged with the owning module so log
// lines can be filtered per component.
func NewModuleLogger(module string) *logrus.Entry {
	return logrus.WithField("module", module)
}

// LoggerWithContext attaches the request id from the current HTTP request,
// when one is present.
func LoggerWithContext(logger *logrus.Entry, ctx echo.Context) *logrus.Entry {
	requestID := ctx.Request().Header.Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = ctx.Response().Header().Get(echo.HeaderXRequestID)
	}
	if requestID == "" {
		return logger
	}
	return logger.WithField("request_id", requestID)
}
