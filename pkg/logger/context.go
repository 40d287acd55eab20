package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// Request-scoped loggers travel under the "logger" key: the request-id and
// logging middleware store a logger already enriched with the request id,
// and handlers read it back through FromEcho so every sync and restore log
// line carries the same correlation fields.

// FromContext returns the logger attached to ctx, or the global logger when
// none was attached.
func FromContext(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return GetLogger()
	}
	return logger
}

// WithContext derives a context carrying the given logger.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromEcho returns the request-scoped logger stored by the middleware,
// falling back to the global logger outside a request.
func FromEcho(c echo.Context) *zap.Logger {
	logger, ok := c.Get("logger").(*zap.Logger)
	if !ok {
		return GetLogger()
	}
	return logger
}
