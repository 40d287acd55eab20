package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/pkg/logger"
)

// RequestIDMiddleware tags every request with an X-Request-ID, reusing the
// caller's id when one is supplied and minting a UUID otherwise. The id is
// echoed on the response and baked into the request-scoped logger so the
// log lines of one sync or restore call can be correlated end to end.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
				c.Request().Header.Set("X-Request-ID", requestID)
			}

			c.Response().Header().Set("X-Request-ID", requestID)

			// Handlers read this back via logger.FromEcho.
			ctxLogger := logger.GetLogger().With(zap.String("request_id", requestID))
			c.Set("logger", ctxLogger)

			return next(c)
		}
	}
}
