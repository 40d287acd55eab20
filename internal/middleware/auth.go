package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/pkg/jwtutil"
	"github.com/ilyaseen19/krios-sub001/pkg/logger"
)

// JWTAuthMiddleware creates a middleware that validates JWT tokens and puts
// the verified tenant claims in the request context.
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			// Extract the token from the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization header format"})
			}

			tokenString := parts[1]

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			if claims.TenantID == "" {
				log.Warn("Token carries no tenant identity")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context required"})
			}

			// Store the claims in the context for later use
			c.Set("tenant", claims)
			log.Debug("JWT token validated successfully",
				zap.String("tenant_id", claims.TenantID),
				zap.String("merchant_name", claims.MerchantName))

			return next(c)
		}
	}
}
