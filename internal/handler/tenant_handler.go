package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ilyaseen19/krios-sub001/internal/tenantdb"
	"github.com/ilyaseen19/krios-sub001/pkg/jwtutil"
	"github.com/ilyaseen19/krios-sub001/pkg/logger"
	"github.com/ilyaseen19/krios-sub001/prometheus"
)

// TenantResolver is the resolver surface the provisioning endpoints need.
type TenantResolver interface {
	Resolve(tenantID, merchantName string) (*gorm.DB, string, error)
	Discover(prefix string) ([]string, error)
	DefaultPrefix() string
}

// TenantHandler serves tenant provisioning and discovery endpoints.
type TenantHandler struct {
	resolver TenantResolver
	jwt      *jwtutil.JWTUtil
}

// NewTenantHandler creates a tenant handler.
func NewTenantHandler(resolver TenantResolver, jwt *jwtutil.JWTUtil) *TenantHandler {
	return &TenantHandler{resolver: resolver, jwt: jwt}
}

// ProvisionTenant handles POST /tenants/provision. It generates a fresh
// tenant identity, resolves (and thereby creates) the tenant database, and
// returns a signed tenant token. When the supplied merchant name already
// hosts a database, the group's canonical identity is reused and reported.
func (h *TenantHandler) ProvisionTenant(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTenantOperation("provision")

	var req struct {
		MerchantName string `json:"merchant_name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse provision request", zap.Error(err))
		prometheus.RecordSyncError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	tenantID := uuid.New().String()

	defer prometheus.TrackDBOperation("provision")(time.Now())

	_, effectiveTenant, err := h.resolver.Resolve(tenantID, req.MerchantName)
	if err != nil {
		log.Error("Failed to provision tenant database",
			zap.String("merchant_name", req.MerchantName),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}

	prefix := h.resolver.DefaultPrefix()
	if p := tenantdb.NormalizePrefix(req.MerchantName); p != "" {
		prefix = p
	}
	database := tenantdb.DatabaseName(prefix, effectiveTenant)
	reused := effectiveTenant != tenantID

	token, err := h.jwt.GenerateToken(effectiveTenant, req.MerchantName, "owner")
	if err != nil {
		log.Error("Failed to generate tenant token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Tenant provisioned",
		zap.String("tenant_id", effectiveTenant),
		zap.String("database", database),
		zap.Bool("reused", reused))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":   "Tenant provisioned successfully",
		"tenant_id": effectiveTenant,
		"database":  database,
		"reused":    reused,
		"token":     token,
	})
}

// ListTenants handles GET /tenants, discovering tenant identities under the
// default prefix.
func (h *TenantHandler) ListTenants(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTenantOperation("discover")

	defer prometheus.TrackDBOperation("discover")(time.Now())

	tenants, err := h.resolver.Discover(h.resolver.DefaultPrefix())
	if err != nil {
		log.Error("Tenant discovery failed", zap.Error(err))
		return syncErrorResponse(c, err)
	}
	if tenants == nil {
		tenants = []string{}
	}
	prometheus.UpdateTenantDatabases(len(tenants))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Tenants retrieved successfully",
		"count":   len(tenants),
		"tenants": tenants,
	})
}
