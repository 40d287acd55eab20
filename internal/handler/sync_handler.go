package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/internal/model"
	"github.com/ilyaseen19/krios-sub001/internal/syncengine"
	"github.com/ilyaseen19/krios-sub001/internal/tenantdb"
	"github.com/ilyaseen19/krios-sub001/pkg/jwtutil"
	"github.com/ilyaseen19/krios-sub001/pkg/logger"
	"github.com/ilyaseen19/krios-sub001/prometheus"
)

// SyncEngine is the core engine surface the HTTP layer calls into.
type SyncEngine interface {
	Sync(tenantID, merchantName, collection string, records []map[string]interface{}) (int, error)
	SyncAll(tenantID, merchantName string, payload map[string][]map[string]interface{}) (map[string]int, error)
	Restore(tenantID, merchantName, collection string) ([]map[string]interface{}, error)
	RestoreAll(tenantID, merchantName string) (map[string][]map[string]interface{}, error)
	Status(tenantID, merchantName string) (*model.SyncMetadata, error)
}

// SyncHandler serves the synchronization and restore endpoints.
type SyncHandler struct {
	engine SyncEngine
}

// NewSyncHandler creates a sync handler backed by the given engine.
func NewSyncHandler(engine SyncEngine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// SyncCollection handles POST /sync/:collection
func (h *SyncHandler) SyncCollection(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := tenantFromContext(c)
	if !ok {
		log.Error("Failed to get tenant claims from context")
		prometheus.RecordSyncError("unauthorized")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	collection := c.Param("collection")
	prometheus.RecordSyncOperation(collection)

	var req struct {
		Records []map[string]interface{} `json:"records"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse sync request", zap.Error(err))
		prometheus.RecordSyncError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Records == nil {
		log.Error("Sync request has no records field", zap.String("collection", collection))
		prometheus.RecordSyncError("missing_records")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "records is required"})
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	count, err := h.engine.Sync(claims.TenantID, claims.MerchantName, collection, req.Records)
	if err != nil {
		log.Error("Synchronization failed",
			zap.String("tenant_id", claims.TenantID),
			zap.String("collection", collection),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}
	prometheus.RecordSyncedRecords(collection, count)

	log.Info("Collection synchronized",
		zap.String("tenant_id", claims.TenantID),
		zap.String("collection", collection),
		zap.Int("count", count))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Sync completed successfully",
		"count":   count,
	})
}

// SyncAll handles POST /sync
func (h *SyncHandler) SyncAll(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := tenantFromContext(c)
	if !ok {
		log.Error("Failed to get tenant claims from context")
		prometheus.RecordSyncError("unauthorized")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var payload map[string][]map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		log.Error("Failed to parse sync-all request", zap.Error(err))
		prometheus.RecordSyncError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	results, err := h.engine.SyncAll(claims.TenantID, claims.MerchantName, payload)
	if err != nil {
		log.Error("Full synchronization failed",
			zap.String("tenant_id", claims.TenantID),
			zap.Any("partial_results", results),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}
	for collection, count := range results {
		prometheus.RecordSyncOperation(collection)
		prometheus.RecordSyncedRecords(collection, count)
	}

	log.Info("All collections synchronized",
		zap.String("tenant_id", claims.TenantID),
		zap.Any("results", results))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Sync completed successfully",
		"results": results,
	})
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := tenantFromContext(c)
	if !ok {
		log.Error("Failed to get tenant claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	meta, err := h.engine.Status(claims.TenantID, claims.MerchantName)
	if err != nil {
		log.Error("Failed to read sync status",
			zap.String("tenant_id", claims.TenantID),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, meta)
}

// tenantFromContext retrieves the verified tenant claims set by the auth middleware.
func tenantFromContext(c echo.Context) (*jwtutil.TenantClaims, bool) {
	claims, ok := c.Get("tenant").(*jwtutil.TenantClaims)
	return claims, ok
}

// syncErrorResponse maps core errors onto stable HTTP status classes. Error
// payloads carry a message only, never internals.
func syncErrorResponse(c echo.Context, err error) error {
	var connErr *tenantdb.ConnectionError
	switch {
	case errors.Is(err, syncengine.ErrInvalidCollection):
		prometheus.RecordSyncError("invalid_collection")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown collection"})
	case errors.Is(err, syncengine.ErrMissingRecordID):
		prometheus.RecordSyncError("missing_record_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "every record must carry an id"})
	case errors.Is(err, tenantdb.ErrMissingTenantID):
		prometheus.RecordSyncError("missing_tenant_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant id is required"})
	case errors.Is(err, syncengine.ErrNotInitialized), errors.Is(err, tenantdb.ErrDatabaseNotFound):
		prometheus.RecordSyncError("not_initialized")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant database not found"})
	case errors.Is(err, tenantdb.ErrNotConfigured):
		prometheus.RecordSyncError("not_configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "service is not configured"})
	case errors.As(err, &connErr):
		prometheus.RecordSyncError("store_unreachable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database server unavailable"})
	default:
		prometheus.RecordSyncError("sync_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "synchronization failed"})
	}
}
