package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/pkg/logger"
	"github.com/ilyaseen19/krios-sub001/prometheus"
)

// RestoreCollection handles GET /restore/:collection
func (h *SyncHandler) RestoreCollection(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := tenantFromContext(c)
	if !ok {
		log.Error("Failed to get tenant claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	collection := c.Param("collection")
	prometheus.RecordRestoreOperation(collection)

	defer prometheus.TrackDBOperation("restore")(time.Now())

	data, err := h.engine.Restore(claims.TenantID, claims.MerchantName, collection)
	if err != nil {
		log.Error("Restore failed",
			zap.String("tenant_id", claims.TenantID),
			zap.String("collection", collection),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}

	log.Info("Collection restored",
		zap.String("tenant_id", claims.TenantID),
		zap.String("collection", collection),
		zap.Int("count", len(data)))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Restore completed successfully",
		"count":   len(data),
		"data":    data,
	})
}

// RestoreAll handles GET /restore
func (h *SyncHandler) RestoreAll(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := tenantFromContext(c)
	if !ok {
		log.Error("Failed to get tenant claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	prometheus.RecordRestoreOperation("all")
	defer prometheus.TrackDBOperation("restore")(time.Now())

	data, err := h.engine.RestoreAll(claims.TenantID, claims.MerchantName)
	if err != nil {
		log.Error("Full restore failed",
			zap.String("tenant_id", claims.TenantID),
			zap.Error(err))
		return syncErrorResponse(c, err)
	}

	counts := make(map[string]int, len(data))
	for collection, records := range data {
		counts[collection] = len(records)
	}

	log.Info("All collections restored",
		zap.String("tenant_id", claims.TenantID),
		zap.Any("counts", counts))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Restore completed successfully",
		"counts":  counts,
		"data":    data,
	})
}
