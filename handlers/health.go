package handlers

import (
	"context"
	"net/http"
	"time"

	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// Health reports whether the database answers
// GET /health
func (h *Handler) Health(c echo.Context) error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		c.Logger().Errorf("health check failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": storageKind(h.Storage),
	})
}

func storageKind(storage services.StorageProvider) string {
	if _, ok := storage.(*services.R2Storage); ok {
		return "r2"
	}
	return "local"
}
