package handlers

import (
	"net/http"
	"strconv"
	"time"

	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// ListAuditLogs returns filtered and paginated audit logs
// GET /api/audit-logs
func (h *Handler) ListAuditLogs(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	filters := services.AuditLogFilters{
		UserID:       c.QueryParam("userId"),
		ResourceType: c.QueryParam("resourceType"),
		Action:       c.QueryParam("action"),
		SearchQuery:  c.QueryParam("q"),
	}

	if dateFrom := c.QueryParam("dateFrom"); dateFrom != "" {
		if t, err := time.Parse("2006-01-02", dateFrom); err == nil {
			filters.DateFrom = t
		}
	}
	if dateTo := c.QueryParam("dateTo"); dateTo != "" {
		if t, err := time.Parse("2006-01-02", dateTo); err == nil {
			filters.DateTo = t.Add(24*time.Hour - time.Second) // End of day
		}
	}

	logs, total, err := services.ListAuditLogs(h.DB, filters, offset, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  logs,
		"total": total,
	})
}

// GetResourceHistory returns the audit trail of one record
// GET /api/audit-logs/:resourceType/:resourceId
func (h *Handler) GetResourceHistory(c echo.Context) error {
	logs, err := services.GetResourceAuditHistory(h.DB, c.Param("resourceType"), c.Param("resourceId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}

// ListSecurityAlerts returns the alerts raised for repeated failed logins
// and anti-bot checks, newest first
// GET /api/security/alerts
func (h *Handler) ListSecurityAlerts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Monitor.RecentAlerts())
}
