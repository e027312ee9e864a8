package handlers

import (
	"net/http"
	"strconv"
	"time"

	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// DashboardStats returns the headline counters
// GET /api/dashboard/stats
func (h *Handler) DashboardStats(c echo.Context) error {
	stats, err := services.GetDashboardStats(h.DB, time.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ConsultationsByDate returns the daily series of the last ?days days
// GET /api/dashboard/consultations-by-date
func (h *Handler) ConsultationsByDate(c echo.Context) error {
	days := 0
	if value := c.QueryParam("days"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return invalidFields(c, map[string]string{"days": "Debe ser un entero positivo"})
		}
		days = n
	}

	series, err := services.ConsultationsByDate(h.DB, days, time.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, series)
}

// ConsultationsBySector returns the ten most selected sectors
// GET /api/dashboard/consultations-by-sector
func (h *Handler) ConsultationsBySector(c echo.Context) error {
	sectors, err := services.ConsultationsBySector(h.DB)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sectors)
}
