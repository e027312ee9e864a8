package handlers

import (
	"fmt"
	"net/http"
	"time"

	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

const mimeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportCSV downloads the filtered consultations as CSV
// GET /api/export/consultations/csv
func (h *Handler) ExportCSV(c echo.Context) error {
	return h.export(c, "csv", "text/csv; charset=utf-8", func(consultations []models.Consultation, _ time.Time) ([]byte, error) {
		return services.BuildConsultationsCSV(consultations)
	})
}

// ExportExcel downloads the filtered consultations as an .xlsx workbook
// GET /api/export/consultations/excel
func (h *Handler) ExportExcel(c echo.Context) error {
	return h.export(c, "xlsx", mimeExcel, func(consultations []models.Consultation, _ time.Time) ([]byte, error) {
		return services.BuildConsultationsExcel(consultations)
	})
}

// ExportPDF downloads the filtered consultations as a landscape PDF report
// GET /api/export/consultations/pdf
func (h *Handler) ExportPDF(c echo.Context) error {
	return h.export(c, "pdf", "application/pdf", func(consultations []models.Consultation, now time.Time) ([]byte, error) {
		return services.BuildConsultationsPDF(c.Request().Context(), consultations, now, h.Config.ChromePath)
	})
}

type exportBuilder func(consultations []models.Consultation, now time.Time) ([]byte, error)

func (h *Handler) export(c echo.Context, ext, contentType string, build exportBuilder) error {
	filter, fields := parseConsultationFilter(c)
	if len(fields) > 0 {
		return invalidFields(c, fields)
	}

	consultations, err := services.ExportConsultations(h.DB, filter)
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	data, err := build(consultations, now)
	if err != nil {
		c.Logger().Errorf("failed to build %s export: %v", ext, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "No se pudo generar el archivo"})
	}

	services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionExport,
		"Consultation", "", fmt.Sprintf("Exportación %s de %d consultas", ext, len(consultations)),
		nil, map[string]interface{}{"format": ext, "rows": len(consultations)},
	)

	filename := fmt.Sprintf("consultas_%s.%s", now.Format("20060102_150405"), ext)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	return c.Blob(http.StatusOK, contentType, data)
}
