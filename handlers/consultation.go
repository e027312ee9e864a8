package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// consultationRequest is the public form payload
type consultationRequest struct {
	services.ConsultationInput
	TurnstileToken string `json:"turnstileToken"`
}

// consultationResponse adds links to the stored images
type consultationResponse struct {
	*models.Consultation
	ImageURLs []string `json:"imageUrls"`
}

func newConsultationResponse(c *models.Consultation) consultationResponse {
	urls := make([]string, len(c.Images))
	for i := range c.Images {
		urls[i] = fmt.Sprintf("/api/consultations/%s/images/%d", c.ID, i)
	}
	return consultationResponse{Consultation: c, ImageURLs: urls}
}

// CreateConsultation handles the public form submission
// POST /api/consultations (application/json or multipart/form-data)
func (h *Handler) CreateConsultation(c echo.Context) error {
	req, files, err := decodeConsultationRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidRequest})
	}

	if h.Config.TurnstileSecretKey != "" {
		if err := services.VerifyTurnstileToken(c.Request().Context(), req.TurnstileToken, h.Config.TurnstileSecretKey, c.RealIP()); err != nil {
			services.LogSecurityEvent("TURNSTILE_FAILED", "", fmt.Sprintf("IP: %s, %v", c.RealIP(), err))
			h.Monitor.TrackFailure(services.EventTurnstileFailed, c.RealIP())
			return respondError(c, services.ErrTurnstileFailed)
		}
	}

	input := &req.ConsultationInput
	if verr := services.ValidateConsultationInput(input); verr != nil {
		return respondError(c, verr)
	}

	ctx := c.Request().Context()
	keys, err := services.StoreConsultationImages(ctx, h.Storage, files, time.Now())
	if err != nil {
		return respondError(c, err)
	}

	consultation, err := services.CreateConsultation(h.DB, input, services.SubmissionMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Images:    keys,
	})
	if err != nil {
		services.DeleteStoredImages(ctx, h.Storage, keys)
		return respondError(c, err)
	}

	email, err := services.BuildConsultationReceiptEmail(consultation)
	if err != nil {
		c.Logger().Errorf("failed to build receipt email: %v", err)
	} else if email != nil {
		services.SendEmailAsync(h.Mailer, email)
	}

	return c.JSON(http.StatusCreated, newConsultationResponse(consultation))
}

func decodeConsultationRequest(c echo.Context) (*consultationRequest, []*multipart.FileHeader, error) {
	req := &consultationRequest{}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		if err := json.NewDecoder(c.Request().Body).Decode(req); err != nil && err != io.EOF {
			return nil, nil, err
		}
		return req, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, err
	}
	data := form.Value["data"]
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("missing data field")
	}
	if err := json.Unmarshal([]byte(data[0]), req); err != nil {
		return nil, nil, err
	}
	return req, form.File["images"], nil
}

// ListConsultations returns one filtered, sorted page of consultations
// GET /api/consultations
func (h *Handler) ListConsultations(c echo.Context) error {
	filter, fields := parseConsultationFilter(c)
	if len(fields) > 0 {
		return invalidFields(c, fields)
	}
	filter.Normalize()

	consultations, total, err := services.ListConsultations(h.DB, filter)
	if err != nil {
		return respondError(c, err)
	}

	data := make([]consultationResponse, len(consultations))
	for i := range consultations {
		data[i] = newConsultationResponse(&consultations[i])
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   data,
		"total":  total,
		"offset": filter.Offset,
		"limit":  filter.Limit,
	})
}

// parseConsultationFilter reads the listing and export query parameters
func parseConsultationFilter(c echo.Context) (services.ConsultationFilter, map[string]string) {
	var filter services.ConsultationFilter
	fields := make(map[string]string)

	parseDate := func(name string) *time.Time {
		value := strings.TrimSpace(c.QueryParam(name))
		if value == "" {
			return nil
		}
		t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
		if err != nil {
			fields[name] = "Fecha inválida, use AAAA-MM-DD"
			return nil
		}
		return &t
	}
	filter.DateFrom = parseDate("dateFrom")
	filter.DateTo = parseDate("dateTo")
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		fields["dateTo"] = "La fecha final es anterior a la inicial"
	}

	filter.DepartmentID = strings.TrimSpace(c.QueryParam("departmentId"))
	filter.Sector = strings.TrimSpace(c.QueryParam("sector"))
	filter.Query = strings.TrimSpace(c.QueryParam("q"))

	if status := c.QueryParam("status"); status != "" {
		filter.Status = models.ConsultationStatus(status)
		if !filter.Status.IsValid() {
			fields["status"] = "Valor inválido, opciones: active, archived"
		}
	}
	if personType := c.QueryParam("personType"); personType != "" {
		filter.PersonType = models.PersonType(personType)
		if !filter.PersonType.IsValid() {
			fields["personType"] = "Valor inválido, opciones: natural, juridica, anonimo"
		}
	}

	switch sort := c.QueryParam("sort"); sort {
	case "", "createdAt", "department", "personType":
		filter.Sort = sort
	default:
		fields["sort"] = "Valor inválido, opciones: createdAt, department, personType"
	}
	switch order := strings.ToLower(c.QueryParam("order")); order {
	case "", "asc", "desc":
		filter.Order = order
	default:
		fields["order"] = "Valor inválido, opciones: asc, desc"
	}

	parseInt := func(name string) int {
		value := c.QueryParam(name)
		if value == "" {
			return 0
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			fields[name] = "Debe ser un entero no negativo"
			return 0
		}
		return n
	}
	filter.Offset = parseInt("offset")
	filter.Limit = parseInt("limit")

	return filter, fields
}

// GetConsultation returns a single consultation
// GET /api/consultations/:id
func (h *Handler) GetConsultation(c echo.Context) error {
	consultation, err := services.GetConsultation(h.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newConsultationResponse(consultation))
}

// GetConsultationImage redirects to a signed URL when the storage supports
// it, otherwise streams the image.
// GET /api/consultations/:id/images/:index
func (h *Handler) GetConsultationImage(c echo.Context) error {
	consultation, err := services.GetConsultation(h.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= len(consultation.Images) {
		return echo.NewHTTPError(http.StatusNotFound, "Imagen no encontrada")
	}
	key := consultation.Images[index]
	ctx := c.Request().Context()

	signedURL, err := h.Storage.GetSignedURL(ctx, key, 15*time.Minute)
	if err == nil && strings.HasPrefix(signedURL, "http") {
		return c.Redirect(http.StatusFound, signedURL)
	}

	reader, contentType, err := h.Storage.Get(ctx, key)
	if err != nil {
		c.Logger().Errorf("failed to read image %s: %v", key, err)
		return echo.NewHTTPError(http.StatusNotFound, "Imagen no encontrada")
	}
	defer reader.Close()

	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Stream(http.StatusOK, contentType, reader)
}

// UpdateConsultationStatus toggles a consultation between active and archived
// PATCH /api/consultations/:id/status
func (h *Handler) UpdateConsultationStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidRequest})
	}

	consultation, previous, err := services.UpdateConsultationStatus(h.DB, c.Param("id"), models.ConsultationStatus(body.Status))
	if err != nil {
		return respondError(c, err)
	}

	if previous != consultation.Status {
		services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionStatusChange,
			"Consultation", consultation.ID,
			fmt.Sprintf("Estado cambiado de %s a %s", previous, consultation.Status),
			map[string]interface{}{"status": previous},
			map[string]interface{}{"status": consultation.Status},
		)
	}

	return c.JSON(http.StatusOK, newConsultationResponse(consultation))
}

// UpdateConsultation applies an admin edit. The geocode is recomputed.
// PUT /api/consultations/:id
func (h *Handler) UpdateConsultation(c echo.Context) error {
	var input services.ConsultationInput
	if err := json.NewDecoder(c.Request().Body).Decode(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidRequest})
	}

	before, after, err := services.UpdateConsultation(h.DB, c.Param("id"), &input)
	if err != nil {
		return respondError(c, err)
	}

	services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionUpdate,
		"Consultation", after.ID, "Consulta editada",
		services.ConsultationAuditValues(before),
		services.ConsultationAuditValues(after),
	)

	return c.JSON(http.StatusOK, newConsultationResponse(after))
}

// DeleteConsultation removes a consultation and its images
// DELETE /api/consultations/:id
func (h *Handler) DeleteConsultation(c echo.Context) error {
	consultation, err := services.DeleteConsultation(h.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	services.DeleteStoredImages(c.Request().Context(), h.Storage, consultation.Images)

	services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionDelete,
		"Consultation", consultation.ID, "Consulta eliminada",
		services.ConsultationAuditValues(consultation), nil,
	)

	return c.JSON(http.StatusOK, map[string]string{"message": "Consulta eliminada"})
}
