package handlers

import (
	"errors"
	"net/http"
	"strings"

	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// ListDepartments returns the 18 departments
// GET /api/departments
func (h *Handler) ListDepartments(c echo.Context) error {
	departments, err := services.ListDepartments(h.DB)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, departments)
}

// ListMunicipalities returns the municipalities of a department
// GET /api/municipalities/:departmentId
func (h *Handler) ListMunicipalities(c echo.Context) error {
	municipalities, err := services.ListMunicipalities(h.DB, c.Param("departmentId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, municipalities)
}

// ListLocalities returns the localities of a municipality
// GET /api/localities/:municipalityId?area=urbano|rural
func (h *Handler) ListLocalities(c echo.Context) error {
	area := models.Area(strings.ToLower(strings.TrimSpace(c.QueryParam("area"))))
	if area != "" && !area.IsValid() {
		return invalidFields(c, map[string]string{"area": "Valor inválido, opciones: urbano, rural"})
	}

	localities, err := services.ListLocalities(h.DB, c.Param("municipalityId"), area)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, localities)
}

// ListSectors returns the active sectors
// GET /api/sectors
func (h *Handler) ListSectors(c echo.Context) error {
	sectors, err := services.ListSectors(h.DB)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sectors)
}

// SearchSectors filters sectors by name, ignoring accents
// GET /api/sectors/search?q=
func (h *Handler) SearchSectors(c echo.Context) error {
	sectors, err := services.SearchSectors(h.DB, c.QueryParam("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sectors)
}

// ImportGeography loads municipalities and localities from an uploaded workbook
// POST /api/geography/import (multipart field "file")
func (h *Handler) ImportGeography(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return invalidFields(c, map[string]string{"file": "Debe adjuntar un archivo .xlsx"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		return invalidFields(c, map[string]string{"file": "Debe adjuntar un archivo .xlsx"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer file.Close()

	result, err := services.ImportGeographyWorkbook(h.DB, file)
	if errors.Is(err, services.ErrInvalidWorkbook) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": capitalize(err.Error())})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
