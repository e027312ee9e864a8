package handlers

import (
	"fmt"
	"net/http"

	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

// ListUsers returns every dashboard account
// GET /api/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := services.ListUsers(h.DB)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser adds a dashboard account
// POST /api/users
func (h *Handler) CreateUser(c echo.Context) error {
	var input services.CreateUserInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidRequest})
	}

	user, err := services.CreateUser(h.DB, input)
	if err != nil {
		return respondError(c, err)
	}

	services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionCreate,
		"User", user.ID, fmt.Sprintf("Usuario %s creado", user.Username),
		nil, map[string]interface{}{"username": user.Username, "role": user.Role},
	)

	return c.JSON(http.StatusCreated, user)
}

// DeleteUser removes a dashboard account
// DELETE /api/users/:id
func (h *Handler) DeleteUser(c echo.Context) error {
	current := middleware.GetCurrentUser(c)
	user, err := services.DeleteUser(h.DB, c.Param("id"), current.ID)
	if err != nil {
		return respondError(c, err)
	}

	services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionDelete,
		"User", user.ID, fmt.Sprintf("Usuario %s eliminado", user.Username),
		map[string]interface{}{"username": user.Username, "role": user.Role}, nil,
	)

	return c.JSON(http.StatusOK, map[string]string{"message": "Usuario eliminado"})
}
