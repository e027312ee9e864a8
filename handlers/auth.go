package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login authenticates a dashboard user and sets the session cookie
// POST /api/login
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidRequest})
	}

	user, err := services.AuthenticateUser(h.DB, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			services.LogSecurityEvent("LOGIN_FAILED", "", fmt.Sprintf("Username: %s, IP: %s", req.Username, c.RealIP()))
			h.Monitor.TrackFailure(services.EventLoginFailed, c.RealIP())
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Credenciales inválidas"})
		}
		return respondError(c, err)
	}

	token, claims, err := services.IssueToken(h.jwtSecret(), user, time.Now())
	if err != nil {
		return respondError(c, err)
	}
	middleware.SetTokenCookie(c, token, claims.ExpiresAt.Time, h.Config.IsProduction())

	services.LogAuditEvent(h.DB, services.AuditContext{
		UserID:    user.ID,
		Username:  user.Username,
		UserRole:  user.Role,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}, models.AuditActionLogin, "User", user.ID, "Inicio de sesión", nil, nil)

	// The token only travels in the HTTP-only cookie
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":      user,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

// Logout revokes the current token and clears the cookie
// POST /api/logout
func (h *Handler) Logout(c echo.Context) error {
	if err := services.RevokeToken(h.DB, middleware.GetTokenClaims(c)); err != nil {
		return respondError(c, err)
	}
	middleware.ClearTokenCookie(c, h.Config.IsProduction())

	if user := middleware.GetCurrentUser(c); user != nil {
		services.LogAuditEvent(h.DB, middleware.GetAuditContext(c), models.AuditActionLogout,
			"User", user.ID, "Cierre de sesión", nil, nil)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Sesión cerrada"})
}

// CurrentUser returns the authenticated account
// GET /api/user
func (h *Handler) CurrentUser(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.GetCurrentUser(c))
}
