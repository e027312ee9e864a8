package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	// TokenCookieName is the name of the cookie carrying the signed token
	TokenCookieName = "token"
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeyClaims is the context key for the parsed token claims
	ContextKeyClaims = "token_claims"
)

var errNotAuthenticated = echo.NewHTTPError(http.StatusUnauthorized, "No autenticado")

// RequireAuth rejects requests without a valid, unexpired, non-revoked token
// whose user still exists and is active. The token is read from the "token"
// cookie, falling back to an Authorization: Bearer header.
func RequireAuth(db *gorm.DB, secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return errNotAuthenticated
			}

			claims, err := services.ParseToken(secret, raw)
			if err != nil {
				return errNotAuthenticated
			}

			revoked, err := services.IsTokenRevoked(db, claims.ID)
			if err != nil {
				log.Printf("[ERROR] Token revocation check failed: %v", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "Error interno del servidor")
			}
			if revoked {
				return errNotAuthenticated
			}

			user, err := services.GetUserByID(db, claims.Subject)
			if err != nil {
				if !errors.Is(err, services.ErrUserNotFound) {
					log.Printf("[ERROR] Failed to load token user: %v", err)
				}
				return errNotAuthenticated
			}
			if !user.IsActive {
				return errNotAuthenticated
			}

			c.Set(ContextKeyUser, user)
			c.Set(ContextKeyClaims, claims)
			return next(c)
		}
	}
}

// RequirePermission allows the request only when the authenticated user's
// role passes check, e.g. RequirePermission(models.Role.CanModerate).
func RequirePermission(check func(models.Role) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return errNotAuthenticated
			}

			if !check(user.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "Permisos insuficientes")
			}

			return next(c)
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetTokenClaims retrieves the claims of the token used for this request
func GetTokenClaims(c echo.Context) *services.TokenClaims {
	claims, ok := c.Get(ContextKeyClaims).(*services.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// SetTokenCookie stores the signed token in an HTTP-only cookie
func SetTokenCookie(c echo.Context, token string, expiresAt time.Time, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie clears the token cookie
func ClearTokenCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
