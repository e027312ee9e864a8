package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
)

const (
	msgInvalidData    = "Datos inválidos"
	msgInternalError  = "Error interno del servidor"
	msgInvalidRequest = "Solicitud inválida"
)

// HTTPErrorHandler renders every error as {"error": "..."} JSON. Internal
// errors are logged and reported without detail.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := msgInternalError

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if code < http.StatusInternalServerError {
			message = fmt.Sprint(he.Message)
		}
		if he.Internal != nil {
			log.Printf("[ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, he.Internal)
		}
	} else {
		log.Printf("[ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	// Echo's own 404/405 messages are in English
	switch code {
	case http.StatusNotFound:
		if message == "Not Found" {
			message = "Recurso no encontrado"
		}
	case http.StatusMethodNotAllowed:
		message = "Método no permitido"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": message})
	}
	if err != nil {
		log.Printf("[ERROR] Failed to write error response: %v", err)
	}
}

// respondError maps service errors to HTTP responses
func respondError(c echo.Context, err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  msgInvalidData,
			"fields": verr.Fields,
		})
	}

	switch {
	case services.IsLocationError(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": capitalize(err.Error())})
	case services.IsImageError(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": capitalize(err.Error())})
	case errors.Is(err, services.ErrTurnstileFailed):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Verificación anti-bot fallida"})
	case errors.Is(err, services.ErrConsultationNotFound), errors.Is(err, services.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": capitalize(errorMessage(err))})
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrCannotDeleteSelf):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": capitalize(errorMessage(err))})
	case errors.Is(err, services.ErrUsernameTaken):
		return c.JSON(http.StatusConflict, map[string]string{"error": capitalize(errorMessage(err))})
	}

	log.Printf("[ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": msgInternalError})
}

// errorMessage returns the innermost message of a wrapped sentinel
func errorMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// invalidFields responds with a 400 validation error for query or body problems
// detected in the handler itself.
func invalidFields(c echo.Context, fields map[string]string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error":  msgInvalidData,
		"fields": fields,
	})
}
