package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// Error kinds carried in the "error" field of the envelope.
const (
	kindValidation         = "validation_error"
	kindDuplicateEmail     = "duplicate_email"
	kindDuplicateUsername  = "duplicate_username"
	kindInvalidCredentials = "invalid_credentials"
	kindNotFound           = "not_found"
	kindUnauthorized       = "unauthorized"
	kindStoreUnavailable   = "store_unavailable"
	kindInternal           = "internal_error"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<kind>", "message": "<text>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (router 404/405, session middleware 401, body limits).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: kindForStatus(he.Code), Message: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: kindValidation, Message: err.Error()}
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, errorResponse{Error: kindDuplicateEmail, Message: domain.ErrDuplicateEmail.Error()}
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict, errorResponse{Error: kindDuplicateUsername, Message: domain.ErrDuplicateUsername.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: kindInvalidCredentials, Message: domain.ErrInvalidCredentials.Error()}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Error: kindNotFound, Message: domain.ErrUserNotFound.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: kindUnauthorized, Message: domain.ErrUnauthorized.Error()}
	case errors.Is(err, domain.ErrStoreUnavailable):
		logUnhandled(log, err, c)
		return http.StatusServiceUnavailable, errorResponse{Error: kindStoreUnavailable, Message: "service temporarily unavailable"}
	}

	// Unexpected error: log the real cause, return a generic message.
	logUnhandled(log, err, c)
	return http.StatusInternalServerError, errorResponse{Error: kindInternal, Message: "internal server error"}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return kindValidation
	case http.StatusUnauthorized:
		return kindUnauthorized
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusServiceUnavailable:
		return kindStoreUnavailable
	}
	if code >= http.StatusInternalServerError {
		return kindInternal
	}
	return http.StatusText(code)
}

func logUnhandled(log zerolog.Logger, err error, c echo.Context) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")
}
