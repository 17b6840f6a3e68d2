package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/middleware"
	"github.com/99minutos/auth-service/internal/core/domain"
)

// currentUserID fails fast when the Session middleware did not run for the
// route, instead of querying the store with an empty id.
func currentUserID(c echo.Context) (string, error) {
	id := middleware.UserID(c)
	if id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}
