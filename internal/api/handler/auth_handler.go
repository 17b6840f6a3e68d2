package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	tokens      ports.TokenService
}

func NewAuthHandler(authService ports.AuthService, tokens ports.TokenService) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens}
}

type signUpRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type availabilityRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	User *domain.User `json:"user"`
}

// SignUp creates an account and starts a session for it.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	userID, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()

	if err := h.startSession(c, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{UserID: userID, Message: "User registered successfully"})
}

// Login verifies credentials and starts a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInvalidCredentials) {
			result = "invalid_credentials"
		}
		metrics.LoginsTotal.WithLabelValues(result).Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	if err := h.startSession(c, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{UserID: userID, Message: "Login successful"})
}

// CheckAvailability reports whether a username and/or email are free.
//
// @Summary      Check username and email availability
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      availabilityRequest  true  "Fields to check; omitted fields are reported available"
// @Success      200   {object}  domain.Availability
// @Failure      400   {object}  map[string]string
// @Router       /auth/check-availability [post]
func (h *AuthHandler) CheckAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return domain.ValidationError("invalid payload")
	}

	availability, err := h.authService.CheckAvailability(c.Request().Context(), req.Username, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availability)
}

// Logout clears the session cookie. Tokens are not revoked server-side.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.tokens.ClearCookie())
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// Me returns the profile of the session's user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.authService.GetByID(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{User: user})
}

func (h *AuthHandler) startSession(c echo.Context, userID string) error {
	token, _, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}
	c.SetCookie(h.tokens.Cookie(token))
	return nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.ValidationError("invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return domain.ValidationError("%s", err.Error())
	}
	return nil
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
