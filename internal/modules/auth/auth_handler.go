package auth

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for authentication.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new auth handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Signup(c echo.Context) error {
	var in models.SignupRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Signup(c.Request().Context(), in)
	if err != nil {
		if err == models.ErrEmailTaken {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Code: models.CodeEmailTaken, Message: "Email is already registered"})
		}
		c.Logger().Error("Handler.Signup: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to sign up"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var in models.LoginRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		if err == models.ErrInvalidCredentials {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.CodeInvalidCredentials, Message: "Invalid email or password"})
		}
		c.Logger().Error("Handler.Login: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to log in"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	userID := c.Get("userID").(string)

	u, err := h.svc.Me(c.Request().Context(), userID)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "User not found"})
		}
		c.Logger().Error("Handler.Me: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve user"})
	}
	return c.JSON(http.StatusOK, u)
}
