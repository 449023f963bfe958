package expert

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for expert profiles.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new expert handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterExpert(c echo.Context) error {
	userID := c.Get("userID").(string)

	var in models.RegisterExpertInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	ex, err := h.svc.RegisterExpert(c.Request().Context(), userID, in)
	if err != nil {
		if err == models.ErrConflict {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Code: models.CodeConflict, Message: "Expert profile already exists"})
		}
		c.Logger().Error("Handler.RegisterExpert: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to register expert"})
	}
	return c.JSON(http.StatusCreated, ex)
}

func (h *Handler) GetExpert(c echo.Context) error {
	ex, err := h.svc.GetExpert(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Expert not found"})
		}
		c.Logger().Error("Handler.GetExpert: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve expert"})
	}
	return c.JSON(http.StatusOK, ex)
}

func (h *Handler) ListExperts(c echo.Context) error {
	page := 1
	limit := 20
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	status := models.ExpertStatus(c.QueryParam("status"))
	onlineOnly := c.QueryParam("online") == "true"

	experts, total, err := h.svc.ListExperts(c.Request().Context(), status, onlineOnly, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListExperts: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list experts"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"experts": experts, "total": total})
}

func (h *Handler) SetStatus(c echo.Context) error {
	var in models.ExpertStatusInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.SetStatus(c.Request().Context(), c.Param("id"), in.Status); err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Expert not found"})
		}
		c.Logger().Error("Handler.SetStatus: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to update expert status"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetOnline(c echo.Context) error {
	userID := c.Get("userID").(string)

	var in models.OnlineInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}

	if err := h.svc.SetOnline(c.Request().Context(), userID, in.Online); err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Expert profile not found"})
		}
		c.Logger().Error("Handler.SetOnline: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to update presence"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddPayoutMethod(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	var in models.AddPayoutMethodInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	pm, err := h.svc.AddPayoutMethod(c.Request().Context(), userID, role, in)
	if err != nil {
		c.Logger().Error("Handler.AddPayoutMethod: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to add payout method"})
	}
	return c.JSON(http.StatusCreated, pm)
}

func (h *Handler) ListPayoutMethods(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	methods, err := h.svc.ListPayoutMethods(c.Request().Context(), userID, role)
	if err != nil {
		c.Logger().Error("Handler.ListPayoutMethods: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to list payout methods"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payout_methods": methods})
}
