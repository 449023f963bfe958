package request

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for assistance requests.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new request handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) SubmitRequest(c echo.Context) error {
	studentID := c.Get("userID").(string)

	var in models.SubmitRequestInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	req, err := h.svc.SubmitRequest(c.Request().Context(), studentID, in)
	if err != nil {
		c.Logger().Error("Handler.SubmitRequest: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to submit request"})
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) GetRequest(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	req, err := h.svc.GetRequest(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Request not found"})
		}
		c.Logger().Error("Handler.GetRequest: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve request"})
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListMyRequests(c echo.Context) error {
	studentID := c.Get("userID").(string)
	page, limit := pageParams(c)

	requests, total, err := h.svc.ListStudentRequests(c.Request().Context(), studentID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMyRequests: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve requests"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": requests, "total": total})
}

func (h *Handler) ListAllRequests(c echo.Context) error {
	// Role check is done in middleware
	page, limit := pageParams(c)
	status := models.RequestStatus(c.QueryParam("status"))

	requests, total, err := h.svc.ListAllRequests(c.Request().Context(), status, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListAllRequests: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list requests"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": requests, "total": total})
}

func (h *Handler) ExpireRequest(c echo.Context) error {
	if err := h.svc.ExpireRequest(c.Request().Context(), c.Param("id")); err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Request not found"})
		}
		c.Logger().Error("Handler.ExpireRequest: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to expire request"})
	}
	return c.NoContent(http.StatusNoContent)
}

// pageParams extracts pagination query parameters with defaults.
func pageParams(c echo.Context) (int, int) {
	page := 1
	limit := 10
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
	return page, limit
}
