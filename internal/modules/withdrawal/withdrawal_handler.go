package withdrawal

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for withdrawals.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new withdrawal handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) RequestWithdrawal(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	var in models.CreateWithdrawalInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	wr, err := h.svc.RequestWithdrawal(c.Request().Context(), userID, role, in)
	if err != nil {
		c.Logger().Error("Handler.RequestWithdrawal: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to request withdrawal"})
	}
	return c.JSON(http.StatusCreated, wr)
}

func (h *Handler) GetWithdrawal(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	wr, err := h.svc.GetWithdrawal(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Withdrawal request not found"})
		}
		c.Logger().Error("Handler.GetWithdrawal: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to retrieve withdrawal request"})
	}
	return c.JSON(http.StatusOK, wr)
}

// ResolveWithdrawal applies an admin action (confirm, pay, approve, reject)
// to a pending request.
func (h *Handler) ResolveWithdrawal(c echo.Context) error {
	var in models.UpdateWithdrawalInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.Resolve(c.Request().Context(), c.Param("id"), in); err != nil {
		c.Logger().Error("Handler.ResolveWithdrawal: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to resolve withdrawal request"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMyWithdrawals(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)
	page, limit := pageParams(c)

	withdrawals, total, err := h.svc.ListMyWithdrawals(c.Request().Context(), userID, role, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMyWithdrawals: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to retrieve withdrawals"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"withdrawals": withdrawals, "total": total})
}

func (h *Handler) ListWithdrawals(c echo.Context) error {
	page, limit := pageParams(c)
	status := models.WithdrawalStatus(c.QueryParam("status"))
	actorType := c.QueryParam("actor_type")

	withdrawals, total, err := h.svc.ListWithdrawals(c.Request().Context(), status, actorType, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListWithdrawals: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list withdrawals"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"withdrawals": withdrawals, "total": total})
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
