package quote

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for quotes.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new quote handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) CreateQuote(c echo.Context) error {
	var in models.CreateQuoteInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	q, err := h.svc.CreateQuote(c.Request().Context(), in)
	if err != nil {
		c.Logger().Error("Handler.CreateQuote: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to create quote"})
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) GetQuote(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	q, err := h.svc.GetQuote(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Quote not found"})
		}
		c.Logger().Error("Handler.GetQuote: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve quote"})
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Negotiate(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	var in models.NegotiateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	msg, err := h.svc.Negotiate(c.Request().Context(), c.Param("id"), userID, role, in)
	if err != nil {
		c.Logger().Error("Handler.Negotiate: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to post negotiation message"})
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) AcceptQuote(c echo.Context) error {
	studentID := c.Get("userID").(string)

	var in models.AcceptQuoteInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	order, err := h.svc.AcceptQuote(c.Request().Context(), c.Param("id"), studentID, in)
	if err != nil {
		c.Logger().Error("Handler.AcceptQuote: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to accept quote"})
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) RejectQuote(c echo.Context) error {
	studentID := c.Get("userID").(string)

	if err := h.svc.RejectQuote(c.Request().Context(), c.Param("id"), studentID); err != nil {
		c.Logger().Error("Handler.RejectQuote: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to reject quote"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExpireDueQuotes(c echo.Context) error {
	n, err := h.svc.ExpireDueQuotes(c.Request().Context())
	if err != nil {
		c.Logger().Error("Handler.ExpireDueQuotes: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to expire quotes"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"expired": n})
}

func (h *Handler) ListQuotes(c echo.Context) error {
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
	status := models.QuoteStatus(c.QueryParam("status"))

	quotes, total, err := h.svc.ListQuotes(c.Request().Context(), status, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListQuotes: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list quotes"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"quotes": quotes, "total": total})
}
