package ledger

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for the financial ledger. Admin only.
type Handler struct {
	svc ServiceInterface
}

// NewHandler creates a new ledger handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListTransactions(c echo.Context) error {
	page, limit := pageParams(c)
	txType := models.TransactionType(c.QueryParam("type"))
	orderID := c.QueryParam("order_id")

	transactions, total, err := h.svc.ListTransactions(c.Request().Context(), txType, orderID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListTransactions: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list transactions"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": transactions, "total": total})
}

func (h *Handler) Summarize(c echo.Context) error {
	summary, err := h.svc.Summarize(c.Request().Context())
	if err != nil {
		c.Logger().Error("Handler.Summarize: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to summarize ledger"})
	}
	return c.JSON(http.StatusOK, summary)
}

// pageParams extracts pagination query parameters with defaults.
func pageParams(c echo.Context) (int, int) {
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
	return page, limit
}
