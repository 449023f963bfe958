package order

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for orders.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new order handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) GetOrder(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	order, err := h.svc.GetOrder(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Order not found"})
		}
		c.Logger().Error("Handler.GetOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve order"})
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) ListMyOrders(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)
	page, limit := pageParams(c)

	var (
		orders []*models.Order
		total  int
		err    error
	)
	if role == models.RoleExpert {
		orders, total, err = h.svc.ListExpertOrders(c.Request().Context(), userID, page, limit)
	} else {
		orders, total, err = h.svc.ListStudentOrders(c.Request().Context(), userID, page, limit)
	}
	if err != nil {
		c.Logger().Error("Handler.ListMyOrders: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) ListAllOrders(c echo.Context) error {
	// Role check is done in middleware
	page, limit := pageParams(c)
	status := models.OrderStatus(c.QueryParam("status"))

	orders, total, err := h.svc.ListAllOrders(c.Request().Context(), status, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListAllOrders: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list all orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) AssignExpert(c echo.Context) error {
	var in models.AssignExpertInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.AssignExpert(c.Request().Context(), c.Param("id"), in); err != nil {
		c.Logger().Error("Handler.AssignExpert: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to assign expert"})
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateMilestone multiplexes the milestone PATCH actions: the assigned
// expert may start and submit, QC admins review.
func (h *Handler) UpdateMilestone(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)
	orderID := c.Param("id")
	milestoneID := c.Param("mid")

	var in models.MilestoneActionInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	ctx := c.Request().Context()
	var err error
	switch in.Action {
	case models.MilestoneActionStart:
		if role != models.RoleExpert {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Code: models.CodeForbidden, Message: "Only the assigned expert can start a milestone"})
		}
		err = h.svc.StartMilestone(ctx, orderID, milestoneID, userID)
	case models.MilestoneActionSubmit:
		if role != models.RoleExpert {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Code: models.CodeForbidden, Message: "Only the assigned expert can submit work"})
		}
		err = h.svc.SubmitMilestone(ctx, orderID, milestoneID, userID, in.Files)
	case models.MilestoneActionReview:
		if role != models.RoleAdmin {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Code: models.CodeForbidden, Message: "Only quality control can review a deliverable"})
		}
		if in.Approved == nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "approved is required for review"})
		}
		err = h.svc.ReviewDeliverable(ctx, orderID, milestoneID, *in.Approved, in.Note)
	}
	if err != nil {
		c.Logger().Error("Handler.UpdateMilestone: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Milestone update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) OpenDispute(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	var in models.DisputeInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.OpenDispute(c.Request().Context(), c.Param("id"), userID, role, in.Reason); err != nil {
		c.Logger().Error("Handler.OpenDispute: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to open dispute"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResolveDispute(c echo.Context) error {
	var in models.ResolveDisputeInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.ResolveDispute(c.Request().Context(), c.Param("id"), in); err != nil {
		c.Logger().Error("Handler.ResolveDispute: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to resolve dispute"})
	}
	return c.NoContent(http.StatusNoContent)
}

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
