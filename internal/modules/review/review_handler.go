package review

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// Handler handles HTTP requests for reviews.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new review handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) SubmitReview(c echo.Context) error {
	studentID := c.Get("userID").(string)

	var in models.SubmitReviewInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Validation failed: " + err.Error()})
	}

	rv, err := h.svc.SubmitReview(c.Request().Context(), c.Param("id"), studentID, in)
	if err != nil {
		c.Logger().Error("Handler.SubmitReview: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to submit review"})
	}
	return c.JSON(http.StatusOK, rv)
}

func (h *Handler) GetOrderReview(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	rv, err := h.svc.GetOrderReview(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if err == models.ErrNotFound {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.CodeNotFound, Message: "Review not found"})
		}
		c.Logger().Error("Handler.GetOrderReview: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to retrieve review"})
	}
	return c.JSON(http.StatusOK, rv)
}

func (h *Handler) ModerateReview(c echo.Context) error {
	var in models.ModerateReviewInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.CodeValidationFailed, Message: "Invalid request body"})
	}

	rv, err := h.svc.ModerateReview(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		c.Logger().Error("Handler.ModerateReview: ", err)
		return c.JSON(models.HTTPStatus(err), models.ErrorResponse{Code: models.ErrorCode(err), Message: "Failed to moderate review"})
	}
	return c.JSON(http.StatusOK, rv)
}

// ListExpertReviews is public: approved reviews only.
func (h *Handler) ListExpertReviews(c echo.Context) error {
	page, limit := pageParams(c)

	reviews, total, err := h.svc.ListExpertReviews(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListExpertReviews: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to retrieve reviews"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reviews": reviews, "total": total})
}

func (h *Handler) ListReviews(c echo.Context) error {
	page, limit := pageParams(c)
	status := models.ReviewStatus(c.QueryParam("status"))

	reviews, total, err := h.svc.ListReviews(c.Request().Context(), status, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListReviews: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.CodeInternal, Message: "Failed to list reviews"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reviews": reviews, "total": total})
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
