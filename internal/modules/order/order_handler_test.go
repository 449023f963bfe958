package order

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"pengu-backend/internal/models"
)

// recordingService captures the ids the handler extracts from the request
// path so the tests can pin the registered route strings to the parameter
// names the handler reads.
type recordingService struct {
	orderID     string
	milestoneID string
}

func (r *recordingService) GetOrder(ctx context.Context, orderID, userID, role string) (*models.Order, error) {
	r.orderID = orderID
	return &models.Order{ID: orderID}, nil
}

func (r *recordingService) ListStudentOrders(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (r *recordingService) ListExpertOrders(ctx context.Context, expertUserID string, page, limit int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (r *recordingService) ListAllOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (r *recordingService) AssignExpert(ctx context.Context, orderID string, in models.AssignExpertInput) error {
	r.orderID = orderID
	return nil
}

func (r *recordingService) StartMilestone(ctx context.Context, orderID, milestoneID, expertUserID string) error {
	r.orderID = orderID
	r.milestoneID = milestoneID
	return nil
}

func (r *recordingService) SubmitMilestone(ctx context.Context, orderID, milestoneID, expertUserID string, files []models.Attachment) error {
	r.orderID = orderID
	r.milestoneID = milestoneID
	return nil
}

func (r *recordingService) ReviewDeliverable(ctx context.Context, orderID, milestoneID string, approved bool, note string) error {
	r.orderID = orderID
	r.milestoneID = milestoneID
	return nil
}

func (r *recordingService) OpenDispute(ctx context.Context, orderID, userID, role, reason string) error {
	r.orderID = orderID
	return nil
}

func (r *recordingService) ResolveDispute(ctx context.Context, orderID string, in models.ResolveDisputeInput) error {
	r.orderID = orderID
	return nil
}

func asUser(userID, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("userID", userID)
			c.Set("userRole", role)
			return next(c)
		}
	}
}

// The routes here must stay in sync with the server's route table; the
// assertions catch a drift between the registered parameter names and the
// ones the handler reads.
func newRouteTestServer(rec *recordingService) *echo.Echo {
	h := NewHandler(rec)
	e := echo.New()
	e.GET("/orders/:id", h.GetOrder, asUser("student-1", models.RoleStudent))
	e.POST("/orders/:id/assign", h.AssignExpert, asUser("admin-1", models.RoleAdmin))
	e.PATCH("/orders/:id/milestones/:mid", h.UpdateMilestone, asUser("expert-user-1", models.RoleExpert))
	e.POST("/orders/:id/dispute", h.OpenDispute, asUser("student-1", models.RoleStudent))
	e.POST("/orders/:id/dispute/resolve", h.ResolveDispute, asUser("admin-1", models.RoleAdmin))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestGetOrderRouteDeliversOrderID(t *testing.T) {
	rec := &recordingService{}
	e := newRouteTestServer(rec)

	rr := do(e, http.MethodGet, "/orders/order-42", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (%s)", rr.Code, rr.Body.String())
	}
	if rec.orderID != "order-42" {
		t.Errorf("GetOrder received orderID %q; want %q", rec.orderID, "order-42")
	}
}

func TestMilestoneRouteDeliversBothIDs(t *testing.T) {
	rec := &recordingService{}
	e := newRouteTestServer(rec)

	rr := do(e, http.MethodPatch, "/orders/order-42/milestones/ms-7", `{"action":"start"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204 (%s)", rr.Code, rr.Body.String())
	}
	if rec.orderID != "order-42" || rec.milestoneID != "ms-7" {
		t.Errorf("StartMilestone received (%q, %q); want (%q, %q)",
			rec.orderID, rec.milestoneID, "order-42", "ms-7")
	}
}

func TestAssignAndDisputeRoutesDeliverOrderID(t *testing.T) {
	rec := &recordingService{}
	e := newRouteTestServer(rec)

	if rr := do(e, http.MethodPost, "/orders/order-42/assign", `{"expert_id":"expert-1"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("assign status = %d; want 204 (%s)", rr.Code, rr.Body.String())
	}
	if rec.orderID != "order-42" {
		t.Errorf("AssignExpert received orderID %q; want %q", rec.orderID, "order-42")
	}

	rec.orderID = ""
	if rr := do(e, http.MethodPost, "/orders/order-42/dispute", `{"reason":"late"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("dispute status = %d; want 204 (%s)", rr.Code, rr.Body.String())
	}
	if rec.orderID != "order-42" {
		t.Errorf("OpenDispute received orderID %q; want %q", rec.orderID, "order-42")
	}

	rec.orderID = ""
	if rr := do(e, http.MethodPost, "/orders/order-42/dispute/resolve", `{"outcome":"restore"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("resolve status = %d; want 204 (%s)", rr.Code, rr.Body.String())
	}
	if rec.orderID != "order-42" {
		t.Errorf("ResolveDispute received orderID %q; want %q", rec.orderID, "order-42")
	}
}
