package request

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pengu-backend/internal/models"
)

type fakeRepo struct {
	requests map[string]*models.Request
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: make(map[string]*models.Request)}
}

func (f *fakeRepo) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	cp := *req
	cp.ID = fmt.Sprintf("req-%d", len(f.requests)+1)
	cp.CreatedAt = time.Now()
	f.requests[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Request, int, error) {
	out := []*models.Request{}
	for _, req := range f.requests {
		if req.StudentID == studentID {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListAll(ctx context.Context, status models.RequestStatus, page, limit int) ([]*models.Request, int, error) {
	out := []*models.Request{}
	for _, req := range f.requests {
		if status == "" || req.Status == status {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) TransitionStatus(ctx context.Context, id string, to models.RequestStatus, from ...models.RequestStatus) error {
	req, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	for _, s := range from {
		if req.Status == s {
			req.Status = to
			return nil
		}
	}
	return models.ErrInvalidRequestState
}

func newTestService(fr *fakeRepo, now time.Time) *Service {
	svc := NewService(fr)
	svc.now = func() time.Time { return now }
	return svc
}

func validInput(deadline time.Time) models.SubmitRequestInput {
	return models.SubmitRequestInput{
		ServiceType: "assignment",
		Topic:       "Microeconomics problem set",
		Details:     "Ten questions on consumer choice",
		Deadline:    deadline,
	}
}

func TestSubmitRequest(t *testing.T) {
	fr := newFakeRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(fr, now)

	req, err := svc.SubmitRequest(context.Background(), "student-1", validInput(now.Add(72*time.Hour)))
	if err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}
	if req.Status != models.RequestSubmitted {
		t.Errorf("status = %s; want %s", req.Status, models.RequestSubmitted)
	}
	if req.StudentID != "student-1" {
		t.Errorf("student = %s; want student-1", req.StudentID)
	}
}

func TestSubmitRequestPastDeadline(t *testing.T) {
	fr := newFakeRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(fr, now)

	_, err := svc.SubmitRequest(context.Background(), "student-1", validInput(now.Add(-time.Hour)))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v; want ErrValidation", err)
	}
	if len(fr.requests) != 0 {
		t.Errorf("request count = %d; want 0", len(fr.requests))
	}
}

func TestGetRequestOwnership(t *testing.T) {
	fr := newFakeRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(fr, now)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "student-1", validInput(now.Add(72*time.Hour)))
	if err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}

	if _, err := svc.GetRequest(ctx, req.ID, "student-1", models.RoleStudent); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := svc.GetRequest(ctx, req.ID, "admin-1", models.RoleAdmin); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	if _, err := svc.GetRequest(ctx, req.ID, "student-2", models.RoleStudent); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stranger read error = %v; want ErrNotFound", err)
	}
}

func TestExpireRequest(t *testing.T) {
	fr := newFakeRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(fr, now)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "student-1", validInput(now.Add(72*time.Hour)))
	if err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}
	if err := svc.ExpireRequest(ctx, req.ID); err != nil {
		t.Fatalf("ExpireRequest failed: %v", err)
	}
	if fr.requests[req.ID].Status != models.RequestExpired {
		t.Errorf("status = %s; want %s", fr.requests[req.ID].Status, models.RequestExpired)
	}

	// Converted requests are terminal and cannot expire.
	fr.requests[req.ID].Status = models.RequestConverted
	if err := svc.ExpireRequest(ctx, req.ID); !errors.Is(err, models.ErrInvalidRequestState) {
		t.Errorf("error = %v; want ErrInvalidRequestState", err)
	}
}
