package request

import (
	"context"
	"fmt"
	"time"

	"pengu-backend/internal/models"
)

// ServiceInterface defines the contract for the request service.
type ServiceInterface interface {
	SubmitRequest(ctx context.Context, studentID string, in models.SubmitRequestInput) (*models.Request, error)
	GetRequest(ctx context.Context, id, userID, role string) (*models.Request, error)
	ListStudentRequests(ctx context.Context, studentID string, page, limit int) ([]*models.Request, int, error)
	ListAllRequests(ctx context.Context, status models.RequestStatus, page, limit int) ([]*models.Request, int, error)
	ExpireRequest(ctx context.Context, id string) error
}

// Service implements the request service logic.
type Service struct {
	repo RepositoryInterface
	now  func() time.Time
}

// NewService creates a new request service.
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SubmitRequest creates a new request in SUBMITTED. The deadline must be
// strictly in the future; field presence is enforced by the handler's
// validator, so only the cross-field rule lives here.
func (s *Service) SubmitRequest(ctx context.Context, studentID string, in models.SubmitRequestInput) (*models.Request, error) {
	if !in.Deadline.After(s.now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", models.ErrValidation)
	}
	req := &models.Request{
		StudentID:   studentID,
		ServiceType: in.ServiceType,
		Topic:       in.Topic,
		Details:     in.Details,
		Deadline:    in.Deadline,
		Attachments: in.Attachments,
		Status:      models.RequestSubmitted,
	}
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("service.SubmitRequest: %w", err)
	}
	return created, nil
}

// GetRequest retrieves a request. Students only see their own; the owning
// check returns NotFound to avoid leaking existence.
func (s *Service) GetRequest(ctx context.Context, id, userID, role string) (*models.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.GetRequest: %w", err)
	}
	if role != models.RoleAdmin && req.StudentID != userID {
		return nil, models.ErrNotFound
	}
	return req, nil
}

// ListStudentRequests retrieves the caller's requests.
func (s *Service) ListStudentRequests(ctx context.Context, studentID string, page, limit int) ([]*models.Request, int, error) {
	page, limit = clampPage(page, limit)
	return s.repo.ListByStudent(ctx, studentID, page, limit)
}

// ListAllRequests lists requests across students (admin).
func (s *Service) ListAllRequests(ctx context.Context, status models.RequestStatus, page, limit int) ([]*models.Request, int, error) {
	page, limit = clampPage(page, limit)
	return s.repo.ListAll(ctx, status, page, limit)
}

// ExpireRequest moves a pre-conversion request to EXPIRED.
func (s *Service) ExpireRequest(ctx context.Context, id string) error {
	return s.repo.TransitionStatus(ctx, id, models.RequestExpired,
		models.RequestSubmitted, models.RequestQuoted, models.RequestNegotiation)
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
