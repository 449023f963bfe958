package expert

import (
	"context"
	"fmt"

	"pengu-backend/internal/models"
)

// ServiceInterface defines the contract for the expert service.
type ServiceInterface interface {
	RegisterExpert(ctx context.Context, userID string, in models.RegisterExpertInput) (*models.Expert, error)
	GetExpert(ctx context.Context, expertID string) (*models.Expert, error)
	GetExpertByUser(ctx context.Context, userID string) (*models.Expert, error)
	ListExperts(ctx context.Context, status models.ExpertStatus, onlineOnly bool, page, limit int) ([]*models.Expert, int, error)
	SetStatus(ctx context.Context, expertID string, status models.ExpertStatus) error
	SetOnline(ctx context.Context, userID string, online bool) error
	AddPayoutMethod(ctx context.Context, userID, role string, in models.AddPayoutMethodInput) (*models.PayoutMethod, error)
	ListPayoutMethods(ctx context.Context, userID, role string) ([]models.PayoutMethod, error)
}

// Service implements the expert service logic.
type Service struct {
	repo RepositoryInterface
}

// NewService creates a new expert service.
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// RegisterExpert creates a PENDING expert profile awaiting admin vetting.
func (s *Service) RegisterExpert(ctx context.Context, userID string, in models.RegisterExpertInput) (*models.Expert, error) {
	ex, err := s.repo.Create(ctx, &models.Expert{
		UserID:   userID,
		Bio:      in.Bio,
		Subjects: in.Subjects,
	})
	if err != nil {
		return nil, fmt.Errorf("service.RegisterExpert: %w", err)
	}
	return ex, nil
}

// GetExpert retrieves an expert profile by id.
func (s *Service) GetExpert(ctx context.Context, expertID string) (*models.Expert, error) {
	return s.repo.FindByID(ctx, expertID)
}

// GetExpertByUser retrieves the expert profile owned by a user account.
func (s *Service) GetExpertByUser(ctx context.Context, userID string) (*models.Expert, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// ListExperts lists expert profiles for the admin directory.
func (s *Service) ListExperts(ctx context.Context, status models.ExpertStatus, onlineOnly bool, page, limit int) ([]*models.Expert, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, status, onlineOnly, page, limit)
}

// SetStatus activates or suspends an expert (admin vetting decision).
func (s *Service) SetStatus(ctx context.Context, expertID string, status models.ExpertStatus) error {
	if err := s.repo.UpdateStatus(ctx, expertID, status); err != nil {
		return fmt.Errorf("service.SetStatus: %w", err)
	}
	return nil
}

// SetOnline toggles the caller's own presence flag.
func (s *Service) SetOnline(ctx context.Context, userID string, online bool) error {
	ex, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service.SetOnline: %w", err)
	}
	if err := s.repo.SetOnline(ctx, ex.ID, online); err != nil {
		return fmt.Errorf("service.SetOnline: %w", err)
	}
	return nil
}

// AddPayoutMethod stores a payout destination. For experts the owner is
// the profile id, for students it is the user id, matching the actor id a
// withdrawal is filed against.
func (s *Service) AddPayoutMethod(ctx context.Context, userID, role string, in models.AddPayoutMethodInput) (*models.PayoutMethod, error) {
	ownerID, err := s.payoutOwner(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("service.AddPayoutMethod: %w", err)
	}
	pm, err := s.repo.AddPayoutMethod(ctx, &models.PayoutMethod{
		OwnerID:    ownerID,
		Kind:       in.Kind,
		Label:      in.Label,
		AccountRef: in.AccountRef,
	})
	if err != nil {
		return nil, fmt.Errorf("service.AddPayoutMethod: %w", err)
	}
	return pm, nil
}

// ListPayoutMethods retrieves the caller's payout destinations.
func (s *Service) ListPayoutMethods(ctx context.Context, userID, role string) ([]models.PayoutMethod, error) {
	ownerID, err := s.payoutOwner(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("service.ListPayoutMethods: %w", err)
	}
	return s.repo.ListPayoutMethods(ctx, ownerID)
}

func (s *Service) payoutOwner(ctx context.Context, userID, role string) (string, error) {
	if role != models.RoleExpert {
		return userID, nil
	}
	ex, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return ex.ID, nil
}
