package withdrawal

import (
	"context"
	"fmt"
	"log"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// ExpertDirectoryInterface is the slice of the expert repository the
// withdrawal service needs: resolving callers to expert profiles and
// checking payout method ownership.
type ExpertDirectoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.Expert, error)
	FindByUserID(ctx context.Context, userID string) (*models.Expert, error)
	FindPayoutMethod(ctx context.Context, id, ownerID string) (*models.PayoutMethod, error)
}

// ServiceInterface defines the contract for the withdrawal service.
type ServiceInterface interface {
	RequestWithdrawal(ctx context.Context, userID, role string, in models.CreateWithdrawalInput) (*models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id, userID, role string) (*models.WithdrawalRequest, error)
	Resolve(ctx context.Context, id string, in models.UpdateWithdrawalInput) error
	ListMyWithdrawals(ctx context.Context, userID, role string, page, limit int) ([]*models.WithdrawalRequest, int, error)
	ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, actorType string, page, limit int) ([]*models.WithdrawalRequest, int, error)
}

// Service implements the ServiceInterface.
type Service struct {
	repo     RepositoryInterface
	experts  ExpertDirectoryInterface
	notifier notify.Notifier
}

// NewService creates a new withdrawal service.
func NewService(repo RepositoryInterface, experts ExpertDirectoryInterface, notifier notify.Notifier) *Service {
	return &Service{repo: repo, experts: experts, notifier: notifier}
}

// RequestWithdrawal reserves funds and files a PENDING request. Experts
// withdraw earnings from their profile balance, students withdraw credits
// from their wallet; both must own the named payout method.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, role string, in models.CreateWithdrawalInput) (*models.WithdrawalRequest, error) {
	actorType, actorID, err := s.resolveActor(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if _, err := s.experts.FindPayoutMethod(ctx, in.MethodID, actorID); err != nil {
		return nil, fmt.Errorf("service.RequestWithdrawal: %w", err)
	}

	wr, err := s.repo.Create(ctx, &models.WithdrawalRequest{
		ActorType: actorType,
		ActorID:   actorID,
		Amount:    in.Amount,
		MethodID:  in.MethodID,
	})
	if err != nil {
		return nil, fmt.Errorf("service.RequestWithdrawal: %w", err)
	}
	return wr, nil
}

// GetWithdrawal retrieves a request, visible to its owner and to admins.
func (s *Service) GetWithdrawal(ctx context.Context, id, userID, role string) (*models.WithdrawalRequest, error) {
	wr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.GetWithdrawal: %w", err)
	}
	if role == models.RoleAdmin {
		return wr, nil
	}
	actorType, actorID, err := s.resolveActor(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if wr.ActorType != actorType || wr.ActorID != actorID {
		return nil, models.ErrNotFound
	}
	return wr, nil
}

// Resolve applies an admin action. confirm and pay drive the expert path,
// approve is the single student-path step, reject works on either. Actions
// that do not match the request's actor type are conflicts, not no-ops.
func (s *Service) Resolve(ctx context.Context, id string, in models.UpdateWithdrawalInput) error {
	wr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.Resolve: %w", err)
	}

	switch in.Action {
	case models.WithdrawalActionConfirm:
		if wr.ActorType != models.ActorExpert {
			return models.ErrConflict
		}
		return s.repo.Confirm(ctx, id)
	case models.WithdrawalActionPay:
		if wr.ActorType != models.ActorExpert {
			return models.ErrConflict
		}
		err = s.repo.MarkPaid(ctx, id, in.Note)
	case models.WithdrawalActionApprove:
		if wr.ActorType != models.ActorStudent {
			return models.ErrConflict
		}
		err = s.repo.MarkPaid(ctx, id, in.Note)
	case models.WithdrawalActionReject:
		err = s.repo.Reject(ctx, id, in.Note)
	default:
		return models.ErrValidation
	}
	if err != nil {
		return fmt.Errorf("service.Resolve: %w", err)
	}

	s.notifyResolved(ctx, wr, in.Action)
	return nil
}

// ListMyWithdrawals retrieves the caller's withdrawal history.
func (s *Service) ListMyWithdrawals(ctx context.Context, userID, role string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	actorType, actorID, err := s.resolveActor(ctx, userID, role)
	if err != nil {
		return nil, 0, err
	}
	out, total, err := s.repo.ListByActor(ctx, actorType, actorID, clampPage(page), clampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListMyWithdrawals: %w", err)
	}
	return out, total, nil
}

// ListWithdrawals retrieves the admin payout queue.
func (s *Service) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, actorType string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	out, total, err := s.repo.ListAll(ctx, status, actorType, clampPage(page), clampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListWithdrawals: %w", err)
	}
	return out, total, nil
}

// resolveActor maps the authenticated user to the balance holder the
// withdrawal is filed against. Experts must hold an ACTIVE profile.
func (s *Service) resolveActor(ctx context.Context, userID, role string) (string, string, error) {
	switch role {
	case models.RoleExpert:
		ex, err := s.experts.FindByUserID(ctx, userID)
		if err != nil {
			return "", "", fmt.Errorf("service.resolveActor: %w", err)
		}
		if ex.Status != models.ExpertActive {
			return "", "", models.ErrForbidden
		}
		return models.ActorExpert, ex.ID, nil
	case models.RoleStudent:
		return models.ActorStudent, userID, nil
	}
	return "", "", models.ErrForbidden
}

func (s *Service) notifyResolved(ctx context.Context, wr *models.WithdrawalRequest, action string) {
	if s.notifier == nil {
		return
	}
	recipient := wr.ActorID
	if wr.ActorType == models.ActorExpert {
		ex, err := s.experts.FindByID(ctx, wr.ActorID)
		if err != nil {
			log.Printf("WARN: withdrawal %s: resolve recipient lookup failed: %v", wr.ID, err)
			return
		}
		recipient = ex.UserID
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.EventWithdrawalResolved,
		RecipientID: recipient,
		Subject:     "Your withdrawal request was updated",
		Body:        fmt.Sprintf("Withdrawal request %s: %s.", wr.ID, action),
	})
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampLimit(limit int) int {
	if limit < 1 || limit > 100 {
		return 20
	}
	return limit
}
