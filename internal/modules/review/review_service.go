package review

import (
	"context"
	"fmt"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// ServiceInterface defines the contract for the review service.
type ServiceInterface interface {
	SubmitReview(ctx context.Context, orderID, studentID string, in models.SubmitReviewInput) (*models.Review, error)
	GetOrderReview(ctx context.Context, orderID, userID, role string) (*models.Review, error)
	ModerateReview(ctx context.Context, id string, in models.ModerateReviewInput) (*models.Review, error)
	ListExpertReviews(ctx context.Context, expertID string, page, limit int) ([]*models.Review, int, error)
	ListReviews(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.Review, int, error)
}

// Service implements the ServiceInterface.
type Service struct {
	repo     RepositoryInterface
	notifier notify.Notifier
}

// NewService creates a new review service.
func NewService(repo RepositoryInterface, notifier notify.Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// SubmitReview fills in the slot created when the order completed. One
// submission per order; the text and rating are frozen afterwards.
func (s *Service) SubmitReview(ctx context.Context, orderID, studentID string, in models.SubmitReviewInput) (*models.Review, error) {
	rv, err := s.repo.Submit(ctx, orderID, studentID, in)
	if err != nil {
		return nil, fmt.Errorf("service.SubmitReview: %w", err)
	}
	return rv, nil
}

// GetOrderReview retrieves an order's review for its student, the reviewed
// expert's owner, or an admin. Experts see it through the public listing
// once approved; here the check is on the review's parties.
func (s *Service) GetOrderReview(ctx context.Context, orderID, userID, role string) (*models.Review, error) {
	rv, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrderReview: %w", err)
	}
	if role != models.RoleAdmin && rv.StudentID != userID {
		return nil, models.ErrNotFound
	}
	return rv, nil
}

// ModerateReview approves or rejects a submitted review. Moderation is
// reversible, and the expert's public rating follows the decision.
func (s *Service) ModerateReview(ctx context.Context, id string, in models.ModerateReviewInput) (*models.Review, error) {
	status := models.ReviewRejected
	if in.Approved {
		status = models.ReviewApproved
	}
	rv, err := s.repo.Moderate(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("service.ModerateReview: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.EventReviewModerated,
			RecipientID: rv.StudentID,
			Subject:     "Your review was moderated",
			Body:        fmt.Sprintf("Your review for order %s is now %s.", rv.OrderID, rv.Status),
		})
	}
	return rv, nil
}

// ListExpertReviews retrieves an expert's approved reviews. Public.
func (s *Service) ListExpertReviews(ctx context.Context, expertID string, page, limit int) ([]*models.Review, int, error) {
	out, total, err := s.repo.ListPublicByExpert(ctx, expertID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListExpertReviews: %w", err)
	}
	return out, total, nil
}

// ListReviews retrieves the moderation queue.
func (s *Service) ListReviews(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.Review, int, error) {
	out, total, err := s.repo.ListAll(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListReviews: %w", err)
	}
	return out, total, nil
}
