package order

import (
	"context"
	"errors"
	"fmt"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// ExpertDirectoryInterface is the slice of the expert module the order
// service needs: availability checks and the user id behind an expert
// profile for notifications.
type ExpertDirectoryInterface interface {
	GetExpert(ctx context.Context, expertID string) (*models.Expert, error)
	GetExpertByUser(ctx context.Context, userID string) (*models.Expert, error)
}

// ServiceInterface defines the contract for the order service.
type ServiceInterface interface {
	GetOrder(ctx context.Context, orderID, userID, role string) (*models.Order, error)
	ListStudentOrders(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error)
	ListExpertOrders(ctx context.Context, expertUserID string, page, limit int) ([]*models.Order, int, error)
	ListAllOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error)
	AssignExpert(ctx context.Context, orderID string, in models.AssignExpertInput) error
	StartMilestone(ctx context.Context, orderID, milestoneID, expertUserID string) error
	SubmitMilestone(ctx context.Context, orderID, milestoneID, expertUserID string, files []models.Attachment) error
	ReviewDeliverable(ctx context.Context, orderID, milestoneID string, approved bool, note string) error
	OpenDispute(ctx context.Context, orderID, userID, role, reason string) error
	ResolveDispute(ctx context.Context, orderID string, in models.ResolveDisputeInput) error
}

// Service implements the order service logic.
type Service struct {
	repo          RepositoryInterface
	experts       ExpertDirectoryInterface
	notifier      notify.Notifier
	commissionPct int
}

// NewService creates a new order service. commissionPct is the platform's
// percentage cut of each completed order.
func NewService(repo RepositoryInterface, experts ExpertDirectoryInterface, notifier notify.Notifier, commissionPct int) *Service {
	return &Service{
		repo:          repo,
		experts:       experts,
		notifier:      notifier,
		commissionPct: commissionPct,
	}
}

// GetOrder retrieves an order. Students see their own, experts their
// assignments, admins everything; anyone else gets NotFound.
func (s *Service) GetOrder(ctx context.Context, orderID, userID, role string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrder: %w", err)
	}
	switch role {
	case models.RoleAdmin:
	case models.RoleStudent:
		if order.StudentID != userID {
			return nil, models.ErrNotFound
		}
	case models.RoleExpert:
		ex, err := s.expertForUser(ctx, order, userID)
		if err != nil || ex == nil {
			return nil, models.ErrNotFound
		}
	default:
		return nil, models.ErrNotFound
	}
	return order, nil
}

// ListStudentOrders retrieves the caller's orders.
func (s *Service) ListStudentOrders(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error) {
	page, limit = clampPage(page, limit)
	return s.repo.ListByStudent(ctx, studentID, page, limit)
}

// ListExpertOrders retrieves the caller's assignments. Orders key on the
// expert profile id, so the user is resolved to their profile first; a user
// without one has no assignments.
func (s *Service) ListExpertOrders(ctx context.Context, expertUserID string, page, limit int) ([]*models.Order, int, error) {
	ex, err := s.experts.GetExpertByUser(ctx, expertUserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return []*models.Order{}, 0, nil
		}
		return nil, 0, fmt.Errorf("service.ListExpertOrders: %w", err)
	}
	page, limit = clampPage(page, limit)
	return s.repo.ListByExpert(ctx, ex.ID, page, limit)
}

// ListAllOrders lists all orders in the system (admin).
func (s *Service) ListAllOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	page, limit = clampPage(page, limit)
	return s.repo.ListAll(ctx, status, page, limit)
}

// AssignExpert assigns (or reassigns) an Active, online expert to an order
// still in PAID_CONFIRMED or ASSIGNED. The availability check is advisory
// here; the repository re-checks it inside the assignment transaction so
// concurrent assignments produce exactly one winner.
func (s *Service) AssignExpert(ctx context.Context, orderID string, in models.AssignExpertInput) error {
	ex, err := s.experts.GetExpert(ctx, in.ExpertID)
	if err != nil {
		return fmt.Errorf("service.AssignExpert: %w", err)
	}
	if ex.Status != models.ExpertActive || !ex.Online {
		return models.ErrExpertUnavailable
	}

	if err := s.repo.AssignExpert(ctx, orderID, in.ExpertID); err != nil {
		return fmt.Errorf("service.AssignExpert: %w", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.EventExpertAssigned,
		RecipientID: ex.UserID,
		Subject:     "New order assigned to you",
		Body:        fmt.Sprintf("Order %s has been assigned to you.", orderID),
	})
	return nil
}

// StartMilestone lets the assigned expert begin the next pending milestone.
func (s *Service) StartMilestone(ctx context.Context, orderID, milestoneID, expertUserID string) error {
	if err := s.authorizeExpert(ctx, orderID, expertUserID); err != nil {
		return err
	}
	if err := s.repo.StartMilestone(ctx, orderID, milestoneID); err != nil {
		return fmt.Errorf("service.StartMilestone: %w", err)
	}
	return nil
}

// SubmitMilestone delivers the expert's work for quality control.
func (s *Service) SubmitMilestone(ctx context.Context, orderID, milestoneID, expertUserID string, files []models.Attachment) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one file is required", models.ErrValidation)
	}
	if err := s.authorizeExpert(ctx, orderID, expertUserID); err != nil {
		return err
	}
	if err := s.repo.SubmitMilestone(ctx, orderID, milestoneID, files); err != nil {
		return fmt.Errorf("service.SubmitMilestone: %w", err)
	}
	// No recipient: QC watches the review queue.
	s.notifier.Notify(ctx, notify.Event{
		Kind:    notify.EventMilestoneDelivered,
		Subject: "Deliverable awaiting review",
		Body:    fmt.Sprintf("Order %s has a new deliverable awaiting quality control.", orderID),
	})
	return nil
}

// ReviewDeliverable is the QC gate on a DELIVERED milestone. Approval of the
// final milestone completes the order and credits the expert; rejection
// returns the milestone to IN_PROGRESS and queues a revision notification
// exactly once.
func (s *Service) ReviewDeliverable(ctx context.Context, orderID, milestoneID string, approved bool, note string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.ReviewDeliverable: %w", err)
	}

	if !approved {
		if err := s.repo.RejectMilestone(ctx, orderID, milestoneID); err != nil {
			return fmt.Errorf("service.ReviewDeliverable: %w", err)
		}
		s.notifyExpert(ctx, order, notify.Event{
			Kind:    notify.EventRevisionRequested,
			Subject: "Revision requested",
			Body:    fmt.Sprintf("A deliverable on order %s needs revision. %s", orderID, note),
		})
		return nil
	}

	commission := order.Amount * int64(s.commissionPct) / 100
	expertCredit := order.Amount - commission
	completed, err := s.repo.ApproveMilestone(ctx, orderID, milestoneID, commission, expertCredit)
	if err != nil {
		return fmt.Errorf("service.ReviewDeliverable: %w", err)
	}
	if completed {
		s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.EventOrderCompleted,
			RecipientID: order.StudentID,
			Subject:     "Your order is complete",
			Body:        fmt.Sprintf("Order %s is complete. Please leave a review.", orderID),
		})
		s.notifyExpert(ctx, order, notify.Event{
			Kind:    notify.EventOrderCompleted,
			Subject: "Order completed",
			Body:    fmt.Sprintf("Order %s is complete. %d TK has been credited to your balance.", orderID, expertCredit),
		})
	}
	return nil
}

// OpenDispute parks an active order in DISPUTE.
func (s *Service) OpenDispute(ctx context.Context, orderID, userID, role, reason string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.OpenDispute: %w", err)
	}
	if role == models.RoleStudent && order.StudentID != userID {
		return models.ErrNotFound
	}
	if err := s.repo.OpenDispute(ctx, orderID, reason); err != nil {
		return fmt.Errorf("service.OpenDispute: %w", err)
	}
	// No recipient: admins watch the dispute queue.
	s.notifier.Notify(ctx, notify.Event{
		Kind:    notify.EventDisputeOpened,
		Subject: "Dispute opened",
		Body:    fmt.Sprintf("A dispute was opened on order %s: %s", orderID, reason),
	})
	return nil
}

// ResolveDispute closes a dispute (admin). Restore puts the order back in
// its pre-dispute status; refund cancels it and returns the full amount to
// the student's wallet as platform credit.
func (s *Service) ResolveDispute(ctx context.Context, orderID string, in models.ResolveDisputeInput) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.ResolveDispute: %w", err)
	}

	if in.Outcome == models.DisputeOutcomeRefund {
		if err := s.repo.RefundDispute(ctx, orderID); err != nil {
			return fmt.Errorf("service.ResolveDispute: %w", err)
		}
		s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.EventDisputeResolved,
			RecipientID: order.StudentID,
			Subject:     "Dispute resolved",
			Body:        fmt.Sprintf("Order %s was cancelled. %d TK has been credited to your wallet.", orderID, order.Amount),
		})
		return nil
	}

	if err := s.repo.ResolveDispute(ctx, orderID); err != nil {
		return fmt.Errorf("service.ResolveDispute: %w", err)
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.EventDisputeResolved,
		RecipientID: order.StudentID,
		Subject:     "Dispute resolved",
		Body:        fmt.Sprintf("The dispute on order %s was resolved and work continues.", orderID),
	})
	return nil
}

// authorizeExpert ensures the caller is the expert assigned to the order.
func (s *Service) authorizeExpert(ctx context.Context, orderID, expertUserID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.authorizeExpert: %w", err)
	}
	ex, err := s.expertForUser(ctx, order, expertUserID)
	if err != nil {
		return err
	}
	if ex == nil {
		return models.ErrForbidden
	}
	return nil
}

// expertForUser resolves the order's assigned expert when it belongs to the
// given user, nil otherwise.
func (s *Service) expertForUser(ctx context.Context, order *models.Order, userID string) (*models.Expert, error) {
	if order.ExpertID == nil {
		return nil, nil
	}
	ex, err := s.experts.GetExpert(ctx, *order.ExpertID)
	if err != nil {
		return nil, fmt.Errorf("service.expertForUser: %w", err)
	}
	if ex.UserID != userID {
		return nil, nil
	}
	return ex, nil
}

func (s *Service) notifyExpert(ctx context.Context, order *models.Order, ev notify.Event) {
	if order.ExpertID == nil {
		return
	}
	ex, err := s.experts.GetExpert(ctx, *order.ExpertID)
	if err != nil {
		return
	}
	ev.RecipientID = ex.UserID
	s.notifier.Notify(ctx, ev)
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
