package quote

import (
	"context"
	"fmt"
	"log"
	"time"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// PaymentServiceInterface defines the contract for a payment processing
// service. Amounts are in the smallest currency unit.
type PaymentServiceInterface interface {
	Capture(ctx context.Context, studentID string, amount int64, currency, paymentMethodID string) (string, error)
}

// ServiceInterface defines the contract for the quote service.
type ServiceInterface interface {
	CreateQuote(ctx context.Context, in models.CreateQuoteInput) (*models.Quote, error)
	GetQuote(ctx context.Context, id, userID, role string) (*models.Quote, error)
	Negotiate(ctx context.Context, quoteID, userID, role string, in models.NegotiateInput) (*models.NegotiationMessage, error)
	AcceptQuote(ctx context.Context, quoteID, studentID string, in models.AcceptQuoteInput) (*models.Order, error)
	RejectQuote(ctx context.Context, quoteID, studentID string) error
	ExpireDueQuotes(ctx context.Context) (int, error)
	ListQuotes(ctx context.Context, status models.QuoteStatus, page, limit int) ([]*models.Quote, int, error)
}

// Service implements the quote service logic.
type Service struct {
	repo           RepositoryInterface
	paymentService PaymentServiceInterface
	notifier       notify.Notifier
	now            func() time.Time
}

// NewService creates a new quote service.
func NewService(repo RepositoryInterface, paymentService PaymentServiceInterface, notifier notify.Notifier) *Service {
	return &Service{
		repo:           repo,
		paymentService: paymentService,
		notifier:       notifier,
		now:            time.Now,
	}
}

// CreateQuote issues a quote against a SUBMITTED or NEGOTIATION request.
// A prior pending quote for the same request is superseded atomically.
func (s *Service) CreateQuote(ctx context.Context, in models.CreateQuoteInput) (*models.Quote, error) {
	terms := in.Terms
	if terms.Currency == "" {
		terms.Currency = "BDT"
	}
	if !terms.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: quote expiry must be in the future", models.ErrValidation)
	}
	q, err := s.repo.CreateQuote(ctx, in.RequestID, terms)
	if err != nil {
		return nil, fmt.Errorf("service.CreateQuote: %w", err)
	}

	if req, err := s.repo.RequestForQuote(ctx, q.ID); err == nil {
		s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.EventQuoteIssued,
			RecipientID: req.StudentID,
			Subject:     "You have received a quote",
			Body:        fmt.Sprintf("A quote of %d %s was issued for your request.", q.Amount, q.Currency),
		})
	}
	return q, nil
}

// GetQuote retrieves a quote with its negotiation history. Students may only
// read quotes on their own requests.
func (s *Service) GetQuote(ctx context.Context, id, userID, role string) (*models.Quote, error) {
	q, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.GetQuote: %w", err)
	}
	if role != models.RoleAdmin {
		req, err := s.repo.RequestForQuote(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("service.GetQuote: %w", err)
		}
		if req.StudentID != userID {
			return nil, models.ErrNotFound // avoid leaking existence
		}
	}
	return q, nil
}

// Negotiate appends a message to the quote thread. A student message moves
// the request to NEGOTIATION. An admin message may carry replacement terms;
// the terms update and the append happen in one transaction and the request
// returns to QUOTED. Terms are always explicit and complete: an "unchanged"
// amount is whatever the caller sends, never inferred from a placeholder.
func (s *Service) Negotiate(ctx context.Context, quoteID, userID, role string, in models.NegotiateInput) (*models.NegotiationMessage, error) {
	q, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("service.Negotiate: %w", err)
	}
	if q.Status != models.QuoteStatusPending {
		return nil, models.ErrQuoteNotPending
	}
	req, err := s.repo.RequestForQuote(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("service.Negotiate: %w", err)
	}
	if req.Status.Terminal() {
		return nil, models.ErrInvalidRequestState
	}

	msg := &models.NegotiationMessage{SenderRole: role, Message: in.Message}
	var terms *models.QuoteTerms
	var newStatus models.RequestStatus
	var recipient string
	switch role {
	case models.RoleStudent:
		if req.StudentID != userID {
			return nil, models.ErrNotFound
		}
		if in.Terms != nil {
			return nil, models.ErrForbidden
		}
		newStatus = models.RequestNegotiation
		recipient = "" // admins watch the negotiation queue
	case models.RoleAdmin:
		terms = in.Terms
		if terms != nil {
			if terms.Currency == "" {
				terms.Currency = q.Currency
			}
			msg.RelatedAmount = &terms.Amount
		}
		newStatus = models.RequestQuoted
		recipient = req.StudentID
	default:
		return nil, models.ErrForbidden
	}

	out, err := s.repo.Negotiate(ctx, quoteID, msg, terms, newStatus)
	if err != nil {
		return nil, fmt.Errorf("service.Negotiate: %w", err)
	}

	if recipient != "" {
		s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.EventNegotiationMessage,
			RecipientID: recipient,
			Subject:     "Update on your quote",
			Body:        in.Message,
		})
	}
	return out, nil
}

// AcceptQuote captures payment and converts the quote into an order with one
// PENDING milestone per quoted milestone, due dates apportioned evenly over
// the quoted timeline. Expiry is enforced lazily here.
func (s *Service) AcceptQuote(ctx context.Context, quoteID, studentID string, in models.AcceptQuoteInput) (*models.Order, error) {
	q, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("service.AcceptQuote: %w", err)
	}
	req, err := s.repo.RequestForQuote(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("service.AcceptQuote: %w", err)
	}
	if req.StudentID != studentID {
		return nil, models.ErrNotFound
	}
	if q.Status != models.QuoteStatusPending {
		return nil, models.ErrQuoteNotPending
	}
	if s.now().After(q.ExpiresAt) {
		if err := s.repo.MarkExpired(ctx, quoteID); err != nil && err != models.ErrQuoteNotPending {
			return nil, fmt.Errorf("service.AcceptQuote: expire: %w", err)
		}
		return nil, models.ErrQuoteExpired
	}

	paymentRef, err := s.paymentService.Capture(ctx, studentID, q.Amount, q.Currency, in.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentFailed, err)
	}

	milestones := apportionMilestones(q.Milestones, q.TimelineDays, s.now())
	order, err := s.repo.Accept(ctx, quoteID, paymentRef, milestones)
	if err != nil {
		// Payment went through but the conversion did not. The captured
		// intent is recorded in the log for manual reconciliation.
		log.Printf("CRITICAL: payment %s captured for quote %s but order creation failed: %v", paymentRef, quoteID, err)
		return nil, fmt.Errorf("service.AcceptQuote: %w", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.EventOrderCreated,
		RecipientID: studentID,
		Subject:     "Your order has been created",
		Body:        fmt.Sprintf("Order %s is confirmed and awaiting expert assignment.", order.ID),
	})
	return order, nil
}

// RejectQuote lets the student decline a pending quote; the request returns
// to SUBMITTED so the admin can issue new terms.
func (s *Service) RejectQuote(ctx context.Context, quoteID, studentID string) error {
	req, err := s.repo.RequestForQuote(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("service.RejectQuote: %w", err)
	}
	if req.StudentID != studentID {
		return models.ErrNotFound
	}
	if err := s.repo.MarkRejected(ctx, quoteID); err != nil {
		return fmt.Errorf("service.RejectQuote: %w", err)
	}
	return nil
}

// ExpireDueQuotes is the idempotent admin sweep over lapsed pending quotes.
func (s *Service) ExpireDueQuotes(ctx context.Context) (int, error) {
	return s.repo.ExpireDue(ctx, s.now())
}

// ListQuotes lists quotes for the admin dashboard.
func (s *Service) ListQuotes(ctx context.Context, status models.QuoteStatus, page, limit int) ([]*models.Quote, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListAll(ctx, status, page, limit)
}

// apportionMilestones spreads milestone due dates evenly over the quoted
// timeline: milestone i of n is due after timelineDays*(i+1)/n days.
func apportionMilestones(titles []string, timelineDays int, start time.Time) []*models.Milestone {
	n := len(titles)
	out := make([]*models.Milestone, 0, n)
	for i, title := range titles {
		hours := timelineDays * 24 * (i + 1) / n
		out = append(out, &models.Milestone{
			Position: i,
			Title:    title,
			DueDate:  start.Add(time.Duration(hours) * time.Hour),
			Status:   models.MilestonePending,
		})
	}
	return out
}
