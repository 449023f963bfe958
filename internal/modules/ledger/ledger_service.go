package ledger

import (
	"context"
	"fmt"

	"pengu-backend/internal/models"
)

// ServiceInterface defines the contract for the ledger service.
type ServiceInterface interface {
	ListTransactions(ctx context.Context, txType models.TransactionType, orderID string, page, limit int) ([]*models.FinancialTransaction, int, error)
	Summarize(ctx context.Context) (*models.LedgerSummary, error)
}

// Service implements the ServiceInterface.
type Service struct {
	repo RepositoryInterface
}

// NewService creates a new ledger service.
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// ListTransactions retrieves ledger entries for the admin finance view.
func (s *Service) ListTransactions(ctx context.Context, txType models.TransactionType, orderID string, page, limit int) ([]*models.FinancialTransaction, int, error) {
	out, total, err := s.repo.List(ctx, txType, orderID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListTransactions: %w", err)
	}
	return out, total, nil
}

// Summarize aggregates platform totals per transaction type.
func (s *Service) Summarize(ctx context.Context) (*models.LedgerSummary, error) {
	sm, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Summarize: %w", err)
	}
	return sm, nil
}
