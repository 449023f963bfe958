package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the ledger repository.
// The ledger is append-only and every insert happens inside the state
// machine transactions that produce the entries, so this repository only
// reads.
type RepositoryInterface interface {
	List(ctx context.Context, txType models.TransactionType, orderID string, page, limit int) ([]*models.FinancialTransaction, int, error)
	Summary(ctx context.Context) (*models.LedgerSummary, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ledger repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const txColumns = `id, type, amount, description, order_id, actor_id, status, created_at`

func scanTransaction(row pgx.Row) (*models.FinancialTransaction, error) {
	var ft models.FinancialTransaction
	err := row.Scan(
		&ft.ID,
		&ft.Type,
		&ft.Amount,
		&ft.Description,
		&ft.OrderID,
		&ft.ActorID,
		&ft.Status,
		&ft.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &ft, nil
}

// List retrieves ledger entries newest first, optionally filtered by type
// and order.
func (r *Repository) List(ctx context.Context, txType models.TransactionType, orderID string, page, limit int) ([]*models.FinancialTransaction, int, error) {
	offset := (page - 1) * limit
	where := `WHERE ($1 = '' OR type = $1) AND ($2 = '' OR order_id::text = $2)`
	rows, err := r.db.Query(ctx, `
		SELECT `+txColumns+` FROM financial_transactions `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		string(txType), orderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.FinancialTransaction
	for rows.Next() {
		ft, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.List.scan: %w", err)
		}
		out = append(out, ft)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM financial_transactions `+where,
		string(txType), orderID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List.Count: %w", err)
	}
	return out, total, nil
}

// Summary aggregates totals per transaction type in one pass.
func (r *Repository) Summary(ctx context.Context) (*models.LedgerSummary, error) {
	var sm models.LedgerSummary
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $3), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $4), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $5), 0)
		FROM financial_transactions`,
		string(models.TxIncome), string(models.TxCommission),
		string(models.TxExpertCredit), string(models.TxWithdrawal),
		string(models.TxRefund)).
		Scan(&sm.TotalIncome, &sm.TotalCommission, &sm.TotalExpertCredit, &sm.TotalWithdrawal, &sm.TotalRefund)
	if err != nil {
		return nil, fmt.Errorf("repository.Summary: %w", err)
	}
	return &sm, nil
}
