package withdrawal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the withdrawal repository.
// Creation reserves funds and resolution settles or releases them, each in
// a single transaction guarded against replays and double-spends.
type RepositoryInterface interface {
	Create(ctx context.Context, wr *models.WithdrawalRequest) (*models.WithdrawalRequest, error)
	FindByID(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	Confirm(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, id, note string) error
	Reject(ctx context.Context, id, note string) error
	ListAll(ctx context.Context, status models.WithdrawalStatus, actorType string, page, limit int) ([]*models.WithdrawalRequest, int, error)
	ListByActor(ctx context.Context, actorType, actorID string, page, limit int) ([]*models.WithdrawalRequest, int, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new withdrawal repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const withdrawalColumns = `id, actor_type, actor_id, amount, method_id, status, admin_note, resolved_at, created_at`

func scanWithdrawal(row pgx.Row) (*models.WithdrawalRequest, error) {
	var wr models.WithdrawalRequest
	err := row.Scan(
		&wr.ID,
		&wr.ActorType,
		&wr.ActorID,
		&wr.Amount,
		&wr.MethodID,
		&wr.Status,
		&wr.AdminNote,
		&wr.ResolvedAt,
		&wr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
	}
	return &wr, nil
}

// reserveSQL returns the guarded reservation statement for the actor type.
// The balance check and the reservation are one UPDATE, so two concurrent
// requests whose sum exceeds the available balance cannot both pass.
func reserveSQL(actorType string) string {
	if actorType == models.ActorExpert {
		return `UPDATE experts SET reserved = reserved + $1, updated_at = NOW()
			WHERE id = $2 AND balance - reserved >= $1`
	}
	return `UPDATE student_wallets SET reserved = reserved + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance - reserved >= $1`
}

func settleSQL(actorType string) string {
	if actorType == models.ActorExpert {
		return `UPDATE experts SET balance = balance - $1, reserved = reserved - $1, updated_at = NOW()
			WHERE id = $2`
	}
	return `UPDATE student_wallets SET balance = balance - $1, reserved = reserved - $1, updated_at = NOW()
		WHERE user_id = $2`
}

func releaseSQL(actorType string) string {
	if actorType == models.ActorExpert {
		return `UPDATE experts SET reserved = reserved - $1, updated_at = NOW() WHERE id = $2`
	}
	return `UPDATE student_wallets SET reserved = reserved - $1, updated_at = NOW() WHERE user_id = $2`
}

// Create reserves the amount against the actor's balance and inserts the
// PENDING request in one transaction.
func (r *Repository) Create(ctx context.Context, wr *models.WithdrawalRequest) (*models.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.Create.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, reserveSQL(wr.ActorType), wr.Amount, wr.ActorID)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: reserve: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, models.ErrInsufficientBalance
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO withdrawal_requests (actor_type, actor_id, amount, method_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+withdrawalColumns,
		wr.ActorType, wr.ActorID, wr.Amount, wr.MethodID, string(models.WithdrawalPending))
	out, err := scanWithdrawal(row)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.Create.Commit: %w", err)
	}
	return out, nil
}

// FindByID retrieves a withdrawal request.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	return scanWithdrawal(r.db.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
}

// Confirm is the first admin touch of the expert path. Funds stay reserved.
func (r *Repository) Confirm(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE withdrawal_requests SET status = $1
		WHERE id = $2 AND status = $3 AND actor_type = $4`,
		string(models.WithdrawalConfirmed), id,
		string(models.WithdrawalPending), models.ActorExpert)
	if err != nil {
		return fmt.Errorf("repository.Confirm: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

// MarkPaid settles the reservation and appends the WITHDRAWAL ledger row in
// one transaction. Expert requests must be CONFIRMED (the second admin
// touch); student requests go straight from PENDING. The guarded UPDATE
// makes the call idempotent: a replay matches no row and the balance is
// never deducted twice.
func (r *Repository) MarkPaid(ctx context.Context, id, note string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.MarkPaid.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var actorType, actorID string
	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, admin_note = $2, resolved_at = NOW()
		WHERE id = $3
		  AND ((actor_type = $4 AND status = $5) OR (actor_type = $6 AND status = $7))
		RETURNING actor_type, actor_id, amount`,
		string(models.WithdrawalPaid), note, id,
		models.ActorExpert, string(models.WithdrawalConfirmed),
		models.ActorStudent, string(models.WithdrawalPending)).
		Scan(&actorType, &actorID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.conflict(ctx, id)
		}
		return fmt.Errorf("repository.MarkPaid: %w", err)
	}

	if _, err := tx.Exec(ctx, settleSQL(actorType), amount, actorID); err != nil {
		return fmt.Errorf("repository.MarkPaid: settle: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO financial_transactions (type, amount, description, actor_id, status)
		VALUES ($1, $2, 'Withdrawal paid out', $3, 'COMPLETED')`,
		string(models.TxWithdrawal), amount, actorID)
	if err != nil {
		return fmt.Errorf("repository.MarkPaid: ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.MarkPaid.Commit: %w", err)
	}
	return nil
}

// Reject releases the reservation back to the actor's available balance.
// Expert requests can be rejected from PENDING or CONFIRMED, student
// requests from PENDING only. Idempotent the same way MarkPaid is.
func (r *Repository) Reject(ctx context.Context, id, note string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.Reject.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var actorType, actorID string
	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, admin_note = $2, resolved_at = NOW()
		WHERE id = $3
		  AND (status = $4 OR (actor_type = $5 AND status = $6))
		RETURNING actor_type, actor_id, amount`,
		string(models.WithdrawalRejected), note, id,
		string(models.WithdrawalPending),
		models.ActorExpert, string(models.WithdrawalConfirmed)).
		Scan(&actorType, &actorID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.conflict(ctx, id)
		}
		return fmt.Errorf("repository.Reject: %w", err)
	}

	if _, err := tx.Exec(ctx, releaseSQL(actorType), amount, actorID); err != nil {
		return fmt.Errorf("repository.Reject: release: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.Reject.Commit: %w", err)
	}
	return nil
}

// conflict inspects a request after a zero-row guarded UPDATE: missing ids
// are NotFound, resolved requests are AlreadyResolved, anything else is a
// sequencing conflict (e.g. paying an unconfirmed expert request).
func (r *Repository) conflict(ctx context.Context, id string) error {
	wr, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if wr.Status.Resolved() {
		return models.ErrAlreadyResolved
	}
	return models.ErrConflict
}

// ListAll retrieves withdrawal requests for the admin queue.
func (r *Repository) ListAll(ctx context.Context, status models.WithdrawalStatus, actorType string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	offset := (page - 1) * limit
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR actor_type = $2)`
	rows, err := r.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		string(status), actorType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.WithdrawalRequest
	for rows.Next() {
		wr, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListAll.scan: %w", err)
		}
		out = append(out, wr)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests `+where,
		string(status), actorType).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return out, total, nil
}

// ListByActor retrieves one actor's withdrawal history.
func (r *Repository) ListByActor(ctx context.Context, actorType, actorID string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE actor_type = $1 AND actor_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		actorType, actorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByActor.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.WithdrawalRequest
	for rows.Next() {
		wr, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListByActor.scan: %w", err)
		}
		out = append(out, wr)
	}

	var total int
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM withdrawal_requests WHERE actor_type = $1 AND actor_id = $2`,
		actorType, actorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByActor.Count: %w", err)
	}
	return out, total, nil
}
