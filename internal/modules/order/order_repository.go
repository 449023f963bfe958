package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the order repository. Every
// transition is a guarded UPDATE so concurrent callers race on the database
// row, not on stale in-memory reads; milestone review that completes an
// order commits the order, milestone, expert credit, ledger rows and the
// pre-created review in one transaction.
type RepositoryInterface interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error)
	ListByExpert(ctx context.Context, expertID string, page, limit int) ([]*models.Order, int, error)
	ListAll(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error)
	AssignExpert(ctx context.Context, orderID, expertID string) error
	StartMilestone(ctx context.Context, orderID, milestoneID string) error
	SubmitMilestone(ctx context.Context, orderID, milestoneID string, files []models.Attachment) error
	ApproveMilestone(ctx context.Context, orderID, milestoneID string, commission, expertCredit int64) (completed bool, err error)
	RejectMilestone(ctx context.Context, orderID, milestoneID string) error
	OpenDispute(ctx context.Context, orderID, reason string) error
	ResolveDispute(ctx context.Context, orderID string) error
	RefundDispute(ctx context.Context, orderID string) error
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new order repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const orderColumns = `id, request_id, quote_id, student_id, expert_id, status, amount, payment_ref, dispute_return_status, dispute_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var disputeReturn *string
	var disputeReason *string
	err := row.Scan(
		&o.ID,
		&o.RequestID,
		&o.QuoteID,
		&o.StudentID,
		&o.ExpertID,
		&o.Status,
		&o.Amount,
		&o.PaymentRef,
		&disputeReturn,
		&disputeReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if disputeReturn != nil {
		o.DisputeReturnStatus = models.OrderStatus(*disputeReturn)
	}
	if disputeReason != nil {
		o.DisputeReason = *disputeReason
	}
	return &o, nil
}

// FindByID retrieves an order with its ordered milestones.
func (r *Repository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, position, title, due_date, status, submissions, updated_at
		FROM order_milestones
		WHERE order_id = $1
		ORDER BY position ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: milestones: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.FindByID: %w", err)
		}
		o.Milestones = append(o.Milestones, m)
	}
	return o, nil
}

func scanMilestone(row pgx.Row) (*models.Milestone, error) {
	var m models.Milestone
	var submissions []byte
	err := row.Scan(&m.ID, &m.OrderID, &m.Position, &m.Title, &m.DueDate, &m.Status, &submissions, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan milestone: %w", err)
	}
	if len(submissions) > 0 {
		if err := json.Unmarshal(submissions, &m.Submissions); err != nil {
			return nil, fmt.Errorf("failed to decode submissions: %w", err)
		}
	}
	return &m, nil
}

func (r *Repository) list(ctx context.Context, where string, args []interface{}, page, limit int) ([]*models.Order, int, error) {
	offset := (page - 1) * limit
	query := `SELECT ` + orderColumns + ` FROM orders ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.list.Query: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.list.scan: %w", err)
		}
		orders = append(orders, o)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.list.Count: %w", err)
	}
	return orders, total, nil
}

// ListByStudent retrieves a student's orders with pagination.
func (r *Repository) ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error) {
	return r.list(ctx, "WHERE student_id = $1", []interface{}{studentID}, page, limit)
}

// ListByExpert retrieves an expert's assigned orders with pagination.
func (r *Repository) ListByExpert(ctx context.Context, expertID string, page, limit int) ([]*models.Order, int, error) {
	return r.list(ctx, "WHERE expert_id = $1", []interface{}{expertID}, page, limit)
}

// ListAll retrieves all orders (admin), optionally filtered by status.
func (r *Repository) ListAll(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	return r.list(ctx, "WHERE ($1 = '' OR status = $1)", []interface{}{string(status)}, page, limit)
}

// AssignExpert sets the expert on an order that is still assignable. The
// expert's availability is re-checked inside the same transaction, so two
// admins racing on the same order get exactly one winner.
func (r *Repository) AssignExpert(ctx context.Context, orderID, expertID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.AssignExpert.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var available bool
	err = tx.QueryRow(ctx, `
		SELECT status = $2 AND online FROM experts WHERE id = $1 FOR UPDATE`,
		expertID, string(models.ExpertActive)).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("repository.AssignExpert: expert: %w", err)
	}
	if !available {
		return models.ErrExpertUnavailable
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET expert_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		expertID, string(models.OrderAssigned), orderID,
		[]string{string(models.OrderPaidConfirmed), string(models.OrderAssigned)})
	if err != nil {
		return fmt.Errorf("repository.AssignExpert: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository.AssignExpert: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrOrderAlreadyAssigned
	}
	return tx.Commit(ctx)
}

// StartMilestone moves a PENDING milestone to IN_PROGRESS provided every
// earlier milestone is APPROVED, and moves the order to IN_PROGRESS.
func (r *Repository) StartMilestone(ctx context.Context, orderID, milestoneID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.StartMilestone.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `
		UPDATE order_milestones m
		SET status = $1, updated_at = NOW()
		WHERE m.id = $2 AND m.order_id = $3 AND m.status = $4
		  AND NOT EXISTS (
			SELECT 1 FROM order_milestones p
			WHERE p.order_id = m.order_id AND p.position < m.position AND p.status <> $5
		  )`,
		string(models.MilestoneInProgress), milestoneID, orderID,
		string(models.MilestonePending), string(models.MilestoneApproved))
	if err != nil {
		return fmt.Errorf("repository.StartMilestone: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return milestoneConflict(ctx, tx, milestoneID, orderID, models.ErrMilestoneNotStartable)
	}

	cmdTag, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`,
		string(models.OrderInProgress), orderID,
		[]string{string(models.OrderAssigned), string(models.OrderInProgress)})
	if err != nil {
		return fmt.Errorf("repository.StartMilestone: order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrInvalidOrderTransition
	}
	return tx.Commit(ctx)
}

// SubmitMilestone moves an IN_PROGRESS milestone to DELIVERED with its
// submissions and parks the order in REVIEW for quality control.
func (r *Repository) SubmitMilestone(ctx context.Context, orderID, milestoneID string, files []models.Attachment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.SubmitMilestone.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	submissions, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("repository.SubmitMilestone: marshal submissions: %w", err)
	}
	cmdTag, err := tx.Exec(ctx, `
		UPDATE order_milestones
		SET status = $1, submissions = $2, updated_at = NOW()
		WHERE id = $3 AND order_id = $4 AND status = $5`,
		string(models.MilestoneDelivered), submissions, milestoneID, orderID,
		string(models.MilestoneInProgress))
	if err != nil {
		return fmt.Errorf("repository.SubmitMilestone: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return milestoneConflict(ctx, tx, milestoneID, orderID, models.ErrMilestoneNotDeliverable)
	}

	cmdTag, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(models.OrderReview), orderID, string(models.OrderInProgress))
	if err != nil {
		return fmt.Errorf("repository.SubmitMilestone: order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrInvalidOrderTransition
	}
	return tx.Commit(ctx)
}

// ApproveMilestone approves a DELIVERED milestone. When it is the last one,
// the same transaction completes the order, credits the expert with the
// net amount, appends COMMISSION and EXPERT_CREDIT ledger rows and
// pre-creates the PENDING review, so a COMPLETED order can never be seen
// with an uncredited expert or a non-APPROVED milestone.
func (r *Repository) ApproveMilestone(ctx context.Context, orderID, milestoneID string, commission, expertCredit int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `
		UPDATE order_milestones
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND order_id = $3 AND status = $4`,
		string(models.MilestoneApproved), milestoneID, orderID, string(models.MilestoneDelivered))
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return false, milestoneConflict(ctx, tx, milestoneID, orderID, models.ErrMilestoneNotDeliverable)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_milestones
		WHERE order_id = $1 AND status <> $2`,
		orderID, string(models.MilestoneApproved)).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone: count: %w", err)
	}

	if remaining > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			string(models.OrderInProgress), orderID, string(models.OrderReview))
		if err != nil {
			return false, fmt.Errorf("repository.ApproveMilestone: order: %w", err)
		}
		return false, tx.Commit(ctx)
	}

	var studentID string
	var expertID *string
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING student_id, expert_id`,
		string(models.OrderCompleted), orderID, string(models.OrderReview)).
		Scan(&studentID, &expertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, models.ErrInvalidOrderTransition
		}
		return false, fmt.Errorf("repository.ApproveMilestone: complete: %w", err)
	}
	if expertID == nil {
		return false, fmt.Errorf("repository.ApproveMilestone: order %s completed without expert", orderID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE experts
		SET balance = balance + $1, earnings = earnings + $1,
		    completed_orders = completed_orders + 1, updated_at = NOW()
		WHERE id = $2`,
		expertCredit, *expertID)
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone: credit expert: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO financial_transactions (type, amount, description, order_id, actor_id, status)
		VALUES ($1, $2, 'Platform commission', $5, NULL, 'COMPLETED'),
		       ($3, $4, 'Expert credit on completion', $5, $6, 'COMPLETED')`,
		string(models.TxCommission), commission,
		string(models.TxExpertCredit), expertCredit, orderID, *expertID)
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone: ledger: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (order_id, student_id, expert_id, rating, text, status, submitted)
		VALUES ($1, $2, $3, 0, '', $4, FALSE)`,
		orderID, studentID, *expertID, string(models.ReviewPending))
	if err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone: review: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repository.ApproveMilestone.Commit: %w", err)
	}
	return true, nil
}

// RejectMilestone returns a DELIVERED milestone to IN_PROGRESS for revision.
// The due date is deliberately left untouched; extensions are a separate
// explicit admin action. The order never advances on rejection.
func (r *Repository) RejectMilestone(ctx context.Context, orderID, milestoneID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.RejectMilestone.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `
		UPDATE order_milestones
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND order_id = $3 AND status = $4`,
		string(models.MilestoneInProgress), milestoneID, orderID, string(models.MilestoneDelivered))
	if err != nil {
		return fmt.Errorf("repository.RejectMilestone: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return milestoneConflict(ctx, tx, milestoneID, orderID, models.ErrMilestoneNotDeliverable)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(models.OrderInProgress), orderID, string(models.OrderReview))
	if err != nil {
		return fmt.Errorf("repository.RejectMilestone: order: %w", err)
	}
	return tx.Commit(ctx)
}

// OpenDispute parks the order in DISPUTE, remembering the prior status.
func (r *Repository) OpenDispute(ctx context.Context, orderID, reason string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET dispute_return_status = status, dispute_reason = $1,
		    status = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		reason, string(models.OrderDispute), orderID,
		[]string{string(models.OrderAssigned), string(models.OrderInProgress), string(models.OrderReview)})
	if err != nil {
		return fmt.Errorf("repository.OpenDispute: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository.OpenDispute: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInvalidOrderTransition
	}
	return nil
}

// ResolveDispute restores the status the order held before the dispute.
func (r *Repository) ResolveDispute(ctx context.Context, orderID string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = dispute_return_status, dispute_return_status = NULL,
		    dispute_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		orderID, string(models.OrderDispute))
	if err != nil {
		return fmt.Errorf("repository.ResolveDispute: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository.ResolveDispute: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInvalidOrderTransition
	}
	return nil
}

// RefundDispute cancels a disputed order and credits the full amount back to
// the student's wallet, with a REFUND ledger entry, in one transaction.
func (r *Repository) RefundDispute(ctx context.Context, orderID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.RefundDispute.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var studentID string
	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $1, dispute_return_status = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING student_id, amount`,
		string(models.OrderCancelled), orderID, string(models.OrderDispute)).
		Scan(&studentID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists); err != nil {
				return fmt.Errorf("repository.RefundDispute: %w", err)
			}
			if !exists {
				return models.ErrNotFound
			}
			return models.ErrInvalidOrderTransition
		}
		return fmt.Errorf("repository.RefundDispute: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO student_wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = student_wallets.balance + $2, updated_at = NOW()`,
		studentID, amount)
	if err != nil {
		return fmt.Errorf("repository.RefundDispute: credit wallet: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO financial_transactions (type, amount, description, order_id, actor_id, status)
		VALUES ($1, $2, 'Refund on dispute', $3, $4, 'COMPLETED')`,
		string(models.TxRefund), amount, orderID, studentID)
	if err != nil {
		return fmt.Errorf("repository.RefundDispute: ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.RefundDispute.Commit: %w", err)
	}
	return nil
}

// milestoneConflict picks the right error after a guarded milestone UPDATE
// matched zero rows.
func milestoneConflict(ctx context.Context, tx pgx.Tx, milestoneID, orderID string, conflict error) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM order_milestones WHERE id = $1 AND order_id = $2)",
		milestoneID, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("milestoneConflict: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return conflict
}
