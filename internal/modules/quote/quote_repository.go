package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the quote repository. The
// multi-row operations (issue, negotiate, accept) run inside a single
// database transaction so the quote, its request and any created order can
// never be observed in a mixed state.
type RepositoryInterface interface {
	CreateQuote(ctx context.Context, requestID string, terms models.QuoteTerms) (*models.Quote, error)
	FindByID(ctx context.Context, id string) (*models.Quote, error)
	RequestForQuote(ctx context.Context, quoteID string) (*models.Request, error)
	Negotiate(ctx context.Context, quoteID string, msg *models.NegotiationMessage, terms *models.QuoteTerms, reqStatus models.RequestStatus) (*models.NegotiationMessage, error)
	Accept(ctx context.Context, quoteID, paymentRef string, milestones []*models.Milestone) (*models.Order, error)
	MarkRejected(ctx context.Context, quoteID string) error
	MarkExpired(ctx context.Context, quoteID string) error
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ListAll(ctx context.Context, status models.QuoteStatus, page, limit int) ([]*models.Quote, int, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new quote repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const quoteColumns = `id, request_id, amount, currency, timeline_days, milestones, revisions, scope_notes, status, expires_at, created_at, updated_at`

func scanQuote(row pgx.Row) (*models.Quote, error) {
	var q models.Quote
	var milestones []byte
	err := row.Scan(
		&q.ID,
		&q.RequestID,
		&q.Amount,
		&q.Currency,
		&q.TimelineDays,
		&milestones,
		&q.Revisions,
		&q.ScopeNotes,
		&q.Status,
		&q.ExpiresAt,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	if len(milestones) > 0 {
		if err := json.Unmarshal(milestones, &q.Milestones); err != nil {
			return nil, fmt.Errorf("failed to decode quote milestones: %w", err)
		}
	}
	return &q, nil
}

// CreateQuote issues a quote against a request. In one transaction: the
// request is moved to QUOTED (guarded, so closed requests are rejected), any
// prior pending quote is superseded, and the new quote row is inserted.
func (r *Repository) CreateQuote(ctx context.Context, requestID string, terms models.QuoteTerms) (*models.Quote, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateQuote.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `
		UPDATE requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`,
		string(models.RequestQuoted), requestID,
		[]string{string(models.RequestSubmitted), string(models.RequestNegotiation)})
	if err != nil {
		return nil, fmt.Errorf("repository.CreateQuote: update request: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)", requestID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("repository.CreateQuote: %w", err)
		}
		if !exists {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInvalidRequestState
	}

	_, err = tx.Exec(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE request_id = $2 AND status = $3`,
		string(models.QuoteStatusSuperseded), requestID, string(models.QuoteStatusPending))
	if err != nil {
		return nil, fmt.Errorf("repository.CreateQuote: supersede: %w", err)
	}

	milestones, err := json.Marshal(terms.Milestones)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateQuote: marshal milestones: %w", err)
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO quotes (request_id, amount, currency, timeline_days, milestones, revisions, scope_notes, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+quoteColumns,
		requestID, terms.Amount, terms.Currency, terms.TimelineDays, milestones,
		terms.Revisions, terms.ScopeNotes, string(models.QuoteStatusPending), terms.ExpiresAt)
	q, err := scanQuote(row)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateQuote: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.CreateQuote.Commit: %w", err)
	}
	return q, nil
}

// FindByID retrieves a quote with its full negotiation history, ordered by
// (created_at, id) ascending.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, sender_role, message, related_amount, created_at
		FROM quote_messages
		WHERE quote_id = $1
		ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.NegotiationMessage
		if err := rows.Scan(&m.ID, &m.QuoteID, &m.SenderRole, &m.Message, &m.RelatedAmount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.FindByID: scan message: %w", err)
		}
		q.History = append(q.History, m)
	}
	return q, nil
}

// RequestForQuote loads the request a quote belongs to.
func (r *Repository) RequestForQuote(ctx context.Context, quoteID string) (*models.Request, error) {
	row := r.db.QueryRow(ctx, `
		SELECT r.id, r.student_id, r.status, r.deadline
		FROM requests r JOIN quotes q ON q.request_id = r.id
		WHERE q.id = $1`, quoteID)
	var req models.Request
	if err := row.Scan(&req.ID, &req.StudentID, &req.Status, &req.Deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.RequestForQuote: %w", err)
	}
	return &req, nil
}

// Negotiate appends a message to the quote thread. When terms are given
// (admin counter-offer), the quote terms are replaced in the same
// transaction as the append, together with the request status change.
// Existing messages are never touched, keeping the history append-only.
func (r *Repository) Negotiate(ctx context.Context, quoteID string, msg *models.NegotiationMessage, terms *models.QuoteTerms, reqStatus models.RequestStatus) (*models.NegotiationMessage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.Negotiate.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var requestID string
	err = tx.QueryRow(ctx, `
		SELECT request_id FROM quotes WHERE id = $1 AND status = $2`,
		quoteID, string(models.QuoteStatusPending)).Scan(&requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrQuoteNotPending
		}
		return nil, fmt.Errorf("repository.Negotiate: %w", err)
	}

	if terms != nil {
		milestones, err := json.Marshal(terms.Milestones)
		if err != nil {
			return nil, fmt.Errorf("repository.Negotiate: marshal milestones: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE quotes
			SET amount = $1, currency = $2, timeline_days = $3, milestones = $4,
			    revisions = $5, scope_notes = $6, expires_at = $7, updated_at = NOW()
			WHERE id = $8`,
			terms.Amount, terms.Currency, terms.TimelineDays, milestones,
			terms.Revisions, terms.ScopeNotes, terms.ExpiresAt, quoteID)
		if err != nil {
			return nil, fmt.Errorf("repository.Negotiate: update terms: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(reqStatus), requestID)
	if err != nil {
		return nil, fmt.Errorf("repository.Negotiate: update request: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO quote_messages (quote_id, sender_role, message, related_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, quote_id, sender_role, message, related_amount, created_at`,
		quoteID, msg.SenderRole, msg.Message, msg.RelatedAmount)
	var out models.NegotiationMessage
	if err := row.Scan(&out.ID, &out.QuoteID, &out.SenderRole, &out.Message, &out.RelatedAmount, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("repository.Negotiate: insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.Negotiate.Commit: %w", err)
	}
	return &out, nil
}

// Accept converts a pending quote into an order. The guarded quote UPDATE
// is the single-winner gate: a second concurrent accept sees zero rows and
// gets ErrQuoteNotPending, so exactly one order is ever created per quote.
// The orders.quote_id unique constraint backstops the same invariant.
func (r *Repository) Accept(ctx context.Context, quoteID, paymentRef string, milestones []*models.Milestone) (*models.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.Accept.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var requestID string
	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING request_id, amount`,
		string(models.QuoteStatusAccepted), quoteID, string(models.QuoteStatusPending)).
		Scan(&requestID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM quotes WHERE id = $1)", quoteID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("repository.Accept: %w", err)
			}
			if !exists {
				return nil, models.ErrNotFound
			}
			return nil, models.ErrQuoteNotPending
		}
		return nil, fmt.Errorf("repository.Accept: update quote: %w", err)
	}

	var studentID string
	err = tx.QueryRow(ctx, `
		UPDATE requests SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING student_id`,
		string(models.RequestConverted), requestID).Scan(&studentID)
	if err != nil {
		return nil, fmt.Errorf("repository.Accept: convert request: %w", err)
	}

	order := &models.Order{}
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (request_id, quote_id, student_id, status, amount, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, request_id, quote_id, student_id, status, amount, payment_ref, created_at, updated_at`,
		requestID, quoteID, studentID, string(models.OrderPaidConfirmed), amount, paymentRef)
	err = row.Scan(&order.ID, &order.RequestID, &order.QuoteID, &order.StudentID,
		&order.Status, &order.Amount, &order.PaymentRef, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.Accept: insert order: %w", err)
	}

	for _, m := range milestones {
		var created models.Milestone
		err = tx.QueryRow(ctx, `
			INSERT INTO order_milestones (order_id, position, title, due_date, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, order_id, position, title, due_date, status, updated_at`,
			order.ID, m.Position, m.Title, m.DueDate, string(models.MilestonePending)).
			Scan(&created.ID, &created.OrderID, &created.Position, &created.Title,
				&created.DueDate, &created.Status, &created.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Accept: insert milestone: %w", err)
		}
		order.Milestones = append(order.Milestones, &created)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO financial_transactions (type, amount, description, order_id, actor_id, status)
		VALUES ($1, $2, $3, $4, $5, 'COMPLETED')`,
		string(models.TxIncome), amount, "Order payment received", order.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("repository.Accept: ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.Accept.Commit: %w", err)
	}
	return order, nil
}

// MarkRejected moves a pending quote to REJECTED and returns its request to
// SUBMITTED so the admin can re-quote.
func (r *Repository) MarkRejected(ctx context.Context, quoteID string) error {
	return r.resolvePending(ctx, quoteID, models.QuoteStatusRejected, models.RequestSubmitted)
}

// MarkExpired moves a pending quote to EXPIRED together with its request.
func (r *Repository) MarkExpired(ctx context.Context, quoteID string) error {
	return r.resolvePending(ctx, quoteID, models.QuoteStatusExpired, models.RequestExpired)
}

func (r *Repository) resolvePending(ctx context.Context, quoteID string, qs models.QuoteStatus, rs models.RequestStatus) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.resolvePending.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var requestID string
	err = tx.QueryRow(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING request_id`,
		string(qs), quoteID, string(models.QuoteStatusPending)).Scan(&requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM quotes WHERE id = $1)", quoteID).Scan(&exists); err != nil {
				return fmt.Errorf("repository.resolvePending: %w", err)
			}
			if !exists {
				return models.ErrNotFound
			}
			return models.ErrQuoteNotPending
		}
		return fmt.Errorf("repository.resolvePending: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(rs), requestID)
	if err != nil {
		return fmt.Errorf("repository.resolvePending: update request: %w", err)
	}
	return tx.Commit(ctx)
}

// ExpireDue expires every pending quote whose expiry has passed. Safe to run
// repeatedly: already-expired quotes no longer match the guard.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository.ExpireDue.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at < $3
		RETURNING request_id`,
		string(models.QuoteStatusExpired), string(models.QuoteStatusPending), now)
	if err != nil {
		return 0, fmt.Errorf("repository.ExpireDue: %w", err)
	}
	var requestIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("repository.ExpireDue: scan: %w", err)
		}
		requestIDs = append(requestIDs, id)
	}
	rows.Close()

	if len(requestIDs) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE requests SET status = $1, updated_at = NOW()
			WHERE id = ANY($2)`,
			string(models.RequestExpired), requestIDs)
		if err != nil {
			return 0, fmt.Errorf("repository.ExpireDue: requests: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository.ExpireDue.Commit: %w", err)
	}
	return len(requestIDs), nil
}

// ListAll retrieves quotes with pagination, optionally filtered by status.
func (r *Repository) ListAll(ctx context.Context, status models.QuoteStatus, page, limit int) ([]*models.Quote, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Query: %w", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListAll.scan: %w", err)
		}
		quotes = append(quotes, q)
	}

	var total int
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes WHERE ($1 = '' OR status = $1)", string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return quotes, total, nil
}
