package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the review repository.
type RepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.Review, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Review, error)
	Submit(ctx context.Context, orderID, studentID string, in models.SubmitReviewInput) (*models.Review, error)
	Moderate(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error)
	ListPublicByExpert(ctx context.Context, expertID string, page, limit int) ([]*models.Review, int, error)
	ListAll(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.Review, int, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new review repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const reviewColumns = `id, order_id, student_id, expert_id, rating, text, status, submitted, created_at, updated_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	var rv models.Review
	err := row.Scan(
		&rv.ID,
		&rv.OrderID,
		&rv.StudentID,
		&rv.ExpertID,
		&rv.Rating,
		&rv.Text,
		&rv.Status,
		&rv.Submitted,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}
	return &rv, nil
}

// FindByID retrieves a review.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	return scanReview(r.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
}

// FindByOrderID retrieves the review slot pre-created for an order.
func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*models.Review, error) {
	return scanReview(r.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID))
}

// Submit fills in the pending review slot. The guard binds the slot to the
// order's student and allows exactly one submission.
func (r *Repository) Submit(ctx context.Context, orderID, studentID string, in models.SubmitReviewInput) (*models.Review, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE reviews
		SET rating = $1, text = $2, submitted = TRUE, updated_at = NOW()
		WHERE order_id = $3 AND student_id = $4 AND submitted = FALSE
		RETURNING `+reviewColumns,
		in.Rating, in.Text, orderID, studentID)
	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, r.submitConflict(ctx, orderID, studentID)
		}
		return nil, fmt.Errorf("repository.Submit: %w", err)
	}
	return rv, nil
}

func (r *Repository) submitConflict(ctx context.Context, orderID, studentID string) error {
	rv, err := r.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if rv.StudentID != studentID {
		return models.ErrNotFound
	}
	return models.ErrReviewAlreadySubmitted
}

// Moderate flips a submitted review's visibility and recomputes the
// expert's rating aggregate from approved reviews in the same transaction,
// so the public average never includes hidden reviews.
func (r *Repository) Moderate(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.Moderate.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE reviews SET status = $1, updated_at = NOW()
		WHERE id = $2 AND submitted = TRUE
		RETURNING `+reviewColumns,
		string(status), id)
	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unsubmitted slots cannot be moderated.
			if _, ferr := scanReview(tx.QueryRow(ctx,
				`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)); ferr != nil {
				return nil, ferr
			}
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.Moderate: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE experts SET
			rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE expert_id = $1 AND status = $2), 0),
			rating_count = (SELECT COUNT(*) FROM reviews WHERE expert_id = $1 AND status = $2),
			updated_at = NOW()
		WHERE id = $1`,
		rv.ExpertID, string(models.ReviewApproved))
	if err != nil {
		return nil, fmt.Errorf("repository.Moderate: aggregate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.Moderate.Commit: %w", err)
	}
	return rv, nil
}

// ListPublicByExpert retrieves an expert's approved reviews.
func (r *Repository) ListPublicByExpert(ctx context.Context, expertID string, page, limit int) ([]*models.Review, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE expert_id = $1 AND status = $2
		ORDER BY updated_at DESC LIMIT $3 OFFSET $4`,
		expertID, string(models.ReviewApproved), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListPublicByExpert.Query: %w", err)
	}
	defer rows.Close()

	out, err := collectReviews(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListPublicByExpert.scan: %w", err)
	}

	var total int
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE expert_id = $1 AND status = $2`,
		expertID, string(models.ReviewApproved)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListPublicByExpert.Count: %w", err)
	}
	return out, total, nil
}

// ListAll retrieves submitted reviews for the moderation queue.
func (r *Repository) ListAll(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.Review, int, error) {
	offset := (page - 1) * limit
	where := `WHERE submitted = TRUE AND ($1 = '' OR status = $1)`
	rows, err := r.db.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews `+where+`
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Query: %w", err)
	}
	defer rows.Close()

	out, err := collectReviews(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.scan: %w", err)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews `+where, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return out, total, nil
}

func collectReviews(rows pgx.Rows) ([]*models.Review, error) {
	var out []*models.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
