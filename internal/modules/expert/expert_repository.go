package expert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the expert repository.
type RepositoryInterface interface {
	Create(ctx context.Context, ex *models.Expert) (*models.Expert, error)
	FindByID(ctx context.Context, id string) (*models.Expert, error)
	FindByUserID(ctx context.Context, userID string) (*models.Expert, error)
	List(ctx context.Context, status models.ExpertStatus, onlineOnly bool, page, limit int) ([]*models.Expert, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ExpertStatus) error
	SetOnline(ctx context.Context, id string, online bool) error
	AddPayoutMethod(ctx context.Context, pm *models.PayoutMethod) (*models.PayoutMethod, error)
	ListPayoutMethods(ctx context.Context, ownerID string) ([]models.PayoutMethod, error)
	FindPayoutMethod(ctx context.Context, id, ownerID string) (*models.PayoutMethod, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new expert repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const expertColumns = `id, user_id, bio, subjects, status, online, balance, reserved, earnings, rating, rating_count, completed_orders, created_at, updated_at`

func scanExpert(row pgx.Row) (*models.Expert, error) {
	var ex models.Expert
	var subjects []byte
	err := row.Scan(
		&ex.ID,
		&ex.UserID,
		&ex.Bio,
		&subjects,
		&ex.Status,
		&ex.Online,
		&ex.Balance,
		&ex.Reserved,
		&ex.Earnings,
		&ex.Rating,
		&ex.RatingCount,
		&ex.CompletedOrders,
		&ex.CreatedAt,
		&ex.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan expert: %w", err)
	}
	if len(subjects) > 0 {
		if err := json.Unmarshal(subjects, &ex.Subjects); err != nil {
			return nil, fmt.Errorf("failed to decode subjects: %w", err)
		}
	}
	return &ex, nil
}

// Create inserts a new expert profile in PENDING. One profile per user is
// enforced by the experts.user_id unique constraint.
func (r *Repository) Create(ctx context.Context, ex *models.Expert) (*models.Expert, error) {
	subjects, err := json.Marshal(ex.Subjects)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: marshal subjects: %w", err)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO experts (user_id, bio, subjects, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+expertColumns,
		ex.UserID, ex.Bio, subjects, string(models.ExpertPending))
	out, err := scanExpert(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.Create: %w", err)
	}
	return out, nil
}

// FindByID retrieves an expert with payout methods.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Expert, error) {
	ex, err := scanExpert(r.db.QueryRow(ctx, `SELECT `+expertColumns+` FROM experts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	methods, err := r.ListPayoutMethods(ctx, ex.ID)
	if err != nil {
		return nil, err
	}
	ex.PayoutMethods = methods
	return ex, nil
}

// FindByUserID retrieves the expert profile owned by a user account.
func (r *Repository) FindByUserID(ctx context.Context, userID string) (*models.Expert, error) {
	return scanExpert(r.db.QueryRow(ctx, `SELECT `+expertColumns+` FROM experts WHERE user_id = $1`, userID))
}

// List retrieves experts with pagination, optionally filtered by status and
// online presence.
func (r *Repository) List(ctx context.Context, status models.ExpertStatus, onlineOnly bool, page, limit int) ([]*models.Expert, int, error) {
	offset := (page - 1) * limit
	where := `WHERE ($1 = '' OR status = $1) AND (NOT $2 OR online)`
	rows, err := r.db.Query(ctx, `
		SELECT `+expertColumns+` FROM experts `+where+`
		ORDER BY rating DESC, completed_orders DESC
		LIMIT $3 OFFSET $4`,
		string(status), onlineOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List.Query: %w", err)
	}
	defer rows.Close()

	var experts []*models.Expert
	for rows.Next() {
		ex, err := scanExpert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.List.scan: %w", err)
		}
		experts = append(experts, ex)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM experts `+where, string(status), onlineOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List.Count: %w", err)
	}
	return experts, total, nil
}

// UpdateStatus moves an expert between vetting states.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.ExpertStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE experts SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetOnline toggles the expert's presence flag.
func (r *Repository) SetOnline(ctx context.Context, id string, online bool) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE experts SET online = $1, updated_at = NOW() WHERE id = $2`,
		online, id)
	if err != nil {
		return fmt.Errorf("repository.SetOnline: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AddPayoutMethod stores a payout destination for an owner (expert profile
// id or student user id).
func (r *Repository) AddPayoutMethod(ctx context.Context, pm *models.PayoutMethod) (*models.PayoutMethod, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO payout_methods (owner_id, kind, label, account_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, kind, label, account_ref, created_at`,
		pm.OwnerID, pm.Kind, pm.Label, pm.AccountRef)
	var out models.PayoutMethod
	if err := row.Scan(&out.ID, &out.OwnerID, &out.Kind, &out.Label, &out.AccountRef, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("repository.AddPayoutMethod: %w", err)
	}
	return &out, nil
}

// ListPayoutMethods retrieves an owner's payout destinations.
func (r *Repository) ListPayoutMethods(ctx context.Context, ownerID string) ([]models.PayoutMethod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, kind, label, account_ref, created_at
		FROM payout_methods WHERE owner_id = $1
		ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListPayoutMethods: %w", err)
	}
	defer rows.Close()

	var methods []models.PayoutMethod
	for rows.Next() {
		var pm models.PayoutMethod
		if err := rows.Scan(&pm.ID, &pm.OwnerID, &pm.Kind, &pm.Label, &pm.AccountRef, &pm.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListPayoutMethods: scan: %w", err)
		}
		methods = append(methods, pm)
	}
	return methods, nil
}

// FindPayoutMethod retrieves a payout method only when it belongs to the
// given owner, so withdrawals cannot target someone else's destination.
func (r *Repository) FindPayoutMethod(ctx context.Context, id, ownerID string) (*models.PayoutMethod, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, kind, label, account_ref, created_at
		FROM payout_methods WHERE id = $1 AND owner_id = $2`, id, ownerID)
	var pm models.PayoutMethod
	if err := row.Scan(&pm.ID, &pm.OwnerID, &pm.Kind, &pm.Label, &pm.AccountRef, &pm.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindPayoutMethod: %w", err)
	}
	return &pm, nil
}
