package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pengu-backend/internal/models"
)

// RepositoryInterface defines the contract for the request repository.
type RepositoryInterface interface {
	Create(ctx context.Context, req *models.Request) (*models.Request, error)
	FindByID(ctx context.Context, id string) (*models.Request, error)
	ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Request, int, error)
	ListAll(ctx context.Context, status models.RequestStatus, page, limit int) ([]*models.Request, int, error)
	TransitionStatus(ctx context.Context, id string, to models.RequestStatus, from ...models.RequestStatus) error
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new request repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// Create inserts a new request.
func (r *Repository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	attachments, err := json.Marshal(req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: marshal attachments: %w", err)
	}
	query := `
		INSERT INTO requests (student_id, service_type, topic, details, deadline, attachments, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, student_id, service_type, topic, details, deadline, attachments, status, created_at, updated_at`
	row := r.db.QueryRow(ctx, query,
		req.StudentID, req.ServiceType, req.Topic, req.Details, req.Deadline, attachments, req.Status)
	out, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: %w", err)
	}
	return out, nil
}

// scanRequest scans a row into a Request model.
func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	var attachments []byte
	err := row.Scan(
		&req.ID,
		&req.StudentID,
		&req.ServiceType,
		&req.Topic,
		&req.Details,
		&req.Deadline,
		&attachments,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &req.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	return &req, nil
}

// FindByID retrieves a single request by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := `
		SELECT id, student_id, service_type, topic, details, deadline, attachments, status, created_at, updated_at
		FROM requests
		WHERE id = $1`
	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return req, nil
}

// ListByStudent retrieves a student's requests with pagination.
func (r *Repository) ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Request, int, error) {
	offset := (page - 1) * limit
	query := `
		SELECT id, student_id, service_type, topic, details, deadline, attachments, status, created_at, updated_at
		FROM requests
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, studentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByStudent.Query: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListByStudent.scan: %w", err)
		}
		requests = append(requests, req)
	}

	var total int
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM requests WHERE student_id = $1", studentID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByStudent.Count: %w", err)
	}
	return requests, total, nil
}

// ListAll retrieves requests across all students, optionally filtered by
// status (empty status means all).
func (r *Repository) ListAll(ctx context.Context, status models.RequestStatus, page, limit int) ([]*models.Request, int, error) {
	offset := (page - 1) * limit
	query := `
		SELECT id, student_id, service_type, topic, details, deadline, attachments, status, created_at, updated_at
		FROM requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Query: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListAll.scan: %w", err)
		}
		requests = append(requests, req)
	}

	var total int
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM requests WHERE ($1 = '' OR status = $1)", string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return requests, total, nil
}

// TransitionStatus moves a request to a new status only when its current
// status is one of the allowed source states. The guarded UPDATE makes the
// transition a single atomic read-modify-write.
func (r *Repository) TransitionStatus(ctx context.Context, id string, to models.RequestStatus, from ...models.RequestStatus) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`,
		string(to), id, states)
	if err != nil {
		return fmt.Errorf("repository.TransitionStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Distinguish missing from an illegal transition.
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("repository.TransitionStatus: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInvalidRequestState
	}
	return nil
}
