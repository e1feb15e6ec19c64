package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/database"
)

const (
	applicationColumns = `id, instructor_id, job_posting_id, status, rejection_reason, created_at, updated_at`

	applicationDetailSelect = `SELECT a.id, a.instructor_id, a.job_posting_id, a.status, a.rejection_reason, a.created_at, a.updated_at,
jp.title AS job_posting_title, jp.status AS job_posting_status, jp.academy_id, COALESCE(ap.academy_name, au.name) AS academy_name,
u.name AS instructor_name, u.phone AS instructor_phone, COALESCE(ip.contact_visible, FALSE) AS contact_visible,
EXISTS(SELECT 1 FROM reviews rv WHERE rv.application_id = a.id AND rv.author_id = a.instructor_id) AS has_review
FROM applications a
JOIN job_postings jp ON jp.id = a.job_posting_id
JOIN users u ON u.id = a.instructor_id
JOIN users au ON au.id = jp.academy_id
LEFT JOIN academy_profiles ap ON ap.user_id = jp.academy_id
LEFT JOIN instructor_profiles ip ON ip.user_id = a.instructor_id`
)

// ApplicationRepository persists applications. Status changes are
// compare-and-set so concurrent transitions cannot both succeed.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending application. A second application for the same
// instructor and posting yields ErrDuplicate.
func (r *ApplicationRepository) Create(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationPending
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	const query = `INSERT INTO applications (id, instructor_id, job_posting_id, status, rejection_reason, created_at, updated_at)
VALUES (:id, :instructor_id, :job_posting_id, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, app); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// ExistsForPair reports whether the instructor already applied to the posting.
func (r *ApplicationRepository) ExistsForPair(ctx context.Context, exec sqlx.ExtContext, instructorID, jobPostingID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM applications WHERE instructor_id = $1 AND job_posting_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, instructorID, jobPostingID); err != nil {
		return false, fmt.Errorf("check existing application: %w", err)
	}
	return exists, nil
}

// GetByID returns an application or sql.ErrNoRows.
func (r *ApplicationRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Application, error) {
	var app models.Application
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.exec(exec), &app, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &app, nil
}

// GetDetail returns the joined application view or sql.ErrNoRows.
func (r *ApplicationRepository) GetDetail(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, applicationDetailSelect+` WHERE a.id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get application detail: %w", err)
	}
	return &detail, nil
}

// List returns joined applications newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	var conditions []string
	var args []interface{}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("a.instructor_id = $%d", len(args)))
	}
	if filter.AcademyID != "" {
		args = append(args, filter.AcademyID)
		conditions = append(conditions, fmt.Sprintf("jp.academy_id = $%d", len(args)))
	}
	if filter.JobPostingID != "" {
		args = append(args, filter.JobPostingID)
		conditions = append(conditions, fmt.Sprintf("a.job_posting_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}

	query := applicationDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.created_at DESC"

	var items []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return items, nil
}

// TransitionStatus moves an application to status `to` only while its current
// status is one of `from`. It returns the updated row, or sql.ErrNoRows when
// the application is gone or in another state.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from []models.ApplicationStatus, to models.ApplicationStatus, reason *string) (*models.Application, error) {
	sources := make([]string, 0, len(from))
	for _, s := range from {
		sources = append(sources, string(s))
	}
	query := `UPDATE applications SET status = $2, rejection_reason = $3, updated_at = $4
WHERE id = $1 AND status = ANY($5) RETURNING ` + applicationColumns
	var app models.Application
	if err := sqlx.GetContext(ctx, r.exec(exec), &app, query, id, to, reason, time.Now().UTC(), pq.Array(sources)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition application status: %w", err)
	}
	return &app, nil
}

// DeleteCancellable removes the instructor's application unless it was accepted.
// It returns sql.ErrNoRows when nothing matched.
func (r *ApplicationRepository) DeleteCancellable(ctx context.Context, exec sqlx.ExtContext, id, instructorID string) error {
	const query = `DELETE FROM applications WHERE id = $1 AND instructor_id = $2 AND status <> 'accepted'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, instructorID)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
