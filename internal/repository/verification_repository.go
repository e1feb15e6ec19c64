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

	"github.com/dmatch/dmatch-api/internal/models"
)

const (
	verificationColumns     = `id, user_id, role, status, rejection_reason, reviewed_at, reviewed_by, created_at, updated_at`
	verificationFileColumns = `id, verification_id, file_name, storage_path, mime_type, size_bytes, uploaded_at`
)

// VerificationRepository stores verification requests and their documents.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs a VerificationRepository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByUser returns the user's verification with files, or sql.ErrNoRows.
func (r *VerificationRepository) FindByUser(ctx context.Context, userID string) (*models.Verification, error) {
	var v models.Verification
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &v, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find verification by user: %w", err)
	}
	if err := r.loadFiles(ctx, r.db, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByID returns a verification with files, or sql.ErrNoRows.
func (r *VerificationRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verification, error) {
	target := r.exec(exec)
	var v models.Verification
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1`
	if err := sqlx.GetContext(ctx, target, &v, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if err := r.loadFiles(ctx, target, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) loadFiles(ctx context.Context, exec sqlx.ExtContext, v *models.Verification) error {
	files := []models.VerificationFile{}
	query := `SELECT ` + verificationFileColumns + ` FROM verification_files WHERE verification_id = $1 ORDER BY uploaded_at`
	if err := sqlx.SelectContext(ctx, exec, &files, query, v.ID); err != nil {
		return fmt.Errorf("load verification files: %w", err)
	}
	v.Files = files
	return nil
}

// List returns verifications for the admin queue, oldest first.
func (r *VerificationRepository) List(ctx context.Context, filter models.VerificationFilter) ([]models.Verification, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	query := `SELECT ` + verificationColumns + ` FROM verifications`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"

	items := []models.Verification{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return items, nil
}

// Submit creates the user's verification in pending state or, when a rejected
// one exists, resets it to pending. Previously attached files are detached and
// returned so the caller can remove them from storage.
func (r *VerificationRepository) Submit(ctx context.Context, exec sqlx.ExtContext, v *models.Verification) ([]models.VerificationFile, error) {
	target := r.exec(exec)
	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Status = models.VerificationPending
	v.RejectionReason = nil
	v.ReviewedAt = nil
	v.ReviewedBy = nil
	v.CreatedAt = now
	v.UpdatedAt = now

	const upsert = `INSERT INTO verifications (id, user_id, role, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, rejection_reason = NULL, reviewed_at = NULL, reviewed_by = NULL, updated_at = EXCLUDED.updated_at
WHERE verifications.status = 'rejected'
RETURNING id, created_at`
	if err := sqlx.GetContext(ctx, target, v, upsert, v.ID, v.UserID, v.Role, v.Status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("submit verification: %w", err)
	}

	var old []models.VerificationFile
	query := `DELETE FROM verification_files WHERE verification_id = $1 RETURNING ` + verificationFileColumns
	if err := sqlx.SelectContext(ctx, target, &old, query, v.ID); err != nil {
		return nil, fmt.Errorf("detach verification files: %w", err)
	}
	return old, nil
}

// AddFile attaches a stored document to a verification.
func (r *VerificationRepository) AddFile(ctx context.Context, exec sqlx.ExtContext, file *models.VerificationFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO verification_files (id, verification_id, file_name, storage_path, mime_type, size_bytes, uploaded_at)
VALUES (:id, :verification_id, :file_name, :storage_path, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, file); err != nil {
		return fmt.Errorf("add verification file: %w", err)
	}
	return nil
}

// Review records the admin decision on a pending verification. It returns
// sql.ErrNoRows when the verification is not pending any more.
func (r *VerificationRepository) Review(ctx context.Context, exec sqlx.ExtContext, id string, status models.VerificationStatus, reason *string, reviewerID string) error {
	now := time.Now().UTC()
	const query = `UPDATE verifications SET status = $2, rejection_reason = $3, reviewed_at = $4, reviewed_by = $5, updated_at = $4
WHERE id = $1 AND status = 'pending'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, reason, now, reviewerID)
	if err != nil {
		return fmt.Errorf("review verification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review verification: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetFile returns a single document, or sql.ErrNoRows.
func (r *VerificationRepository) GetFile(ctx context.Context, id string) (*models.VerificationFile, error) {
	var file models.VerificationFile
	query := `SELECT ` + verificationFileColumns + ` FROM verification_files WHERE id = $1`
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get verification file: %w", err)
	}
	return &file, nil
}
