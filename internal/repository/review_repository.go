package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/database"
)

const reviewSelect = `SELECT r.id, r.author_id, u.name AS author_name, r.application_id, r.instructor_id, r.academy_id, r.rating, r.content, r.created_at, r.updated_at
FROM reviews r JOIN users u ON u.id = r.author_id`

// ReviewRepository persists reviews written after accepted applications.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs a ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A second review by the same author for the same
// application yields ErrDuplicate.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, author_id, application_id, instructor_id, academy_id, rating, content, created_at, updated_at)
VALUES (:id, :author_id, :application_id, :instructor_id, :academy_id, :rating, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ExistsForAuthor reports whether the author already reviewed the application.
func (r *ReviewRepository) ExistsForAuthor(ctx context.Context, applicationID, authorID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM reviews WHERE application_id = $1 AND author_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, applicationID, authorID); err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	return exists, nil
}

// GetByID returns a review or sql.ErrNoRows.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := r.db.GetContext(ctx, &review, reviewSelect+` WHERE r.id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &review, nil
}

// ListByAuthor returns reviews the user wrote.
func (r *ReviewRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.Review, error) {
	return r.list(ctx, reviewSelect+` WHERE r.author_id = $1 ORDER BY r.created_at DESC`, authorID)
}

// ListForInstructor returns reviews academies wrote about the instructor.
func (r *ReviewRepository) ListForInstructor(ctx context.Context, instructorID string) ([]models.Review, error) {
	return r.list(ctx, reviewSelect+` WHERE r.instructor_id = $1 ORDER BY r.created_at DESC`, instructorID)
}

// ListForAcademy returns reviews instructors wrote about the academy.
func (r *ReviewRepository) ListForAcademy(ctx context.Context, academyID string) ([]models.Review, error) {
	return r.list(ctx, reviewSelect+` WHERE r.academy_id = $1 ORDER BY r.created_at DESC`, academyID)
}

func (r *ReviewRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Review, error) {
	reviews := []models.Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Update stores rating and content.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET rating = $2, content = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, review.ID, review.Rating, review.Content, review.UpdatedAt); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
