package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dmatch/dmatch-api/internal/models"
)

// FavoriteRepository stores instructor bookmarks on job postings.
type FavoriteRepository struct {
	db *sqlx.DB
}

// NewFavoriteRepository constructs a FavoriteRepository.
func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Toggle removes the bookmark when present and adds it otherwise. It reports
// whether the posting is bookmarked afterwards.
func (r *FavoriteRepository) Toggle(ctx context.Context, instructorID, jobPostingID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE instructor_id = $1 AND job_posting_id = $2`, instructorID, jobPostingID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows > 0 {
		return false, nil
	}

	const insert = `INSERT INTO favorites (id, instructor_id, job_posting_id, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (instructor_id, job_posting_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), instructorID, jobPostingID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// ListByInstructor returns the bookmarks with their postings, newest first.
func (r *FavoriteRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Favorite, error) {
	const query = `SELECT f.id AS fav_id, f.instructor_id AS fav_instructor_id, f.created_at AS fav_created_at,
jp.id, jp.academy_id, COALESCE(ap.academy_name, '') AS academy_name, jp.title, jp.genres, jp.classes,
jp.preferred_qualifications, jp.description, jp.region, jp.district, jp.address, jp.latitude, jp.longitude,
jp.work_days, jp.work_time, jp.salary_type, jp.salary, jp.status, jp.created_at, jp.updated_at
FROM favorites f
JOIN job_postings jp ON jp.id = f.job_posting_id
LEFT JOIN academy_profiles ap ON ap.user_id = jp.academy_id
WHERE f.instructor_id = $1 ORDER BY f.created_at DESC`

	var rows []struct {
		FavID           string    `db:"fav_id"`
		FavInstructorID string    `db:"fav_instructor_id"`
		FavCreatedAt    time.Time `db:"fav_created_at"`
		models.JobPosting
	}
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	favorites := make([]models.Favorite, 0, len(rows))
	for i := range rows {
		posting := rows[i].JobPosting
		favorites = append(favorites, models.Favorite{
			ID:           rows[i].FavID,
			InstructorID: rows[i].FavInstructorID,
			JobPostingID: posting.ID,
			CreatedAt:    rows[i].FavCreatedAt,
			JobPosting:   &posting,
		})
	}
	return favorites, nil
}
