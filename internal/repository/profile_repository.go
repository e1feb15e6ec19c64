package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dmatch/dmatch-api/internal/models"
)

const (
	instructorProfileColumns = `id, user_id, bio, specialties, contact_visible, created_at, updated_at`
	academyProfileColumns    = `user_id, academy_name, address, phone, operating_hours, main_genres, description, created_at, updated_at`
)

// ProfileRepository stores instructor and academy profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// EnsureInstructorProfile returns the instructor's profile, creating an empty
// one first when none exists.
func (r *ProfileRepository) EnsureInstructorProfile(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.InstructorProfile, error) {
	target := r.exec(exec)
	now := time.Now().UTC()
	const insert = `INSERT INTO instructor_profiles (id, user_id, bio, specialties, contact_visible, created_at, updated_at)
VALUES ($1, $2, '', '{}', FALSE, $3, $3) ON CONFLICT (user_id) DO NOTHING`
	if _, err := target.ExecContext(ctx, insert, uuid.NewString(), userID, now); err != nil {
		return nil, fmt.Errorf("ensure instructor profile: %w", err)
	}

	var profile models.InstructorProfile
	query := `SELECT ` + instructorProfileColumns + ` FROM instructor_profiles WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, target, &profile, query, userID); err != nil {
		return nil, fmt.Errorf("load instructor profile: %w", err)
	}
	return &profile, nil
}

// FindInstructorProfile returns the profile or sql.ErrNoRows.
func (r *ProfileRepository) FindInstructorProfile(ctx context.Context, userID string) (*models.InstructorProfile, error) {
	var profile models.InstructorProfile
	query := `SELECT ` + instructorProfileColumns + ` FROM instructor_profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor profile: %w", err)
	}
	return &profile, nil
}

// SetContactVisible switches contact visibility on. It never clears the flag.
func (r *ProfileRepository) SetContactVisible(ctx context.Context, exec sqlx.ExtContext, profileID string) error {
	const query = `UPDATE instructor_profiles SET contact_visible = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, profileID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set contact visible: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateInstructorProfile stores bio and specialties.
func (r *ProfileRepository) UpdateInstructorProfile(ctx context.Context, profile *models.InstructorProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructor_profiles SET bio = $2, specialties = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, profile.ID, profile.Bio, pq.Array(profile.Specialties), profile.UpdatedAt); err != nil {
		return fmt.Errorf("update instructor profile: %w", err)
	}
	return nil
}

// FindAcademyProfile returns the academy profile or sql.ErrNoRows.
func (r *ProfileRepository) FindAcademyProfile(ctx context.Context, userID string) (*models.AcademyProfile, error) {
	var profile models.AcademyProfile
	query := `SELECT ` + academyProfileColumns + ` FROM academy_profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find academy profile: %w", err)
	}
	return &profile, nil
}

// UpsertAcademyProfile inserts or replaces the academy profile.
func (r *ProfileRepository) UpsertAcademyProfile(ctx context.Context, exec sqlx.ExtContext, profile *models.AcademyProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.MainGenres == nil {
		profile.MainGenres = pq.StringArray{}
	}
	const query = `INSERT INTO academy_profiles (user_id, academy_name, address, phone, operating_hours, main_genres, description, created_at, updated_at)
VALUES (:user_id, :academy_name, :address, :phone, :operating_hours, :main_genres, :description, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET academy_name = EXCLUDED.academy_name, address = EXCLUDED.address, phone = EXCLUDED.phone,
operating_hours = EXCLUDED.operating_hours, main_genres = EXCLUDED.main_genres, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, profile); err != nil {
		return fmt.Errorf("upsert academy profile: %w", err)
	}
	return nil
}

