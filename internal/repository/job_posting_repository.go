package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dmatch/dmatch-api/internal/models"
)

const jobPostingSelect = `SELECT jp.id, jp.academy_id, COALESCE(ap.academy_name, '') AS academy_name, jp.title, jp.genres, jp.classes,
jp.preferred_qualifications, jp.description, jp.region, jp.district, jp.address, jp.latitude, jp.longitude,
jp.work_days, jp.work_time, jp.salary_type, jp.salary, jp.status, jp.created_at, jp.updated_at
FROM job_postings jp LEFT JOIN academy_profiles ap ON ap.user_id = jp.academy_id`

// JobPostingRepository persists academy job postings.
type JobPostingRepository struct {
	db *sqlx.DB
}

// NewJobPostingRepository constructs a JobPostingRepository.
func NewJobPostingRepository(db *sqlx.DB) *JobPostingRepository {
	return &JobPostingRepository{db: db}
}

func (r *JobPostingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetByID returns a posting regardless of status, or sql.ErrNoRows.
func (r *JobPostingRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.JobPosting, error) {
	var posting models.JobPosting
	if err := sqlx.GetContext(ctx, r.exec(exec), &posting, jobPostingSelect+` WHERE jp.id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get job posting: %w", err)
	}
	return &posting, nil
}

// List returns postings matching the filter with the total count.
func (r *JobPostingRepository) List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, int, error) {
	var conditions []string
	var args []interface{}

	if filter.AcademyID != "" {
		args = append(args, filter.AcademyID)
		conditions = append(conditions, fmt.Sprintf("jp.academy_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("jp.status = ANY($%d)", len(args)))
	}
	if filter.Region != "" {
		args = append(args, filter.Region)
		conditions = append(conditions, fmt.Sprintf("jp.region = $%d", len(args)))
	}
	if filter.District != "" {
		args = append(args, filter.District)
		conditions = append(conditions, fmt.Sprintf("jp.district = $%d", len(args)))
	}
	if len(filter.Genres) > 0 {
		args = append(args, pq.Array(filter.Genres))
		conditions = append(conditions, fmt.Sprintf("jp.genres && $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(jp.title) LIKE $%d OR LOWER(jp.description) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "jp.created_at"
	if filter.SortBy == "salary" {
		sortBy = "jp.salary"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", jobPostingSelect, where, sortBy, sortOrder, pageSize, (page-1)*pageSize)
	var postings []models.JobPosting
	if err := r.db.SelectContext(ctx, &postings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list job postings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM job_postings jp"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count job postings: %w", err)
	}
	return postings, total, nil
}

// Create inserts a posting.
func (r *JobPostingRepository) Create(ctx context.Context, posting *models.JobPosting) error {
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	if posting.Status == "" {
		posting.Status = models.JobPostingPending
	}
	now := time.Now().UTC()
	posting.CreatedAt = now
	posting.UpdatedAt = now

	const query = `INSERT INTO job_postings (id, academy_id, title, genres, classes, preferred_qualifications, description, region, district, address,
latitude, longitude, work_days, work_time, salary_type, salary, status, created_at, updated_at)
VALUES (:id, :academy_id, :title, :genres, :classes, :preferred_qualifications, :description, :region, :district, :address,
:latitude, :longitude, :work_days, :work_time, :salary_type, :salary, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, posting); err != nil {
		return fmt.Errorf("create job posting: %w", err)
	}
	return nil
}

// Update stores the editable fields of a posting.
func (r *JobPostingRepository) Update(ctx context.Context, posting *models.JobPosting) error {
	posting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE job_postings SET title = :title, genres = :genres, classes = :classes, preferred_qualifications = :preferred_qualifications,
description = :description, region = :region, district = :district, address = :address, latitude = :latitude, longitude = :longitude,
work_days = :work_days, work_time = :work_time, salary_type = :salary_type, salary = :salary, updated_at = :updated_at
WHERE id = :id AND status <> 'deleted'`
	res, err := r.db.NamedExecContext(ctx, query, posting)
	if err != nil {
		return fmt.Errorf("update job posting: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus changes a posting's status. A deleted posting cannot change.
func (r *JobPostingRepository) UpdateStatus(ctx context.Context, id string, status models.JobPostingStatus) error {
	const query = `UPDATE job_postings SET status = $2, updated_at = $3 WHERE id = $1 AND status <> 'deleted'`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job posting status: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
