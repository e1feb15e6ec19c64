package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/models"
)

var jobPostingRowColumns = []string{"id", "academy_id", "academy_name", "title", "genres", "classes", "preferred_qualifications", "description",
	"region", "district", "address", "latitude", "longitude", "work_days", "work_time", "salary_type", "salary", "status", "created_at", "updated_at"}

func jobPostingRow(rows *sqlmock.Rows, id, academyID string, status models.JobPostingStatus) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, academyID, "Groove Studio", "Hip-hop instructor", "{hiphop,popping}", "kids", "", "weekday evenings",
		"seoul", "gangnam", "Teheran-ro 1", nil, nil, "{monday,wednesday}", "19:00-21:00", "hourly", 40000, string(status), now, now)
}

func TestJobPostingGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobPostingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE jp.id = $1")).
		WithArgs("jp-1").
		WillReturnRows(jobPostingRow(sqlmock.NewRows(jobPostingRowColumns), "jp-1", "ac-1", models.JobPostingActive))

	posting, err := repo.GetByID(context.Background(), nil, "jp-1")
	require.NoError(t, err)
	assert.Equal(t, "ac-1", posting.AcademyID)
	assert.Equal(t, []string{"hiphop", "popping"}, []string(posting.Genres))
	assert.Equal(t, models.JobPostingActive, posting.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostingListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobPostingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE jp.status = ANY($1) AND jp.region = $2 AND jp.genres && $3 ORDER BY jp.salary ASC LIMIT 10 OFFSET 10")).
		WillReturnRows(jobPostingRow(sqlmock.NewRows(jobPostingRowColumns), "jp-1", "ac-1", models.JobPostingActive))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM job_postings jp WHERE jp.status = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	postings, total, err := repo.List(context.Background(), models.JobPostingFilter{
		Status:    []models.JobPostingStatus{models.JobPostingActive},
		Region:    "seoul",
		Genres:    []string{"hiphop", "jazz"},
		SortBy:    "salary",
		SortOrder: "asc",
		Page:      2,
		PageSize:  10,
	})
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostingUpdateStatusDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobPostingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE job_postings SET status = $2")).
		WithArgs("jp-1", models.JobPostingClosed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "jp-1", models.JobPostingClosed)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostingCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobPostingRepository(db)

	mock.ExpectExec("INSERT INTO job_postings").WillReturnResult(sqlmock.NewResult(0, 1))

	posting := &models.JobPosting{AcademyID: "ac-1", Title: "Jazz"}
	require.NoError(t, repo.Create(context.Background(), posting))
	assert.NotEmpty(t, posting.ID)
	assert.Equal(t, models.JobPostingPending, posting.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
