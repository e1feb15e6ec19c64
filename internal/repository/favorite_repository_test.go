package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/models"
)

func TestFavoriteToggleAddsWhenMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFavoriteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM favorites")).WithArgs("i1", "jp1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO favorites")).WillReturnResult(sqlmock.NewResult(0, 1))

	on, err := repo.Toggle(context.Background(), "i1", "jp1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFavoriteToggleRemovesWhenPresent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFavoriteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM favorites")).WithArgs("i1", "jp1").WillReturnResult(sqlmock.NewResult(0, 1))

	on, err := repo.Toggle(context.Background(), "i1", "jp1")
	require.NoError(t, err)
	assert.False(t, on)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFavoriteListByInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFavoriteRepository(db)

	now := time.Now()
	cols := append([]string{"fav_id", "fav_instructor_id", "fav_created_at"}, jobPostingRowColumns...)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.instructor_id = $1 ORDER BY f.created_at DESC")).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("f1", "i1", now,
			"jp-1", "ac-1", "Groove", "Hip-hop", "{hiphop}", "", "", "desc", "seoul", "", "addr", nil, nil, "{friday}", "evening", "hourly", 30000, string(models.JobPostingActive), now, now))

	favs, err := repo.ListByInstructor(context.Background(), "i1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "jp-1", favs[0].JobPostingID)
	assert.Equal(t, "Hip-hop", favs[0].JobPosting.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
