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

func TestEnsureInstructorProfileCreatesWhenMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "inst-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM instructor_profiles WHERE user_id = $1")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "bio", "specialties", "contact_visible", "created_at", "updated_at"}).
			AddRow("p1", "inst-1", "", "{}", false, now, now))

	profile, err := repo.EnsureInstructorProfile(context.Background(), nil, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", profile.ID)
	assert.False(t, profile.ContactVisible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetContactVisible(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE instructor_profiles SET contact_visible = TRUE")).
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE instructor_profiles SET contact_visible = TRUE")).
		WithArgs("gone", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetContactVisible(context.Background(), nil, "p1"))
	assert.ErrorIs(t, repo.SetContactVisible(context.Background(), nil, "gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAcademyProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academy_profiles")).WillReturnResult(sqlmock.NewResult(0, 1))

	profile := &models.AcademyProfile{UserID: "ac-1", AcademyName: "Groove"}
	require.NoError(t, repo.UpsertAcademyProfile(context.Background(), nil, profile))
	assert.NotNil(t, profile.MainGenres)
	assert.False(t, profile.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
