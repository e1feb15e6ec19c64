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

var verificationFileRowColumns = []string{"id", "verification_id", "file_name", "storage_path", "mime_type", "size_bytes", "uploaded_at"}

func TestVerificationSubmitResetsRejected(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO verifications")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("v-existing", now))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM verification_files WHERE verification_id = $1 RETURNING")).
		WithArgs("v-existing").
		WillReturnRows(sqlmock.NewRows(verificationFileRowColumns).AddRow("f1", "v-existing", "old.pdf", "u1/old.pdf", "application/pdf", 10, now))

	v := &models.Verification{UserID: "u1", Role: models.RoleInstructor}
	old, err := repo.Submit(context.Background(), nil, v)
	require.NoError(t, err)
	assert.Equal(t, "v-existing", v.ID)
	assert.Equal(t, models.VerificationPending, v.Status)
	require.Len(t, old, 1)
	assert.Equal(t, "u1/old.pdf", old[0].StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationSubmitBlockedWhilePending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO verifications")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := repo.Submit(context.Background(), nil, &models.Verification{UserID: "u1", Role: models.RoleAcademy})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationReviewOnlyPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WithArgs("v1", models.VerificationApproved, nil, sqlmock.AnyArg(), "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Review(context.Background(), nil, "v1", models.VerificationApproved, nil, "admin-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationFindByUserLoadsFiles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM verifications WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role", "status", "rejection_reason", "reviewed_at", "reviewed_by", "created_at", "updated_at"}).
			AddRow("v1", "u1", "instructor", "pending", nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM verification_files WHERE verification_id = $1")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows(verificationFileRowColumns).AddRow("f1", "v1", "cert.pdf", "u1/cert.pdf", "application/pdf", 2048, now))

	v, err := repo.FindByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, v.Files, 1)
	assert.Equal(t, "cert.pdf", v.Files[0].FileName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
