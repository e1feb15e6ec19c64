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

func TestNotificationCreateDefaultsMetadata(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))

	n := &models.Notification{UserID: "u1", Type: models.NotificationNewApplication, Title: "New application"}
	require.NoError(t, repo.Create(context.Background(), nil, n))
	assert.NotEmpty(t, n.ID)
	assert.JSONEq(t, `{}`, string(n.Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationListWithUnreadCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	unread := false
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1 AND is_read = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("u1", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "content", "related_url", "metadata", "is_read", "created_at"}).
			AddRow("n1", "u1", "application_accepted", "Accepted", "", "/applications/a1/", `{"application_id":"a1"}`, false, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	list, err := repo.List(context.Background(), models.NotificationFilter{UserID: "u1", IsRead: &unread})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 3, list.UnreadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkReadOtherRecipient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.MarkRead(context.Background(), "n1", "intruder"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkAllRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	count, err := repo.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationSettingsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_settings WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	settings, err := repo.GetSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, settings.ApplicationResult)
	assert.False(t, settings.Marketing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
