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
	"github.com/jmoiron/sqlx/types"

	"github.com/dmatch/dmatch-api/internal/models"
)

const notificationColumns = `id, user_id, type, title, content, related_url, metadata, is_read, created_at`

// NotificationRepository stores in-app notifications and delivery settings.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends a notification, inside exec's transaction when given.
func (r *NotificationRepository) Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if len(n.Metadata) == 0 {
		n.Metadata = types.JSONText(`{}`)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, content, related_url, metadata, is_read, created_at)
VALUES (:id, :user_id, :type, :title, :content, :related_url, :metadata, :is_read, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns the recipient's notifications newest first plus the unread count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) (*models.NotificationList, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", len(args)))
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		notificationColumns, strings.Join(conditions, " AND "), pageSize, (page-1)*pageSize)

	items := []models.Notification{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var unread int
	if err := r.db.GetContext(ctx, &unread, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, filter.UserID); err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &models.NotificationList{Items: items, UnreadCount: unread}, nil
}

// MarkRead flags one of the recipient's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if isNoRows(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return rows, nil
}

// Delete removes one of the recipient's notifications.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if isNoRows(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete notification: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSettings returns stored settings, falling back to defaults when the
// user never saved any.
func (r *NotificationRepository) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	const query = `SELECT user_id, application_result, verification_result, new_posting, marketing, updated_at FROM notification_settings WHERE user_id = $1`
	var settings models.NotificationSettings
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultNotificationSettings(userID)
			return &defaults, nil
		}
		return nil, fmt.Errorf("get notification settings: %w", err)
	}
	return &settings, nil
}

// UpsertSettings stores the user's settings.
func (r *NotificationRepository) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO notification_settings (user_id, application_result, verification_result, new_posting, marketing, updated_at)
VALUES (:user_id, :application_result, :verification_result, :new_posting, :marketing, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET application_result = EXCLUDED.application_result, verification_result = EXCLUDED.verification_result,
new_posting = EXCLUDED.new_posting, marketing = EXCLUDED.marketing, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert notification settings: %w", err)
	}
	return nil
}
