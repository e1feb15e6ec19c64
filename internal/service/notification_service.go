package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
	"github.com/dmatch/dmatch-api/pkg/jobs"
	"github.com/dmatch/dmatch-api/pkg/mailer"
)

// NotificationEmailJob is the queue job type for notification emails.
const NotificationEmailJob = "notification_email"

// NotificationSink records notifications inside the caller's transaction and
// delivers them out of band after commit.
type NotificationSink interface {
	Emit(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error
	Deliver(ctx context.Context, n models.Notification)
}

type notificationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) (*models.NotificationList, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error
}

// NotificationService manages in-app notifications and their email delivery.
type NotificationService struct {
	repo    notificationStore
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
}

type jobDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationServiceOption customises NotificationService.
type NotificationServiceOption func(*NotificationService)

// WithNotificationMetrics counts emails dropped before reaching the queue.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.metrics = metrics
	}
}

// NewNotificationService constructs the service. A nil queue disables email delivery.
func NewNotificationService(repo notificationStore, queue jobDispatcher, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, queue: queue, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit implements NotificationSink.
func (s *NotificationService) Emit(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	return s.repo.Create(ctx, exec, n)
}

// Deliver implements NotificationSink. It never waits for queue capacity; a
// full or stopped queue drops the email and the in-app record stays.
func (s *NotificationService) Deliver(ctx context.Context, n models.Notification) {
	if s.queue == nil {
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: n.ID, Type: NotificationEmailJob, Payload: n}); err != nil {
		s.metrics.RecordEmailDropped(string(n.Type))
		s.logger.Warn("dropped notification email",
			zap.String("notification_id", n.ID),
			zap.String("type", string(n.Type)),
			zap.Bool("queue_full", errors.Is(err, jobs.ErrQueueFull)),
			zap.Error(err))
	}
}

// List returns the caller's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) (*models.NotificationList, error) {
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return list, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return count, nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

// GetSettings returns the caller's delivery settings.
func (s *NotificationService) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification settings")
	}
	return settings, nil
}

// UpdateSettings applies the provided toggles to the caller's settings.
func (s *NotificationService) UpdateSettings(ctx context.Context, userID string, req models.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.ApplicationResult != nil {
		settings.ApplicationResult = *req.ApplicationResult
	}
	if req.VerificationResult != nil {
		settings.VerificationResult = *req.VerificationResult
	}
	if req.NewPosting != nil {
		settings.NewPosting = *req.NewPosting
	}
	if req.Marketing != nil {
		settings.Marketing = *req.Marketing
	}
	settings.UserID = userID
	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save notification settings")
	}
	return settings, nil
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type settingsLookup interface {
	GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
}

// NotificationMailWorker turns queued notifications into emails.
type NotificationMailWorker struct {
	users    recipientLookup
	settings settingsLookup
	mailer   mailer.Mailer
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationMailWorker constructs a worker.
func NewNotificationMailWorker(users recipientLookup, settings settingsLookup, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationMailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationMailWorker{users: users, settings: settings, mailer: m, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Returning an error schedules a retry.
func (w *NotificationMailWorker) Handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		w.logger.Error("unexpected notification job payload", zap.String("job_id", job.ID))
		return nil
	}

	user, err := w.users.FindByID(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}
	if !user.Active || user.Email == "" {
		return nil
	}

	settings, err := w.settings.GetSettings(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	if !settings.Allows(n.Type) {
		w.logger.Debug("notification email suppressed by settings", zap.String("notification_id", n.ID), zap.String("type", string(n.Type)))
		return nil
	}

	err = w.mailer.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "[D-Match] " + n.Title,
		Body:    n.Content,
	})
	w.metrics.RecordEmailDelivery(string(n.Type), err)
	if err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}
