package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/repository"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

// ApplicationOperation names an action on the application lifecycle.
type ApplicationOperation string

const (
	ApplicationOpApply  ApplicationOperation = "apply"
	ApplicationOpAccept ApplicationOperation = "accept"
	ApplicationOpReject ApplicationOperation = "reject"
	ApplicationOpCancel ApplicationOperation = "cancel"
	ApplicationOpView   ApplicationOperation = "view"
)

// applicationSubject identifies the parties of the application being acted on.
type applicationSubject struct {
	instructorID string
	academyID    string
}

type applicationPolicy struct {
	allow  func(actor models.Actor, subject applicationSubject) bool
	denied string
}

func ownsPosting(actor models.Actor, s applicationSubject) bool {
	return actor.ActorRole() == models.RoleAcademy && actor.ActorID() == s.academyID
}

func ownsApplication(actor models.Actor, s applicationSubject) bool {
	return actor.ActorRole() == models.RoleInstructor && actor.ActorID() == s.instructorID
}

var applicationPolicies = map[ApplicationOperation]applicationPolicy{
	ApplicationOpApply: {
		allow:  func(actor models.Actor, _ applicationSubject) bool { return models.IsVerifiedInstructor(actor) },
		denied: "only verified instructors can apply",
	},
	ApplicationOpAccept: {allow: ownsPosting, denied: "only the posting academy can accept"},
	ApplicationOpReject: {allow: ownsPosting, denied: "only the posting academy can reject"},
	ApplicationOpCancel: {allow: ownsApplication, denied: "only the applicant can cancel"},
	ApplicationOpView: {
		allow: func(actor models.Actor, s applicationSubject) bool {
			return ownsApplication(actor, s) || ownsPosting(actor, s)
		},
		denied: "no access to this application",
	},
}

type applicationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error
	ExistsForPair(ctx context.Context, exec sqlx.ExtContext, instructorID, jobPostingID string) (bool, error)
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Application, error)
	GetDetail(ctx context.Context, id string) (*models.ApplicationDetail, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from []models.ApplicationStatus, to models.ApplicationStatus, reason *string) (*models.Application, error)
	DeleteCancellable(ctx context.Context, exec sqlx.ExtContext, id, instructorID string) error
}

type postingLookup interface {
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.JobPosting, error)
}

type actorLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type contactProfileStore interface {
	EnsureInstructorProfile(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.InstructorProfile, error)
	SetContactVisible(ctx context.Context, exec sqlx.ExtContext, profileID string) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// ApplicationServiceOption configures the service.
type ApplicationServiceOption func(*ApplicationService)

// WithStrictTransitions toggles whether repeated accept/reject calls conflict.
func WithStrictTransitions(strict bool) ApplicationServiceOption {
	return func(s *ApplicationService) {
		s.strict = strict
	}
}

// WithApplicationMetrics records transition outcomes.
func WithApplicationMetrics(metrics *MetricsService) ApplicationServiceOption {
	return func(s *ApplicationService) {
		s.metrics = metrics
	}
}

// ApplicationService runs the application lifecycle. Each mutating operation
// commits its status change, profile change and notifications in one
// transaction; emails go out only after commit.
type ApplicationService struct {
	tx            txRunner
	applications  applicationStore
	postings      postingLookup
	users         actorLookup
	profiles      contactProfileStore
	notifications NotificationSink
	validator     *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
	strict        bool
}

// NewApplicationService constructs the service. Transitions are strict unless
// configured otherwise.
func NewApplicationService(
	tx txRunner,
	applications applicationStore,
	postings postingLookup,
	users actorLookup,
	profiles contactProfileStore,
	notifications NotificationSink,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...ApplicationServiceOption,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ApplicationService{
		tx:            tx,
		applications:  applications,
		postings:      postings,
		users:         users,
		profiles:      profiles,
		notifications: notifications,
		validator:     validate,
		logger:        logger,
		strict:        true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Apply creates a pending application for the acting instructor.
func (s *ApplicationService) Apply(ctx context.Context, actorID string, req models.CreateApplicationRequest) (app *models.Application, err error) {
	defer func() { s.record(ApplicationOpApply, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ApplicationOpApply, actor, applicationSubject{}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	var outbox []models.Notification
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		posting, err := s.postings.GetByID(ctx, tx, req.JobPostingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
		}

		exists, err := s.applications.ExistsForPair(ctx, tx, actor.ID, posting.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrAlreadyApplied, "")
		}
		if posting.Status != models.JobPostingActive {
			return appErrors.Clone(appErrors.ErrPostingNotActive, "")
		}

		app = &models.Application{
			InstructorID: actor.ID,
			JobPostingID: posting.ID,
			Status:       models.ApplicationPending,
		}
		if err := s.applications.Create(ctx, tx, app); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrAlreadyApplied, "")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
		}

		n := models.Notification{
			UserID:     posting.AcademyID,
			Type:       models.NotificationNewApplication,
			Title:      "새 지원 알림",
			Content:    fmt.Sprintf("%s님이 \"%s\" 공고에 지원하셨습니다", actor.Name, posting.Title),
			RelatedURL: fmt.Sprintf("/applications/%s/", app.ID),
			Metadata:   notificationMetadata(app.ID, posting.ID),
		}
		return s.emit(ctx, tx, &outbox, n)
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, outbox)
	return app, nil
}

// Accept marks the application accepted and unlocks the instructor's contact details.
func (s *ApplicationService) Accept(ctx context.Context, actorID, applicationID string) (result *models.AcceptApplicationResult, err error) {
	defer func() { s.record(ApplicationOpAccept, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var outbox []models.Notification
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		app, posting, err := s.loadForDecision(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if err := s.authorize(ApplicationOpAccept, actor, applicationSubject{instructorID: app.InstructorID, academyID: posting.AcademyID}); err != nil {
			return err
		}
		if !statusIn(app.Status, s.acceptSources()) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("application is already %s", app.Status))
		}

		profile, err := s.profiles.EnsureInstructorProfile(ctx, tx, app.InstructorID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
		}

		if _, err := s.applications.TransitionStatus(ctx, tx, app.ID, s.acceptSources(), models.ApplicationAccepted, nil); err != nil {
			return transitionError(err)
		}
		if !profile.ContactVisible {
			if err := s.profiles.SetContactVisible(ctx, tx, profile.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contact visibility")
			}
		}

		n := models.Notification{
			UserID:     app.InstructorID,
			Type:       models.NotificationApplicationAccepted,
			Title:      "지원 결과 알림",
			Content:    fmt.Sprintf("%s의 \"%s\" 공고에 최종 합격하셨습니다", academyDisplayName(posting, actor), posting.Title),
			RelatedURL: fmt.Sprintf("/applications/%s/", app.ID),
			Metadata:   notificationMetadata(app.ID, posting.ID),
		}
		return s.emit(ctx, tx, &outbox, n)
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, outbox)
	return &models.AcceptApplicationResult{
		Message:        "채용이 확정되었습니다",
		ApplicationID:  applicationID,
		Status:         models.ApplicationAccepted,
		ContactVisible: true,
	}, nil
}

// Reject marks the application rejected with an optional reason.
func (s *ApplicationService) Reject(ctx context.Context, actorID, applicationID string, req models.RejectApplicationRequest) (result *models.RejectApplicationResult, err error) {
	defer func() { s.record(ApplicationOpReject, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reject payload")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	var outbox []models.Notification
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		app, posting, err := s.loadForDecision(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if err := s.authorize(ApplicationOpReject, actor, applicationSubject{instructorID: app.InstructorID, academyID: posting.AcademyID}); err != nil {
			return err
		}
		if app.Status == models.ApplicationAccepted {
			return appErrors.Clone(appErrors.ErrInvalidState, "accepted applications cannot be rejected")
		}
		if !statusIn(app.Status, s.rejectSources()) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("application is already %s", app.Status))
		}

		if _, err := s.applications.TransitionStatus(ctx, tx, app.ID, s.rejectSources(), models.ApplicationRejected, &reason); err != nil {
			return transitionError(err)
		}

		n := models.Notification{
			UserID:     app.InstructorID,
			Type:       models.NotificationApplicationRejected,
			Title:      "지원 결과 알림",
			Content:    fmt.Sprintf("%s의 \"%s\" 공고에 불합격 처리되었습니다", academyDisplayName(posting, actor), posting.Title),
			RelatedURL: fmt.Sprintf("/applications/%s/", app.ID),
			Metadata:   notificationMetadata(app.ID, posting.ID),
		}
		return s.emit(ctx, tx, &outbox, n)
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, outbox)
	return &models.RejectApplicationResult{
		Message:         "불합격 처리되었습니다",
		ApplicationID:   applicationID,
		Status:          models.ApplicationRejected,
		RejectionReason: reason,
	}, nil
}

// Cancel withdraws the acting instructor's application by deleting it.
func (s *ApplicationService) Cancel(ctx context.Context, actorID, applicationID string) (result *models.CancelApplicationResult, err error) {
	defer func() { s.record(ApplicationOpCancel, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var outbox []models.Notification
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		app, err := s.applications.GetByID(ctx, tx, applicationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if err := s.authorize(ApplicationOpCancel, actor, applicationSubject{instructorID: app.InstructorID}); err != nil {
			return err
		}
		if app.Status == models.ApplicationAccepted {
			return appErrors.Clone(appErrors.ErrInvalidState, "accepted applications cannot be cancelled")
		}

		posting, err := s.postings.GetByID(ctx, tx, app.JobPostingID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
		}

		if err := s.applications.DeleteCancellable(ctx, tx, app.ID, actor.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "application changed concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel application")
		}

		n := models.Notification{
			UserID:     posting.AcademyID,
			Type:       models.NotificationApplicationCancelled,
			Title:      "지원 취소 알림",
			Content:    fmt.Sprintf("%s님이 \"%s\" 공고 지원을 취소하셨습니다", actor.Name, posting.Title),
			RelatedURL: fmt.Sprintf("/job-postings/%s/", posting.ID),
			Metadata:   notificationMetadata(app.ID, posting.ID),
		}
		return s.emit(ctx, tx, &outbox, n)
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, outbox)
	return &models.CancelApplicationResult{Message: "지원이 취소되었습니다", ApplicationID: applicationID}, nil
}

// List returns applications visible to the actor: their own as an instructor,
// those to their postings as an academy, nothing otherwise.
func (s *ApplicationService) List(ctx context.Context, actorID string, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	filter.InstructorID = ""
	filter.AcademyID = ""
	switch actor.Role {
	case models.RoleInstructor:
		filter.InstructorID = actor.ID
	case models.RoleAcademy:
		filter.AcademyID = actor.ID
	default:
		return []models.ApplicationDetail{}, nil
	}

	items, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	for i := range items {
		s.present(actor, &items[i])
	}
	return items, nil
}

// ListMine returns the acting instructor's applications with review eligibility.
func (s *ApplicationService) ListMine(ctx context.Context, actorID string) ([]models.ApplicationDetail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors have applications")
	}
	return s.List(ctx, actorID, models.ApplicationFilter{})
}

// Get returns a single application for its instructor or the posting academy.
func (s *ApplicationService) Get(ctx context.Context, actorID, applicationID string) (*models.ApplicationDetail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	detail, err := s.applications.GetDetail(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.authorize(ApplicationOpView, actor, applicationSubject{instructorID: detail.InstructorID, academyID: detail.AcademyID}); err != nil {
		return nil, err
	}
	s.present(actor, detail)
	return detail, nil
}

// present applies viewer-specific shaping: academies only see the full phone
// number once the application is accepted or the instructor's contact is visible.
func (s *ApplicationService) present(actor *models.User, d *models.ApplicationDetail) {
	d.CanReview = d.Status == models.ApplicationAccepted && !d.HasReview
	if actor.Role == models.RoleAcademy && d.Status != models.ApplicationAccepted && !d.ContactVisible {
		d.InstructorPhone = MaskPhone(d.InstructorPhone)
	}
}

func (s *ApplicationService) loadForDecision(ctx context.Context, tx sqlx.ExtContext, applicationID string) (*models.Application, *models.JobPosting, error) {
	app, err := s.applications.GetByID(ctx, tx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	posting, err := s.postings.GetByID(ctx, tx, app.JobPostingID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	return app, posting, nil
}

func (s *ApplicationService) acceptSources() []models.ApplicationStatus {
	if s.strict {
		return []models.ApplicationStatus{models.ApplicationPending, models.ApplicationReviewing}
	}
	return []models.ApplicationStatus{models.ApplicationPending, models.ApplicationReviewing, models.ApplicationAccepted, models.ApplicationRejected}
}

func (s *ApplicationService) rejectSources() []models.ApplicationStatus {
	if s.strict {
		return []models.ApplicationStatus{models.ApplicationPending, models.ApplicationReviewing}
	}
	return []models.ApplicationStatus{models.ApplicationPending, models.ApplicationReviewing, models.ApplicationRejected}
}

func (s *ApplicationService) actor(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return user, nil
}

func (s *ApplicationService) authorize(op ApplicationOperation, actor models.Actor, subject applicationSubject) error {
	policy, ok := applicationPolicies[op]
	if !ok || actor == nil || !policy.allow(actor, subject) {
		msg := "forbidden"
		if ok {
			msg = policy.denied
		}
		return appErrors.Clone(appErrors.ErrForbidden, msg)
	}
	return nil
}

func (s *ApplicationService) emit(ctx context.Context, tx sqlx.ExtContext, outbox *[]models.Notification, n models.Notification) error {
	if err := s.notifications.Emit(ctx, tx, &n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record notification")
	}
	*outbox = append(*outbox, n)
	return nil
}

func (s *ApplicationService) deliver(ctx context.Context, outbox []models.Notification) {
	for _, n := range outbox {
		s.notifications.Deliver(ctx, n)
	}
}

func (s *ApplicationService) record(op ApplicationOperation, err error) {
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
		s.logger.Debug("application operation failed", zap.String("operation", string(op)), zap.Error(err))
	}
	s.metrics.RecordApplicationTransition(string(op), outcome)
}

func transitionError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "application changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
}

func statusIn(status models.ApplicationStatus, set []models.ApplicationStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func academyDisplayName(posting *models.JobPosting, fallback *models.User) string {
	if posting.AcademyName != "" {
		return posting.AcademyName
	}
	return fallback.Name
}

func notificationMetadata(applicationID, jobPostingID string) types.JSONText {
	// A map of strings always marshals.
	raw, _ := json.Marshal(map[string]string{
		"application_id": applicationID,
		"job_posting_id": jobPostingID,
	})
	return types.JSONText(raw)
}

// MaskPhone hides the middle digits of a phone number: 01012345678 → 010****5678.
func MaskPhone(phone string) string {
	runes := []rune(phone)
	if len(runes) <= 4 {
		return phone
	}
	return string(runes[:3]) + "****" + string(runes[len(runes)-4:])
}
