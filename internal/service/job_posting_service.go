package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type jobPostingRepository interface {
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.JobPosting, error)
	List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, int, error)
	Create(ctx context.Context, posting *models.JobPosting) error
	Update(ctx context.Context, posting *models.JobPosting) error
	UpdateStatus(ctx context.Context, id string, status models.JobPostingStatus) error
}

type jobPostingAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// JobPostingService manages academy job postings.
type JobPostingService struct {
	repo      jobPostingRepository
	users     actorLookup
	audit     jobPostingAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobPostingService constructs a JobPostingService.
func NewJobPostingService(repo jobPostingRepository, users actorLookup, audit jobPostingAuditor, validate *validator.Validate, logger *zap.Logger) *JobPostingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &JobPostingService{repo: repo, users: users, audit: audit, validator: validate, logger: logger}
}

// List returns public postings. Only active postings are listed unless the
// caller asks for other statuses explicitly.
func (s *JobPostingService) List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error) {
	if len(filter.Status) == 0 {
		filter.Status = []models.JobPostingStatus{models.JobPostingActive}
	}
	filter.Status = withoutDeleted(filter.Status)
	if len(filter.Status) == 0 {
		return []models.JobPosting{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	filter.Genres = normalizeTags(filter.Genres)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.list(ctx, filter)
}

// ListMine returns every non-deleted posting of the calling academy.
func (s *JobPostingService) ListMine(ctx context.Context, actorID string, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleAcademy {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only academies have job postings")
	}
	filter.AcademyID = actor.ID
	if len(filter.Status) == 0 {
		filter.Status = []models.JobPostingStatus{
			models.JobPostingDraft, models.JobPostingPending, models.JobPostingActive, models.JobPostingClosed, models.JobPostingHidden,
		}
	}
	filter.Status = withoutDeleted(filter.Status)
	return s.list(ctx, filter)
}

// Get returns a posting. Postings that are not active are visible only to
// their academy and admins; deleted postings are never visible.
func (s *JobPostingService) Get(ctx context.Context, viewerID, id string) (*models.JobPosting, error) {
	posting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if posting.Status == models.JobPostingActive || posting.Status == models.JobPostingClosed {
		return posting, nil
	}
	if viewerID != "" {
		viewer, err := s.actor(ctx, viewerID)
		if err == nil && (viewer.ID == posting.AcademyID || viewer.Role == models.RoleAdmin) {
			return posting, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
}

// Create publishes a posting for review. Only verified academies may post.
func (s *JobPostingService) Create(ctx context.Context, actorID string, req models.JobPostingRequest) (*models.JobPosting, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !models.IsVerifiedAcademy(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only verified academies can post jobs")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job posting payload")
	}

	posting := &models.JobPosting{AcademyID: actor.ID, Status: models.JobPostingPending}
	applyPostingRequest(posting, req)
	if err := s.repo.Create(ctx, posting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job posting")
	}
	return posting, nil
}

// Update edits the posting's content. Only the owning academy may edit.
func (s *JobPostingService) Update(ctx context.Context, actorID, id string, req models.JobPostingRequest) (*models.JobPosting, error) {
	posting, err := s.owned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job posting payload")
	}

	applyPostingRequest(posting, req)
	if err := s.repo.Update(ctx, posting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job posting")
	}
	return posting, nil
}

// Delete soft-deletes the posting.
func (s *JobPostingService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.owned(ctx, actorID, id); err != nil {
		return err
	}
	return s.setStatus(ctx, id, models.JobPostingDeleted)
}

// Close stops accepting applications.
func (s *JobPostingService) Close(ctx context.Context, actorID, id string) (*models.JobPosting, error) {
	posting, err := s.owned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if posting.Status == models.JobPostingClosed {
		return posting, nil
	}
	if err := s.setStatus(ctx, id, models.JobPostingClosed); err != nil {
		return nil, err
	}
	posting.Status = models.JobPostingClosed
	return posting, nil
}

// Moderate sets a posting's status on behalf of an admin.
func (s *JobPostingService) Moderate(ctx context.Context, adminID, id string, req models.JobPostingStatusRequest, meta models.LoginRequest) (*models.JobPosting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	posting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := posting.Status
	if err := s.setStatus(ctx, id, req.Status); err != nil {
		return nil, err
	}
	posting.Status = req.Status

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &adminID,
			Action:     models.AuditActionJobPostingModerate,
			Resource:   "job_postings",
			ResourceID: &posting.ID,
			OldValues:  []byte(`{"status":"` + string(previous) + `"}`),
			NewValues:  []byte(`{"status":"` + string(req.Status) + `"}`),
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record moderation audit log", zap.Error(err))
		}
	}
	return posting, nil
}

func (s *JobPostingService) list(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list job postings")
	}
	if items == nil {
		items = []models.JobPosting{}
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

func (s *JobPostingService) load(ctx context.Context, id string) (*models.JobPosting, error) {
	posting, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if posting.Status == models.JobPostingDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
	}
	return posting, nil
}

func (s *JobPostingService) owned(ctx context.Context, actorID, id string) (*models.JobPosting, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	posting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAcademy || posting.AcademyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the posting academy can modify this posting")
	}
	return posting, nil
}

func (s *JobPostingService) setStatus(ctx context.Context, id string, status models.JobPostingStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job posting status")
	}
	return nil
}

func (s *JobPostingService) actor(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func applyPostingRequest(posting *models.JobPosting, req models.JobPostingRequest) {
	posting.Title = strings.TrimSpace(req.Title)
	posting.Genres = pq.StringArray(normalizeTags(req.Genres))
	posting.Classes = strings.TrimSpace(req.Classes)
	posting.PreferredQualifications = strings.TrimSpace(req.PreferredQualifications)
	posting.Description = strings.TrimSpace(req.Description)
	posting.Region = req.Region
	posting.District = strings.TrimSpace(req.District)
	posting.Address = strings.TrimSpace(req.Address)
	posting.Latitude = req.Latitude
	posting.Longitude = req.Longitude
	posting.WorkDays = pq.StringArray(normalizeTags(req.WorkDays))
	posting.WorkTime = strings.TrimSpace(req.WorkTime)
	posting.SalaryType = req.SalaryType
	posting.Salary = req.Salary
}

func withoutDeleted(statuses []models.JobPostingStatus) []models.JobPostingStatus {
	out := statuses[:0:0]
	for _, st := range statuses {
		if st != models.JobPostingDeleted {
			out = append(out, st)
		}
	}
	return out
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
