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

type profileRepository interface {
	EnsureInstructorProfile(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.InstructorProfile, error)
	FindInstructorProfile(ctx context.Context, userID string) (*models.InstructorProfile, error)
	UpdateInstructorProfile(ctx context.Context, profile *models.InstructorProfile) error
	FindAcademyProfile(ctx context.Context, userID string) (*models.AcademyProfile, error)
	UpsertAcademyProfile(ctx context.Context, exec sqlx.ExtContext, profile *models.AcademyProfile) error
}

// ProfileService serves instructor and academy profile pages.
type ProfileService struct {
	profiles  profileRepository
	users     actorLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(profiles profileRepository, users actorLookup, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{profiles: profiles, users: users, validator: validate, logger: logger}
}

// GetInstructorProfile returns the caller's instructor profile, creating it on first access.
func (s *ProfileService) GetInstructorProfile(ctx context.Context, userID string) (*models.InstructorProfile, error) {
	if _, err := s.requireRole(ctx, userID, models.RoleInstructor); err != nil {
		return nil, err
	}
	profile, err := s.profiles.EnsureInstructorProfile(ctx, nil, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}
	return profile, nil
}

// UpdateInstructorProfile edits bio and specialties. Contact visibility is not
// editable here.
func (s *ProfileService) UpdateInstructorProfile(ctx context.Context, userID string, req models.UpdateInstructorProfileRequest) (*models.InstructorProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile, err := s.GetInstructorProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Bio != nil {
		profile.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Specialties != nil {
		profile.Specialties = pq.StringArray(normalizeTags(req.Specialties))
	}
	if err := s.profiles.UpdateInstructorProfile(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor profile")
	}
	return profile, nil
}

// GetAcademyProfile returns the caller's academy profile.
func (s *ProfileService) GetAcademyProfile(ctx context.Context, userID string) (*models.AcademyProfile, error) {
	user, err := s.requireRole(ctx, userID, models.RoleAcademy)
	if err != nil {
		return nil, err
	}
	return s.academyProfile(ctx, user)
}

// UpdateAcademyProfile applies the provided fields to the caller's academy profile.
func (s *ProfileService) UpdateAcademyProfile(ctx context.Context, userID string, req models.UpdateAcademyProfileRequest) (*models.AcademyProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academy payload")
	}
	user, err := s.requireRole(ctx, userID, models.RoleAcademy)
	if err != nil {
		return nil, err
	}
	profile, err := s.academyProfile(ctx, user)
	if err != nil {
		return nil, err
	}

	if req.AcademyName != nil {
		profile.AcademyName = strings.TrimSpace(*req.AcademyName)
	}
	if req.Address != nil {
		profile.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		profile.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.OperatingHours != nil {
		profile.OperatingHours = strings.TrimSpace(*req.OperatingHours)
	}
	if req.MainGenres != nil {
		profile.MainGenres = pq.StringArray(normalizeTags(req.MainGenres))
	}
	if req.Description != nil {
		profile.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.profiles.UpsertAcademyProfile(ctx, nil, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academy profile")
	}
	return profile, nil
}

// GetInstructorPublic returns an instructor page. The phone number stays masked
// until an academy has accepted one of the instructor's applications.
func (s *ProfileService) GetInstructorPublic(ctx context.Context, instructorID string) (*models.InstructorPublicView, error) {
	user, err := s.publicUser(ctx, instructorID, models.RoleInstructor)
	if err != nil {
		return nil, err
	}

	view := &models.InstructorPublicView{
		UserID:      user.ID,
		Name:        user.Name,
		IsVerified:  user.IsVerified,
		Specialties: []string{},
	}
	profile, err := s.profiles.FindInstructorProfile(ctx, instructorID)
	switch {
	case err == nil:
		view.Bio = profile.Bio
		view.Specialties = profile.Specialties
		view.ContactVisible = profile.ContactVisible
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	view.Phone = user.Phone
	if !view.ContactVisible {
		view.Phone = MaskPhone(user.Phone)
	}
	return view, nil
}

// GetAcademyPublic returns an academy page.
func (s *ProfileService) GetAcademyPublic(ctx context.Context, academyID string) (*models.AcademyProfile, error) {
	user, err := s.publicUser(ctx, academyID, models.RoleAcademy)
	if err != nil {
		return nil, err
	}
	return s.academyProfile(ctx, user)
}

func (s *ProfileService) academyProfile(ctx context.Context, user *models.User) (*models.AcademyProfile, error) {
	profile, err := s.profiles.FindAcademyProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.AcademyProfile{UserID: user.ID, AcademyName: user.Name, Phone: user.Phone, MainGenres: pq.StringArray{}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academy profile")
	}
	return profile, nil
}

func (s *ProfileService) requireRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only "+string(role)+" accounts have this profile")
	}
	return user, nil
}

func (s *ProfileService) publicUser(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, string(role)+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role || !user.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, string(role)+" not found")
	}
	return user, nil
}

// normalizeTags trims, drops empties and de-duplicates while keeping order.
func normalizeTags(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
