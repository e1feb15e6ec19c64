package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type favoriteRepository interface {
	Toggle(ctx context.Context, instructorID, jobPostingID string) (bool, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Favorite, error)
}

// FavoriteService manages instructors' bookmarked job postings.
type FavoriteService struct {
	repo      favoriteRepository
	postings  postingLookup
	users     actorLookup
	validator *validator.Validate
}

// NewFavoriteService constructs a FavoriteService.
func NewFavoriteService(repo favoriteRepository, postings postingLookup, users actorLookup, validate *validator.Validate) *FavoriteService {
	if validate == nil {
		validate = validator.New()
	}
	return &FavoriteService{repo: repo, postings: postings, users: users, validator: validate}
}

// Toggle adds the bookmark when absent and removes it otherwise.
func (s *FavoriteService) Toggle(ctx context.Context, instructorID string, req models.ToggleFavoriteRequest) (*models.ToggleFavoriteResult, error) {
	if err := s.requireInstructor(ctx, instructorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid favorite payload")
	}

	posting, err := s.postings.GetByID(ctx, nil, req.JobPostingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if posting.Status == models.JobPostingDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
	}

	favorited, err := s.repo.Toggle(ctx, instructorID, posting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle favorite")
	}
	return &models.ToggleFavoriteResult{JobPostingID: posting.ID, IsFavorited: favorited}, nil
}

// List returns the caller's bookmarks with posting summaries.
func (s *FavoriteService) List(ctx context.Context, instructorID string) ([]models.Favorite, error) {
	if err := s.requireInstructor(ctx, instructorID); err != nil {
		return nil, err
	}
	favorites, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list favorites")
	}
	return favorites, nil
}

func (s *FavoriteService) requireInstructor(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrForbidden, "only instructors can bookmark postings")
	}
	return nil
}
