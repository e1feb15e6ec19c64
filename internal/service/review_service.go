package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/repository"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ExistsForAuthor(ctx context.Context, applicationID, authorID string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Review, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Review, error)
	ListForInstructor(ctx context.Context, instructorID string) ([]models.Review, error)
	ListForAcademy(ctx context.Context, academyID string) ([]models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
}

type reviewCache interface {
	Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) (interface{}, error)) (bool, interface{}, error)
	Invalidate(ctx context.Context, pattern string) error
}

// ReviewService manages reviews written after accepted applications.
type ReviewService struct {
	reviews      reviewRepository
	applications applicationStore
	postings     postingLookup
	users        actorLookup
	cache        reviewCache
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReviewService constructs a ReviewService. A nil cache disables summary caching.
func NewReviewService(
	reviews reviewRepository,
	applications applicationStore,
	postings postingLookup,
	users actorLookup,
	cache reviewCache,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		reviews:      reviews,
		applications: applications,
		postings:     postings,
		users:        users,
		cache:        cache,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger,
	}
}

// Create writes a review for an accepted application. The instructor reviews
// the academy and the academy reviews the instructor.
func (s *ReviewService) Create(ctx context.Context, authorID string, req models.CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	author, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	app, err := s.applications.GetByID(ctx, nil, req.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	posting, err := s.postings.GetByID(ctx, nil, app.JobPostingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}

	review := &models.Review{
		AuthorID:      author.ID,
		AuthorName:    author.Name,
		ApplicationID: app.ID,
		Rating:        req.Rating,
		Content:       strings.TrimSpace(req.Content),
	}
	switch {
	case author.Role == models.RoleInstructor && author.ID == app.InstructorID:
		review.AcademyID = &posting.AcademyID
	case author.Role == models.RoleAcademy && author.ID == posting.AcademyID:
		review.InstructorID = &app.InstructorID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parties of the application can review it")
	}

	if app.Status != models.ApplicationAccepted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only accepted applications can be reviewed")
	}
	exists, err := s.reviews.ExistsForAuthor(ctx, app.ID, author.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "")
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}
	s.invalidate(ctx, review)
	return review, nil
}

// ListMine returns reviews the caller wrote.
func (s *ReviewService) ListMine(ctx context.Context, authorID string) ([]models.Review, error) {
	reviews, err := s.reviews.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// InstructorSummary returns reviews academies wrote about the instructor.
func (s *ReviewService) InstructorSummary(ctx context.Context, instructorID string) (*models.ReviewSummary, error) {
	return s.summary(ctx, instructorSummaryKey(instructorID), false, func(ctx context.Context) ([]models.Review, error) {
		return s.reviews.ListForInstructor(ctx, instructorID)
	})
}

// AcademySummary returns reviews instructors wrote about the academy with the
// rating distribution.
func (s *ReviewService) AcademySummary(ctx context.Context, academyID string) (*models.ReviewSummary, error) {
	return s.summary(ctx, academySummaryKey(academyID), true, func(ctx context.Context) ([]models.Review, error) {
		return s.reviews.ListForAcademy(ctx, academyID)
	})
}

// Update edits the caller's review.
func (s *ReviewService) Update(ctx context.Context, authorID, id string, req models.UpdateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	review, err := s.authored(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Content != nil {
		review.Content = strings.TrimSpace(*req.Content)
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}
	s.invalidate(ctx, review)
	return review, nil
}

// Delete removes the caller's review.
func (s *ReviewService) Delete(ctx context.Context, authorID, id string) error {
	review, err := s.authored(ctx, authorID, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	s.invalidate(ctx, review)
	return nil
}

func (s *ReviewService) authored(ctx context.Context, authorID, id string) (*models.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if review.AuthorID != authorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can modify this review")
	}
	return review, nil
}

func (s *ReviewService) summary(ctx context.Context, key string, withDistribution bool, load func(ctx context.Context) ([]models.Review, error)) (*models.ReviewSummary, error) {
	build := func(ctx context.Context) (interface{}, error) {
		reviews, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return summarizeReviews(reviews, withDistribution), nil
	}

	if s.cache == nil {
		value, err := build(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
		}
		return value.(*models.ReviewSummary), nil
	}

	var cached models.ReviewSummary
	_, value, err := s.cache.Remember(ctx, key, s.cacheTTL, &cached, build)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return value.(*models.ReviewSummary), nil
}

func (s *ReviewService) invalidate(ctx context.Context, review *models.Review) {
	if s.cache == nil {
		return
	}
	key := ""
	switch {
	case review.InstructorID != nil:
		key = instructorSummaryKey(*review.InstructorID)
	case review.AcademyID != nil:
		key = academySummaryKey(*review.AcademyID)
	default:
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate review summary", zap.String("key", key), zap.Error(err))
	}
}

func instructorSummaryKey(id string) string { return fmt.Sprintf("reviews:instructor:%s", id) }

func academySummaryKey(id string) string { return fmt.Sprintf("reviews:academy:%s", id) }

// summarizeReviews masks author names and aggregates the ratings. The average
// is rounded to one decimal and nil when there are no reviews.
func summarizeReviews(reviews []models.Review, withDistribution bool) *models.ReviewSummary {
	summary := &models.ReviewSummary{Reviews: make([]models.Review, 0, len(reviews)), Count: len(reviews)}
	if withDistribution {
		summary.RatingDistribution = map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	}

	total := 0
	for _, r := range reviews {
		r.AuthorName = MaskName(r.AuthorName)
		summary.Reviews = append(summary.Reviews, r)
		total += r.Rating
		if withDistribution {
			summary.RatingDistribution[strconv.Itoa(r.Rating)]++
		}
	}
	if len(reviews) > 0 {
		avg := math.Round(float64(total)/float64(len(reviews))*10) / 10
		summary.AverageRating = &avg
	}
	return summary
}

// MaskName hides the middle of a name: 김민수 → 김*수, 이영 → 이*.
func MaskName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	switch len(runes) {
	case 0:
		return ""
	case 1:
		return string(runes)
	case 2:
		return string(runes[0]) + "*"
	default:
		return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
	}
}
