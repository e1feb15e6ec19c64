package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/response"
)

type reviewService interface {
	Create(ctx context.Context, authorID string, req models.CreateReviewRequest) (*models.Review, error)
	ListMine(ctx context.Context, authorID string) ([]models.Review, error)
	InstructorSummary(ctx context.Context, instructorID string) (*models.ReviewSummary, error)
	AcademySummary(ctx context.Context, academyID string) (*models.ReviewSummary, error)
	Update(ctx context.Context, authorID, id string, req models.UpdateReviewRequest) (*models.Review, error)
	Delete(ctx context.Context, authorID, id string) error
}

// ReviewHandler exposes review endpoints.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Create godoc
// @Summary Write a review for an accepted application
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body models.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// ListMine godoc
// @Summary List reviews written by the caller
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/my [get]
func (h *ReviewHandler) ListMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	reviews, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// InstructorReviews godoc
// @Summary Reviews about an instructor
// @Tags Reviews
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /reviews/instructor/{id} [get]
func (h *ReviewHandler) InstructorReviews(c *gin.Context) {
	summary, err := h.service.InstructorSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AcademyReviews godoc
// @Summary Reviews about an academy
// @Tags Reviews
// @Produce json
// @Param id path string true "Academy ID"
// @Success 200 {object} response.Envelope
// @Router /reviews/academy/{id} [get]
func (h *ReviewHandler) AcademyReviews(c *gin.Context) {
	summary, err := h.service.AcademySummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Update godoc
// @Summary Edit a review
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID"
// @Param payload body models.UpdateReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.UpdateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Delete godoc
// @Summary Delete a review
// @Tags Reviews
// @Param id path string true "Review ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
