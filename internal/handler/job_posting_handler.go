package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/response"
)

type jobPostingService interface {
	List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error)
	ListMine(ctx context.Context, actorID string, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error)
	Get(ctx context.Context, viewerID, id string) (*models.JobPosting, error)
	Create(ctx context.Context, actorID string, req models.JobPostingRequest) (*models.JobPosting, error)
	Update(ctx context.Context, actorID, id string, req models.JobPostingRequest) (*models.JobPosting, error)
	Delete(ctx context.Context, actorID, id string) error
	Close(ctx context.Context, actorID, id string) (*models.JobPosting, error)
	Moderate(ctx context.Context, adminID, id string, req models.JobPostingStatusRequest, meta models.LoginRequest) (*models.JobPosting, error)
}

// JobPostingHandler exposes job posting endpoints.
type JobPostingHandler struct {
	service jobPostingService
}

// NewJobPostingHandler builds a new handler.
func NewJobPostingHandler(service jobPostingService) *JobPostingHandler {
	return &JobPostingHandler{service: service}
}

func postingFilter(c *gin.Context) models.JobPostingFilter {
	page, size := pageParams(c)
	filter := models.JobPostingFilter{
		Region:    c.Query("region"),
		District:  c.Query("district"),
		Genres:    splitQuery(c, "genre"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		PageSize:  size,
	}
	for _, status := range splitQuery(c, "status") {
		filter.Status = append(filter.Status, models.JobPostingStatus(status))
	}
	return filter
}

// List godoc
// @Summary List job postings
// @Tags JobPostings
// @Produce json
// @Param region query string false "Region"
// @Param district query string false "District"
// @Param genre query string false "Comma separated genres (any match)"
// @Param search query string false "Search in title and description"
// @Param sort_by query string false "created_at or salary"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /job-postings [get]
func (h *JobPostingHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), postingFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListMine godoc
// @Summary List the academy's own postings
// @Tags JobPostings
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings/my [get]
func (h *JobPostingHandler) ListMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListMine(c.Request.Context(), claims.UserID, postingFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get job posting detail
// @Tags JobPostings
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /job-postings/{id} [get]
func (h *JobPostingHandler) Get(c *gin.Context) {
	viewerID := ""
	if claims := claimsFromContext(c); claims != nil {
		viewerID = claims.UserID
	}
	posting, err := h.service.Get(c.Request.Context(), viewerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Create godoc
// @Summary Create a job posting
// @Tags JobPostings
// @Accept json
// @Produce json
// @Param payload body models.JobPostingRequest true "Posting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings [post]
func (h *JobPostingHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.JobPostingRequest
	if !bindJSON(c, &req) {
		return
	}
	posting, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, posting)
}

// Update godoc
// @Summary Update a job posting
// @Tags JobPostings
// @Accept json
// @Produce json
// @Param id path string true "Job posting ID"
// @Param payload body models.JobPostingRequest true "Posting payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings/{id} [put]
func (h *JobPostingHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.JobPostingRequest
	if !bindJSON(c, &req) {
		return
	}
	posting, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Delete godoc
// @Summary Delete a job posting
// @Tags JobPostings
// @Param id path string true "Job posting ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings/{id} [delete]
func (h *JobPostingHandler) Delete(c *gin.Context) {
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

// Close godoc
// @Summary Close a job posting
// @Tags JobPostings
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings/{id}/close [post]
func (h *JobPostingHandler) Close(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	posting, err := h.service.Close(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Moderate godoc
// @Summary Change a posting's status as admin
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Job posting ID"
// @Param payload body models.JobPostingStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/job-postings/{id}/status [post]
func (h *JobPostingHandler) Moderate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.JobPostingStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	posting, err := h.service.Moderate(c.Request.Context(), claims.UserID, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}
