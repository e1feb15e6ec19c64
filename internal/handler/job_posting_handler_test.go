package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/middleware"
	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type jobPostingServiceMock struct {
	err error

	lastActor  string
	lastViewer string
	lastID     string
	lastFilter models.JobPostingFilter
	created    bool
	deleted    bool
}

func (m *jobPostingServiceMock) List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.JobPosting{{ID: "p1", Status: models.JobPostingActive}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, m.err
}

func (m *jobPostingServiceMock) ListMine(ctx context.Context, actorID string, filter models.JobPostingFilter) ([]models.JobPosting, *models.Pagination, error) {
	m.lastActor, m.lastFilter = actorID, filter
	return []models.JobPosting{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *jobPostingServiceMock) Get(ctx context.Context, viewerID, id string) (*models.JobPosting, error) {
	m.lastViewer, m.lastID = viewerID, id
	if m.err != nil {
		return nil, m.err
	}
	return &models.JobPosting{ID: id, Status: models.JobPostingClosed}, nil
}

func (m *jobPostingServiceMock) Create(ctx context.Context, actorID string, req models.JobPostingRequest) (*models.JobPosting, error) {
	m.lastActor, m.created = actorID, true
	return &models.JobPosting{ID: "p-new", Title: req.Title, Status: models.JobPostingActive}, m.err
}

func (m *jobPostingServiceMock) Update(ctx context.Context, actorID, id string, req models.JobPostingRequest) (*models.JobPosting, error) {
	m.lastActor, m.lastID = actorID, id
	return &models.JobPosting{ID: id, Title: req.Title}, m.err
}

func (m *jobPostingServiceMock) Delete(ctx context.Context, actorID, id string) error {
	m.lastActor, m.lastID, m.deleted = actorID, id, true
	return m.err
}

func (m *jobPostingServiceMock) Close(ctx context.Context, actorID, id string) (*models.JobPosting, error) {
	m.lastActor, m.lastID = actorID, id
	return &models.JobPosting{ID: id, Status: models.JobPostingClosed}, m.err
}

func (m *jobPostingServiceMock) Moderate(ctx context.Context, adminID, id string, req models.JobPostingStatusRequest, meta models.LoginRequest) (*models.JobPosting, error) {
	m.lastActor, m.lastID = adminID, id
	return &models.JobPosting{ID: id, Status: req.Status}, m.err
}

func TestJobPostingHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/job-postings?region=seoul&district=gangnam&genre=kpop,%20jazz,,&search=choreo&sort_by=salary&sort_order=asc&page=2&page_size=5&status=active,closed", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	f := mockSvc.lastFilter
	assert.Equal(t, "seoul", f.Region)
	assert.Equal(t, "gangnam", f.District)
	assert.Equal(t, []string{"kpop", "jazz"}, f.Genres)
	assert.Equal(t, "choreo", f.Search)
	assert.Equal(t, "salary", f.SortBy)
	assert.Equal(t, "asc", f.SortOrder)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 5, f.PageSize)
	assert.Equal(t, []models.JobPostingStatus{models.JobPostingActive, models.JobPostingClosed}, f.Status)

	pagination := decodeEnvelope(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["page"])
	assert.EqualValues(t, 1, pagination["total_count"])
}

func TestJobPostingHandlerListDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, _ := newGinContext(http.MethodGet, "/job-postings", nil)
	handler.List(c)

	assert.Equal(t, 1, mockSvc.lastFilter.Page)
	assert.Equal(t, 20, mockSvc.lastFilter.PageSize)
	assert.Nil(t, mockSvc.lastFilter.Genres)
	assert.Nil(t, mockSvc.lastFilter.Status)
}

func TestJobPostingHandlerGetPassesOptionalViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/job-postings/p1", nil)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", mockSvc.lastViewer)
	assert.Equal(t, "closed", decodeEnvelope(t, w)["data"].(map[string]interface{})["status"])

	c, _ = newGinContext(http.MethodGet, "/job-postings/p1", nil)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	handler.Get(c)
	assert.Equal(t, "inst-1", mockSvc.lastViewer)
}

func TestJobPostingHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewJobPostingHandler(&jobPostingServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "job posting not found")})

	c, w := newGinContext(http.MethodGet, "/job-postings/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestJobPostingHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/job-postings", []byte(`{"title":"Hip-hop weekend class"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "academy-1", Role: models.RoleAcademy})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "academy-1", mockSvc.lastActor)
	assert.Equal(t, "Hip-hop weekend class", decodeEnvelope(t, w)["data"].(map[string]interface{})["title"])
}

func TestJobPostingHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/job-postings", []byte(`{"title":`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "academy-1", Role: models.RoleAcademy})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.created)
}

func TestJobPostingHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &jobPostingServiceMock{}
	handler := NewJobPostingHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/job-postings/p1", nil)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "academy-1", Role: models.RoleAcademy})
	handler.Delete(c)

	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.deleted)
	assert.Equal(t, "p1", mockSvc.lastID)
}

func TestJobPostingHandlerModerateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewJobPostingHandler(&jobPostingServiceMock{})

	c, w := newGinContext(http.MethodPost, "/admin/job-postings/p1/status", []byte(`{"status":"hidden"}`))
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	handler.Moderate(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
