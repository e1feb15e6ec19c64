package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/middleware"
	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/service"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type verificationServiceMock struct {
	submitted   [][]byte
	names       []string
	download    *service.VerificationDownload
	downloadErr error
	reviewReq   models.ReviewVerificationRequest
}

func (m *verificationServiceMock) Submit(ctx context.Context, actorID string, uploads []service.VerificationUpload, meta models.LoginRequest) (*models.Verification, error) {
	for _, u := range uploads {
		body, err := io.ReadAll(u.Content)
		if err != nil {
			return nil, err
		}
		m.submitted = append(m.submitted, body)
		m.names = append(m.names, u.Filename)
	}
	return &models.Verification{ID: "v-1", UserID: actorID, Status: models.VerificationPending}, nil
}

func (m *verificationServiceMock) GetMine(ctx context.Context, actorID string) (*models.Verification, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no verification submitted")
}

func (m *verificationServiceMock) List(ctx context.Context, filter models.VerificationFilter) ([]models.Verification, error) {
	return []models.Verification{}, nil
}

func (m *verificationServiceMock) Get(ctx context.Context, id string) (*models.Verification, error) {
	return &models.Verification{ID: id}, nil
}

func (m *verificationServiceMock) Review(ctx context.Context, adminID, id string, req models.ReviewVerificationRequest, meta models.LoginRequest) (*models.Verification, error) {
	m.reviewReq = req
	return &models.Verification{ID: id, Status: models.VerificationApproved}, nil
}

func (m *verificationServiceMock) Download(ctx context.Context, token string) (*service.VerificationDownload, error) {
	return m.download, m.downloadErr
}

func TestVerificationHandlerSubmitMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &verificationServiceMock{}
	handler := NewVerificationHandler(mockSvc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range []string{"license.pdf", "career.pdf"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 " + name))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/verifications", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})

	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"license.pdf", "career.pdf"}, mockSvc.names)
	assert.Equal(t, "%PDF-1.4 license.pdf", string(mockSvc.submitted[0]))
}

func TestVerificationHandlerSubmitRequiresFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewVerificationHandler(&verificationServiceMock{})

	c, w := newGinContext(http.MethodPost, "/verifications", []byte(`{}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})

	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationHandlerDownloadStreamsFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "license.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewVerificationHandler(&verificationServiceMock{download: &service.VerificationDownload{
		File:      file,
		Filename:  "license.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 8,
	}})

	c, w := newGinContext(http.MethodGet, "/verifications/files/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "license.pdf")
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestVerificationHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewVerificationHandler(&verificationServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")})

	c, w := newGinContext(http.MethodGet, "/verifications/files/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerificationHandlerReviewBindsDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &verificationServiceMock{}
	handler := NewVerificationHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/admin/verifications/v-1/review", []byte(`{"action":"reject","rejection_reason":"서류 불명확"}`))
	c.Params = gin.Params{{Key: "id", Value: "v-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.Review(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reject", mockSvc.reviewReq.Action)
	assert.Equal(t, "서류 불명확", mockSvc.reviewReq.Reason)
}
