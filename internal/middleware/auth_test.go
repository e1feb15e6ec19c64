package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditStub struct {
	logs []models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return a.err
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := validatorStub{
		"academy-token": {UserID: "academy-1", Role: models.RoleAcademy},
		"admin-token":   {UserID: "admin-1", Role: models.RoleAdmin},
	}
	router := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/admin/users", JWT(tokens), RequireRoles(models.RoleAdmin), ok)
	router.GET("/job-postings/:id", OptionalJWT(tokens), func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); exists {
			c.String(http.StatusOK, "viewer")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return router
}

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAndRequireRoles(t *testing.T) {
	router := newAuthRouter()

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer academy-token", status: http.StatusForbidden},
		{name: "admin", header: "bearer admin-token", status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, serve(router, "/admin/users", tc.header).Code)
		})
	}
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, "anonymous", serve(router, "/job-postings/p1", "").Body.String())
	assert.Equal(t, "anonymous", serve(router, "/job-postings/p1", "Bearer nope").Body.String())
	assert.Equal(t, "viewer", serve(router, "/job-postings/p1", "Bearer academy-token").Body.String())
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditStub{}
	router := gin.New()
	router.GET("/files/:token", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1"})
		c.Next()
	}, Audit(writer, nil, "VERIFICATION_FILE_DOWNLOAD", "verification_file", "token"), func(c *gin.Context) {
		if c.Param("token") == "bad" {
			c.Status(http.StatusForbidden)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(router, "/files/good", "")
	serve(router, "/files/bad", "")

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, "VERIFICATION_FILE_DOWNLOAD", entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "good", *entry.ResourceID)

	writer.err = errors.New("db down")
	assert.Equal(t, http.StatusOK, serve(router, "/files/good", "").Code)
}
