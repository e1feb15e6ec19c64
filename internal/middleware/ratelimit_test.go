package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/login", rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func loginFrom(router *gin.Engine, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, time.Minute, nil)
	rl.now = func() time.Time { return now }
	router := newLimitedRouter(rl)

	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.1:1000").Code)

	blocked := loginFrom(router, "10.0.0.1:1000")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.2:1000").Code, "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.1:1000").Code, "bucket refills over time")
}

func TestRateLimiterSweepDropsIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 5, time.Minute, nil)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(30 * time.Second)
	rl.allow("10.0.0.2")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.clients, 1)
	_, kept := rl.clients["10.0.0.2"]
	assert.True(t, kept)
}
