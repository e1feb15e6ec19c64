package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/internal/middleware"
	"github.com/dmatch/dmatch-api/internal/models"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type notificationServiceMock struct {
	lastFilter models.NotificationFilter
	markErr    error
	settings   models.UpdateNotificationSettingsRequest
}

func (m *notificationServiceMock) List(ctx context.Context, filter models.NotificationFilter) (*models.NotificationList, error) {
	m.lastFilter = filter
	return &models.NotificationList{Items: []models.Notification{{ID: "n-1"}}, UnreadCount: 3}, nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, id, userID string) error {
	return m.markErr
}

func (m *notificationServiceMock) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 2, nil
}

func (m *notificationServiceMock) Delete(ctx context.Context, id, userID string) error {
	return m.markErr
}

func (m *notificationServiceMock) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings := models.DefaultNotificationSettings(userID)
	return &settings, nil
}

func (m *notificationServiceMock) UpdateSettings(ctx context.Context, userID string, req models.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	m.settings = req
	settings := models.DefaultNotificationSettings(userID)
	return &settings, nil
}

func TestNotificationHandlerListIncludesUnreadCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationServiceMock{}
	handler := NewNotificationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/notifications?is_read=false&page=2", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1"})
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", mockSvc.lastFilter.UserID)
	require.NotNil(t, mockSvc.lastFilter.IsRead)
	assert.False(t, *mockSvc.lastFilter.IsRead)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.EqualValues(t, 3, meta["unread_count"])
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "ok", status: http.StatusNoContent},
		{name: "not recipient", err: appErrors.Clone(appErrors.ErrNotFound, "notification not found"), status: http.StatusNotFound},
		{name: "unexpected", err: errors.New("db down"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewNotificationHandler(&notificationServiceMock{markErr: tc.err})
			c, w := newGinContext(http.MethodPatch, "/notifications/n-1/read", nil)
			c.Params = gin.Params{{Key: "id", Value: "n-1"}}
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1"})
			handler.MarkRead(c)
			c.Writer.WriteHeaderNow()
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestNotificationHandlerUpdateSettings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationServiceMock{}
	handler := NewNotificationHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/notifications/settings", []byte(`{"marketing":true}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1"})
	handler.UpdateSettings(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.settings.Marketing)
	assert.True(t, *mockSvc.settings.Marketing)
	assert.Nil(t, mockSvc.settings.ApplicationResult)
}
