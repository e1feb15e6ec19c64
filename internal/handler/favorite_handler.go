package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/response"
)

type favoriteService interface {
	Toggle(ctx context.Context, instructorID string, req models.ToggleFavoriteRequest) (*models.ToggleFavoriteResult, error)
	List(ctx context.Context, instructorID string) ([]models.Favorite, error)
}

// FavoriteHandler exposes instructor bookmarks.
type FavoriteHandler struct {
	service favoriteService
}

// NewFavoriteHandler builds a new handler.
func NewFavoriteHandler(service favoriteService) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// Toggle godoc
// @Summary Add or remove a bookmarked posting
// @Tags Favorites
// @Accept json
// @Produce json
// @Param payload body models.ToggleFavoriteRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /favorites/toggle [post]
func (h *FavoriteHandler) Toggle(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.ToggleFavoriteRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Toggle(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List bookmarked postings
// @Tags Favorites
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /favorites [get]
func (h *FavoriteHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
