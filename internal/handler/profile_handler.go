package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/pkg/response"
)

type profileService interface {
	GetInstructorProfile(ctx context.Context, userID string) (*models.InstructorProfile, error)
	UpdateInstructorProfile(ctx context.Context, userID string, req models.UpdateInstructorProfileRequest) (*models.InstructorProfile, error)
	GetAcademyProfile(ctx context.Context, userID string) (*models.AcademyProfile, error)
	UpdateAcademyProfile(ctx context.Context, userID string, req models.UpdateAcademyProfileRequest) (*models.AcademyProfile, error)
	GetInstructorPublic(ctx context.Context, instructorID string) (*models.InstructorPublicView, error)
	GetAcademyPublic(ctx context.Context, academyID string) (*models.AcademyProfile, error)
}

// ProfileHandler serves instructor and academy profiles.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler builds a new handler.
func NewProfileHandler(service profileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetMyProfile godoc
// @Summary Get the instructor's own profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/me/profile [get]
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	profile, err := h.service.GetInstructorProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateMyProfile godoc
// @Summary Update the instructor's own profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body models.UpdateInstructorProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me/profile [put]
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.UpdateInstructorProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.service.UpdateInstructorProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// GetMyAcademy godoc
// @Summary Get the academy's own profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/me/academy [get]
func (h *ProfileHandler) GetMyAcademy(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	profile, err := h.service.GetAcademyProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateMyAcademy godoc
// @Summary Update the academy's own profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body models.UpdateAcademyProfileRequest true "Academy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me/academy [put]
func (h *ProfileHandler) UpdateMyAcademy(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.UpdateAcademyProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.service.UpdateAcademyProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// GetInstructor godoc
// @Summary Public instructor profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *ProfileHandler) GetInstructor(c *gin.Context) {
	view, err := h.service.GetInstructorPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// GetAcademy godoc
// @Summary Public academy profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Academy ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academies/{id} [get]
func (h *ProfileHandler) GetAcademy(c *gin.Context) {
	profile, err := h.service.GetAcademyPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
