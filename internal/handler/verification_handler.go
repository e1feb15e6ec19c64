package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/service"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
	"github.com/dmatch/dmatch-api/pkg/response"
)

type verificationService interface {
	Submit(ctx context.Context, actorID string, uploads []service.VerificationUpload, meta models.LoginRequest) (*models.Verification, error)
	GetMine(ctx context.Context, actorID string) (*models.Verification, error)
	List(ctx context.Context, filter models.VerificationFilter) ([]models.Verification, error)
	Get(ctx context.Context, id string) (*models.Verification, error)
	Review(ctx context.Context, adminID, id string, req models.ReviewVerificationRequest, meta models.LoginRequest) (*models.Verification, error)
	Download(ctx context.Context, token string) (*service.VerificationDownload, error)
}

// VerificationHandler exposes document submission and the admin review queue.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler builds a new handler.
func NewVerificationHandler(service verificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// Submit godoc
// @Summary Submit verification documents
// @Tags Verifications
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Documents (pdf, jpeg, png)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /verifications [post]
func (h *VerificationHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form required"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "files are required"))
		return
	}

	uploads := make([]service.VerificationUpload, 0, len(headers))
	for _, header := range headers {
		upload, closeFn, err := openUpload(header)
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeFn()
		uploads = append(uploads, upload)
	}

	verification, err := h.service.Submit(c.Request.Context(), claims.UserID, uploads, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, verification)
}

func openUpload(header *multipart.FileHeader) (service.VerificationUpload, func(), error) {
	src, err := header.Open()
	if err != nil {
		return service.VerificationUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		src.Close() //nolint:errcheck
		if readErr != nil {
			return service.VerificationUpload{}, nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		return service.VerificationUpload{
			Filename: header.Filename,
			Size:     header.Size,
			Content:  bytes.NewReader(buf),
		}, func() {}, nil
	}
	return service.VerificationUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  reader,
	}, func() { src.Close() }, nil //nolint:errcheck
}

// GetMine godoc
// @Summary Get the caller's verification request
// @Tags Verifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verifications/me [get]
func (h *VerificationHandler) GetMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	v, err := h.service.GetMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// List godoc
// @Summary Admin verification queue
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param role query string false "Role filter"
// @Success 200 {object} response.Envelope
// @Router /admin/verifications [get]
func (h *VerificationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), models.VerificationFilter{
		Status: models.VerificationStatus(c.Query("status")),
		Role:   models.UserRole(c.Query("role")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Admin verification detail with signed document links
// @Tags Admin
// @Produce json
// @Param id path string true "Verification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/verifications/{id} [get]
func (h *VerificationHandler) Get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// Review godoc
// @Summary Approve or reject a verification
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Verification ID"
// @Param payload body models.ReviewVerificationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/verifications/{id}/review [post]
func (h *VerificationHandler) Review(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.ReviewVerificationRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.service.Review(c.Request.Context(), claims.UserID, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// Download godoc
// @Summary Download a verification document via signed token
// @Tags Verifications
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Router /verifications/files/{token} [get]
func (h *VerificationHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
