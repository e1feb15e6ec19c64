package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/repository"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

const maxVerificationFiles = 5

type verificationStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Verification, error)
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verification, error)
	List(ctx context.Context, filter models.VerificationFilter) ([]models.Verification, error)
	Submit(ctx context.Context, exec sqlx.ExtContext, v *models.Verification) ([]models.VerificationFile, error)
	AddFile(ctx context.Context, exec sqlx.ExtContext, file *models.VerificationFile) error
	Review(ctx context.Context, exec sqlx.ExtContext, id string, status models.VerificationStatus, reason *string, reviewerID string) error
	GetFile(ctx context.Context, id string) (*models.VerificationFile, error)
}

type verificationUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateVerification(ctx context.Context, exec sqlx.ExtContext, id string, status models.VerificationStatus) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

// VerificationUpload carries one submitted document.
type VerificationUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// VerificationDownload bundles an opened document for streaming.
type VerificationDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// VerificationServiceConfig holds upload limits and link settings.
type VerificationServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// VerificationService handles identity verification submissions and the admin review queue.
type VerificationService struct {
	tx            txRunner
	repo          verificationStore
	users         verificationUserStore
	storage       documentStorage
	signer        documentSigner
	notifications NotificationSink
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           VerificationServiceConfig
	mimeSet       map[string]struct{}
}

// NewVerificationService constructs the service with defaults.
func NewVerificationService(
	tx txRunner,
	repo verificationStore,
	users verificationUserStore,
	storage documentStorage,
	signer documentSigner,
	notifications NotificationSink,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg VerificationServiceConfig,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &VerificationService{
		tx:            tx,
		repo:          repo,
		users:         users,
		storage:       storage,
		signer:        signer,
		notifications: notifications,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
		mimeSet:       mimeSet,
	}
}

// Submit stores the documents and moves the user's verification to pending.
// A new submission is accepted only when none exists or the last one was rejected.
func (s *VerificationService) Submit(ctx context.Context, actorID string, uploads []VerificationUpload, meta models.LoginRequest) (*models.Verification, error) {
	user, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAcademy {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors and academies can request verification")
	}
	switch user.VerificationStatus {
	case models.VerificationPending:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "verification is already under review")
	case models.VerificationApproved:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "account is already verified")
	}
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one document is required")
	}
	if len(uploads) > maxVerificationFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d documents are allowed", maxVerificationFiles))
	}

	mimeTypes := make([]string, len(uploads))
	for i, upload := range uploads {
		mimeType, err := s.checkUpload(upload)
		if err != nil {
			return nil, err
		}
		mimeTypes[i] = mimeType
	}

	files := make([]models.VerificationFile, 0, len(uploads))
	stored := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		name := documentPath(user, upload.Filename, mimeTypes[i])
		path, err := s.storage.SaveStream(name, upload.Content)
		if err != nil {
			s.removeFiles(stored)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
		}
		stored = append(stored, path)
		files = append(files, models.VerificationFile{
			FileName:    filepath.Base(upload.Filename),
			StoragePath: path,
			MimeType:    mimeTypes[i],
			SizeBytes:   upload.Size,
		})
	}

	verification := &models.Verification{UserID: user.ID, Role: user.Role}
	var replaced []models.VerificationFile
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		old, err := s.repo.Submit(ctx, tx, verification)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "verification is already under review")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit verification")
		}
		replaced = old
		for i := range files {
			files[i].VerificationID = verification.ID
			if err := s.repo.AddFile(ctx, tx, &files[i]); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
			}
		}
		if err := s.users.UpdateVerification(ctx, tx, user.ID, models.VerificationPending); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user verification")
		}
		return nil
	})
	if err != nil {
		s.removeFiles(stored)
		return nil, err
	}

	for _, old := range replaced {
		if err := s.storage.Delete(old.StoragePath); err != nil {
			s.logger.Warn("failed to remove replaced verification document", zap.String("path", old.StoragePath), zap.Error(err))
		}
	}
	verification.Files = files
	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionVerificationSubmit,
		Resource:   "verification",
		ResourceID: &verification.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return verification, nil
}

// GetMine returns the caller's latest verification request.
func (s *VerificationService) GetMine(ctx context.Context, actorID string) (*models.Verification, error) {
	v, err := s.repo.FindByUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no verification submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification")
	}
	return v, nil
}

// List returns the admin review queue. Documents are attached by Get.
func (s *VerificationService) List(ctx context.Context, filter models.VerificationFilter) ([]models.Verification, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verifications")
	}
	return items, nil
}

// Get returns one verification with signed download links for the admin.
func (s *VerificationService) Get(ctx context.Context, id string) (*models.Verification, error) {
	v, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification")
	}
	if err := s.signFiles(v.Files); err != nil {
		return nil, err
	}
	return v, nil
}

// Review records an admin decision, updates the user's verification state and
// notifies the user once the transaction commits.
func (s *VerificationService) Review(ctx context.Context, adminID, id string, req models.ReviewVerificationRequest, meta models.LoginRequest) (*models.Verification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	status := models.VerificationApproved
	var reason *string
	if req.Action == "reject" {
		status = models.VerificationRejected
		trimmed := strings.TrimSpace(req.Reason)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection_reason is required")
		}
		reason = &trimmed
	}

	var (
		result *models.Verification
		outbox models.Notification
	)
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		v, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "verification not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification")
		}
		if v.Status != models.VerificationPending {
			return appErrors.Clone(appErrors.ErrInvalidState, "verification is not pending")
		}
		if err := s.repo.Review(ctx, tx, id, status, reason, adminID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "verification changed concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review verification")
		}
		if err := s.users.UpdateVerification(ctx, tx, v.UserID, status); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user verification")
		}

		n := verificationNotification(v, status, reason)
		if err := s.notifications.Emit(ctx, tx, &n); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record notification")
		}
		outbox = n

		now := time.Now().UTC()
		v.Status = status
		v.RejectionReason = reason
		v.ReviewedAt = &now
		v.ReviewedBy = &adminID
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Deliver(ctx, outbox)
	newValues, _ := json.Marshal(map[string]string{"status": string(status)})
	s.audit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionVerificationReview,
		Resource:   "verification",
		ResourceID: &id,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return result, nil
}

// Download validates a signed token and opens the referenced document.
func (s *VerificationService) Download(ctx context.Context, token string) (*VerificationDownload, error) {
	fileID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if file.StoragePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	handle, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	info, err := handle.Stat()
	if err != nil {
		handle.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	return &VerificationDownload{
		File:      handle,
		Filename:  file.FileName,
		MimeType:  file.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *VerificationService) signFiles(files []models.VerificationFile) error {
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	for i := range files {
		token, _, err := s.signer.Generate(files[i].ID, files[i].StoragePath)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document link")
		}
		files[i].DownloadURL = fmt.Sprintf("%s/verifications/files/%s", base, token)
	}
	return nil
}

func (s *VerificationService) checkUpload(upload VerificationUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	mimeType := http.DetectContentType(header[:n])
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	if _, ok := s.mimeSet[strings.ToLower(mimeType)]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}
	return mimeType, nil
}

func (s *VerificationService) removeFiles(paths []string) {
	for _, path := range paths {
		if err := s.storage.Delete(path); err != nil {
			s.logger.Warn("failed to remove verification document", zap.String("path", path), zap.Error(err))
		}
	}
}

func (s *VerificationService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to create verification audit", zap.Error(err))
	}
}

func verificationNotification(v *models.Verification, status models.VerificationStatus, reason *string) models.Notification {
	metadata, _ := json.Marshal(map[string]string{"verification_id": v.ID})
	n := models.Notification{
		UserID:     v.UserID,
		Type:       models.NotificationVerificationApproved,
		Title:      "인증 승인 안내",
		Content:    "제출하신 인증 서류가 승인되었습니다.",
		RelatedURL: "/verifications/me/",
		Metadata:   types.JSONText(metadata),
	}
	if status == models.VerificationRejected {
		n.Type = models.NotificationVerificationRejected
		n.Title = "인증 반려 안내"
		n.Content = "제출하신 인증 서류가 반려되었습니다."
		if reason != nil && *reason != "" {
			n.Content += " 사유: " + *reason
		}
	}
	return n
}

// documentPath builds a unique storage path grouped by role and user.
func documentPath(user *models.User, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = documentExtension(mimeType)
	}
	return fmt.Sprintf("%s/%s/%d_%s%s", user.Role, user.ID, time.Now().Unix(), randomHex(4), ext)
}

func documentExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
