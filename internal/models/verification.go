package models

import "time"

// Verification is a user's identity verification request.
type Verification struct {
	ID              string             `db:"id" json:"id"`
	UserID          string             `db:"user_id" json:"user_id"`
	Role            UserRole           `db:"role" json:"role"`
	Status          VerificationStatus `db:"status" json:"status"`
	RejectionReason *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy      *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
	Files           []VerificationFile `db:"-" json:"files"`
}

// VerificationFile is an uploaded supporting document.
type VerificationFile struct {
	ID             string    `db:"id" json:"id"`
	VerificationID string    `db:"verification_id" json:"-"`
	FileName       string    `db:"file_name" json:"file_name"`
	StoragePath    string    `db:"storage_path" json:"-"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt     time.Time `db:"uploaded_at" json:"uploaded_at"`
	DownloadURL    string    `db:"-" json:"download_url,omitempty"`
}

// VerificationFilter narrows the admin verification queue.
type VerificationFilter struct {
	Status VerificationStatus
	Role   UserRole
}

// ReviewVerificationRequest is the admin decision payload.
type ReviewVerificationRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"rejection_reason" validate:"required_if=Action reject,max=1000"`
}
