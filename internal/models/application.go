package models

import (
	"encoding/json"
	"time"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationReviewing ApplicationStatus = "reviewing"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// Application links an instructor to a job posting.
type Application struct {
	ID              string            `db:"id" json:"id"`
	InstructorID    string            `db:"instructor_id" json:"instructor_id"`
	JobPostingID    string            `db:"job_posting_id" json:"job_posting_id"`
	Status          ApplicationStatus `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail joins an application with posting and instructor data.
type ApplicationDetail struct {
	Application
	JobPostingTitle  string           `db:"job_posting_title" json:"job_posting_title"`
	JobPostingStatus JobPostingStatus `db:"job_posting_status" json:"job_posting_status"`
	AcademyID        string           `db:"academy_id" json:"academy_id"`
	AcademyName      string           `db:"academy_name" json:"academy_name"`
	InstructorName   string           `db:"instructor_name" json:"instructor_name"`
	InstructorPhone  string           `db:"instructor_phone" json:"instructor_phone,omitempty"`
	ContactVisible   bool             `db:"contact_visible" json:"contact_visible"`
	HasReview        bool             `db:"has_review" json:"-"`
	CanReview        bool             `db:"-" json:"can_review"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	InstructorID string
	AcademyID    string
	JobPostingID string
	Status       ApplicationStatus
}

// CreateApplicationRequest is the apply payload.
type CreateApplicationRequest struct {
	JobPostingID string `json:"job_posting_id" validate:"required,uuid"`
}

// RejectApplicationRequest carries an optional rejection reason. Clients send
// it as "reason"; "rejection_reason" is read when "reason" is absent.
type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// UnmarshalJSON accepts both spellings of the reason key.
func (r *RejectApplicationRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Reason          *string `json:"reason"`
		RejectionReason *string `json:"rejection_reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Reason != nil:
		r.Reason = *raw.Reason
	case raw.RejectionReason != nil:
		r.Reason = *raw.RejectionReason
	default:
		r.Reason = ""
	}
	return nil
}

// AcceptApplicationResult is returned after a successful accept.
type AcceptApplicationResult struct {
	Message        string            `json:"message"`
	ApplicationID  string            `json:"application_id"`
	Status         ApplicationStatus `json:"status"`
	ContactVisible bool              `json:"contact_visible"`
}

// RejectApplicationResult is returned after a successful reject.
type RejectApplicationResult struct {
	Message         string            `json:"message"`
	ApplicationID   string            `json:"application_id"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejection_reason"`
}

// CancelApplicationResult is returned after a successful cancel.
type CancelApplicationResult struct {
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
}
