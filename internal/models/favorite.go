package models

import "time"

// Favorite is an instructor's bookmark on a job posting.
type Favorite struct {
	ID           string      `db:"id" json:"id"`
	InstructorID string      `db:"instructor_id" json:"-"`
	JobPostingID string      `db:"job_posting_id" json:"job_posting_id"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	JobPosting   *JobPosting `db:"-" json:"job_posting,omitempty"`
}

// ToggleFavoriteRequest adds or removes a bookmark.
type ToggleFavoriteRequest struct {
	JobPostingID string `json:"job_posting_id" validate:"required,uuid"`
}

// ToggleFavoriteResult reports the resulting bookmark state.
type ToggleFavoriteResult struct {
	JobPostingID string `json:"job_posting_id"`
	IsFavorited  bool   `json:"is_favorited"`
}
