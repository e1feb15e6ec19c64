package models

import "time"

// Review is a rating written after an accepted application.
// Exactly one of InstructorID/AcademyID names the reviewed party.
type Review struct {
	ID            string    `db:"id" json:"id"`
	AuthorID      string    `db:"author_id" json:"author_id"`
	AuthorName    string    `db:"author_name" json:"author_name"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	InstructorID  *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	AcademyID     *string   `db:"academy_id" json:"academy_id,omitempty"`
	Rating        int       `db:"rating" json:"rating"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewSummary aggregates ratings for a reviewed party.
type ReviewSummary struct {
	Reviews            []Review       `json:"reviews"`
	Count              int            `json:"count"`
	AverageRating      *float64       `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution,omitempty"`
}

// CreateReviewRequest is the review payload.
type CreateReviewRequest struct {
	ApplicationID string `json:"application_id" validate:"required,uuid"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Content       string `json:"content" validate:"required,max=2000"`
}

// UpdateReviewRequest edits an existing review.
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Content *string `json:"content" validate:"omitempty,max=2000"`
}
