package models

import (
	"time"

	"github.com/lib/pq"
)

// InstructorProfile holds public instructor details.
// ContactVisible is only ever switched on.
type InstructorProfile struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Bio            string         `db:"bio" json:"bio"`
	Specialties    pq.StringArray `db:"specialties" json:"specialties"`
	ContactVisible bool           `db:"contact_visible" json:"contact_visible"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// AcademyProfile holds public academy details.
type AcademyProfile struct {
	UserID         string         `db:"user_id" json:"user_id"`
	AcademyName    string         `db:"academy_name" json:"academy_name"`
	Address        string         `db:"address" json:"address"`
	Phone          string         `db:"phone" json:"phone"`
	OperatingHours string         `db:"operating_hours" json:"operating_hours"`
	MainGenres     pq.StringArray `db:"main_genres" json:"main_genres"`
	Description    string         `db:"description" json:"description"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// InstructorPublicView is the instructor page shown to other users.
type InstructorPublicView struct {
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	IsVerified     bool     `json:"is_verified"`
	Bio            string   `json:"bio"`
	Specialties    []string `json:"specialties"`
	ContactVisible bool     `json:"contact_visible"`
}

// UpdateInstructorProfileRequest edits the caller's instructor profile.
type UpdateInstructorProfileRequest struct {
	Bio         *string  `json:"bio" validate:"omitempty,max=500"`
	Specialties []string `json:"specialties" validate:"omitempty,max=20,dive,required,max=30"`
}

// UpdateAcademyProfileRequest edits the caller's academy profile.
type UpdateAcademyProfileRequest struct {
	AcademyName    *string  `json:"academy_name" validate:"omitempty,min=1,max=100"`
	Address        *string  `json:"address" validate:"omitempty,max=200"`
	Phone          *string  `json:"phone" validate:"omitempty,max=20"`
	OperatingHours *string  `json:"operating_hours" validate:"omitempty,max=100"`
	MainGenres     []string `json:"main_genres" validate:"omitempty,max=20,dive,required,max=30"`
	Description    *string  `json:"description" validate:"omitempty,max=1000"`
}
