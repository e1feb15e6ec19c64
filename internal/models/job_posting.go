package models

import (
	"time"

	"github.com/lib/pq"
)

// JobPostingStatus is the publication lifecycle of a posting.
type JobPostingStatus string

const (
	JobPostingDraft   JobPostingStatus = "draft"
	JobPostingPending JobPostingStatus = "pending"
	JobPostingActive  JobPostingStatus = "active"
	JobPostingClosed  JobPostingStatus = "closed"
	JobPostingHidden  JobPostingStatus = "hidden"
	JobPostingDeleted JobPostingStatus = "deleted"
)

// SalaryType distinguishes hourly from monthly pay.
type SalaryType string

const (
	SalaryHourly  SalaryType = "hourly"
	SalaryMonthly SalaryType = "monthly"
)

// JobPosting is an academy's open teaching position.
type JobPosting struct {
	ID                      string           `db:"id" json:"id"`
	AcademyID               string           `db:"academy_id" json:"academy_id"`
	AcademyName             string           `db:"academy_name" json:"academy_name,omitempty"`
	Title                   string           `db:"title" json:"title"`
	Genres                  pq.StringArray   `db:"genres" json:"genres"`
	Classes                 string           `db:"classes" json:"classes"`
	PreferredQualifications string           `db:"preferred_qualifications" json:"preferred_qualifications"`
	Description             string           `db:"description" json:"description"`
	Region                  string           `db:"region" json:"region"`
	District                string           `db:"district" json:"district"`
	Address                 string           `db:"address" json:"address"`
	Latitude                *float64         `db:"latitude" json:"latitude,omitempty"`
	Longitude               *float64         `db:"longitude" json:"longitude,omitempty"`
	WorkDays                pq.StringArray   `db:"work_days" json:"work_days"`
	WorkTime                string           `db:"work_time" json:"work_time"`
	SalaryType              SalaryType       `db:"salary_type" json:"salary_type"`
	Salary                  int              `db:"salary" json:"salary"`
	Status                  JobPostingStatus `db:"status" json:"status"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// JobPostingFilter narrows job posting listings.
type JobPostingFilter struct {
	AcademyID string
	Status    []JobPostingStatus
	Region    string
	District  string
	Genres    []string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// JobPostingRequest is the create/update payload for a posting.
type JobPostingRequest struct {
	Title                   string     `json:"title" validate:"required,max=200"`
	Genres                  []string   `json:"genres" validate:"required,min=1,dive,required,max=30"`
	Classes                 string     `json:"classes" validate:"max=200"`
	PreferredQualifications string     `json:"preferred_qualifications"`
	Description             string     `json:"description" validate:"required"`
	Region                  string     `json:"region" validate:"required,oneof=seoul gyeonggi incheon busan daegu daejeon gwangju ulsan sejong gangwon chungbuk chungnam jeonbuk jeonnam gyeongbuk gyeongnam jeju"`
	District                string     `json:"district" validate:"max=50"`
	Address                 string     `json:"address" validate:"required,max=200"`
	Latitude                *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude               *float64   `json:"longitude" validate:"omitempty,longitude"`
	WorkDays                []string   `json:"work_days" validate:"required,min=1,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	WorkTime                string     `json:"work_time" validate:"required,max=100"`
	SalaryType              SalaryType `json:"salary_type" validate:"required,oneof=hourly monthly"`
	Salary                  int        `json:"salary" validate:"required,min=1"`
}

// JobPostingStatusRequest is the admin moderation payload.
type JobPostingStatusRequest struct {
	Status JobPostingStatus `json:"status" validate:"required,oneof=pending active closed hidden deleted"`
}
