package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleInstructor UserRole = "instructor"
	RoleAcademy    UserRole = "academy"
	RoleAdmin      UserRole = "admin"
)

// VerificationStatus tracks identity verification of instructors and academies.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "none"
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// User represents an application user stored in the users table.
type User struct {
	ID                 string             `db:"id" json:"id"`
	Email              string             `db:"email" json:"email"`
	PasswordHash       string             `db:"password_hash" json:"-"`
	Name               string             `db:"name" json:"name"`
	Phone              string             `db:"phone" json:"phone"`
	Role               UserRole           `db:"role" json:"role"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	IsVerified         bool               `db:"is_verified" json:"is_verified"`
	Active             bool               `db:"active" json:"active"`
	LastLogin          *time.Time         `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// ActorID implements Actor.
func (u *User) ActorID() string { return u.ID }

// ActorRole implements Actor.
func (u *User) ActorRole() UserRole { return u.Role }

// ActorVerification implements Actor.
func (u *User) ActorVerification() VerificationStatus { return u.VerificationStatus }

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role               *UserRole
	VerificationStatus *VerificationStatus
	Active             *bool
	Search             string
	SortBy             string
	SortOrder          string
	Page               int
	PageSize           int
}
