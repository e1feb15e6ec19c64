package models

// Actor is the authenticated principal performing an operation.
// Permission checks consume this instead of raw role strings.
type Actor interface {
	ActorID() string
	ActorRole() UserRole
	ActorVerification() VerificationStatus
}

// IsVerifiedInstructor reports whether the actor may apply to job postings.
func IsVerifiedInstructor(a Actor) bool {
	return a != nil && a.ActorRole() == RoleInstructor && a.ActorVerification() == VerificationApproved
}

// IsVerifiedAcademy reports whether the actor may publish job postings.
func IsVerifiedAcademy(a Actor) bool {
	return a != nil && a.ActorRole() == RoleAcademy && a.ActorVerification() == VerificationApproved
}
