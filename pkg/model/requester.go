package model

import "strings"

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "super_admin"
)

// Requester is the authenticated participant issuing a request. Identity is
// established upstream; the engine trusts these fields.
type Requester struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Role     Role   `json:"role" validate:"required,oneof=student faculty staff super_admin"`
	Category string `json:"category,omitempty" validate:"omitempty,max=20"`
}

func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// CanCommit reports whether the role is above the lowest privilege tier.
func (r Requester) CanCommit() bool {
	return r.Role != RoleStudent && r.Role != ""
}

// CategoryCode returns the explicit category, falling back to the first
// letter of the email local part (e.g. "p.smith@uni" -> "P").
func (r Requester) CategoryCode() string {
	if r.Category != "" {
		return strings.ToUpper(r.Category)
	}
	local, _, _ := strings.Cut(r.Email, "@")
	if local == "" {
		return ""
	}
	return strings.ToUpper(local[:1])
}
