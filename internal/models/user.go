package models

import "time"

// UserRole represents the available roles for the RBAC system. The four
// approver roles mirror the approval chain; ADMIN owns the
// administrative surface (workflow patching, deletion, exports).
type UserRole string

const (
	RoleAdmin         UserRole = "ADMIN"
	RoleTechnicalTeam UserRole = "TECHNICAL_TEAM"
	RoleLegalTeam     UserRole = "LEGAL_TEAM"
	RoleClient        UserRole = "CLIENT"
	RoleDealDesk      UserRole = "DEAL_DESK"
)

// ApproverRoles lists every role that may own a workflow step.
var ApproverRoles = []UserRole{RoleTechnicalTeam, RoleLegalTeam, RoleClient, RoleDealDesk}

// IsApprover reports whether the role may act on workflow steps.
func (r UserRole) IsApprover() bool {
	for _, role := range ApproverRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
