package models

import "time"

// Role represents what an operator may do with the garage.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleMechanic Role = "mechanic"
	RoleViewer   Role = "viewer"
)

// Permissions checked by the API.
const (
	PermViewVehicles   = "view_vehicles"
	PermManageVehicles = "manage_vehicles"
	PermDriveVehicles  = "drive_vehicles"
	PermLogMaintenance = "log_maintenance"
)

// Operator is a person allowed to use the garage API.
type Operator struct {
	Username     string     `json:"username" yaml:"username"`
	PasswordHash string     `json:"-" yaml:"password_hash"`
	Role         Role       `json:"role" yaml:"role"`
	LastLogin    *time.Time `json:"last_login,omitempty" yaml:"-"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Operator  Operator  `json:"operator"`
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleOwner, RoleMechanic, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission reports whether the role grants action.
func (r Role) HasPermission(action string) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleMechanic:
		return action == PermViewVehicles || action == PermDriveVehicles || action == PermLogMaintenance
	case RoleViewer:
		return action == PermViewVehicles
	default:
		return false
	}
}
