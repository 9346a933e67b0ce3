package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"owner role", RoleOwner, true},
		{"mechanic role", RoleMechanic, true},
		{"viewer role", RoleViewer, true},
		{"invalid role", "admin", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestRole_HasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		action   string
		expected bool
	}{
		// Owner can do everything
		{"owner can manage vehicles", RoleOwner, PermManageVehicles, true},
		{"owner can log maintenance", RoleOwner, PermLogMaintenance, true},
		{"owner can view vehicles", RoleOwner, PermViewVehicles, true},

		// Mechanic works on vehicles but does not change the fleet
		{"mechanic can view vehicles", RoleMechanic, PermViewVehicles, true},
		{"mechanic can drive vehicles", RoleMechanic, PermDriveVehicles, true},
		{"mechanic can log maintenance", RoleMechanic, PermLogMaintenance, true},
		{"mechanic cannot manage vehicles", RoleMechanic, PermManageVehicles, false},

		// Viewer is read-only
		{"viewer can view vehicles", RoleViewer, PermViewVehicles, true},
		{"viewer cannot drive vehicles", RoleViewer, PermDriveVehicles, false},
		{"viewer cannot log maintenance", RoleViewer, PermLogMaintenance, false},
		{"unknown role has no permissions", Role("guest"), PermViewVehicles, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.role.HasPermission(tt.action)
			if result != tt.expected {
				t.Errorf("Role %s HasPermission(%s) = %v, want %v", tt.role, tt.action, result, tt.expected)
			}
		})
	}
}
