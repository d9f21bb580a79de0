package auth

import "slices"

// Operator role constants.
const (
	RoleViewer    = "viewer"
	RoleOrganizer = "organizer"
)

// AllOperatorRoles returns all valid operator roles.
func AllOperatorRoles() []string {
	return []string{RoleViewer, RoleOrganizer}
}

// WriteRoles returns roles that can change platform state, e.g. assign roles.
func WriteRoles() []string {
	return []string{RoleOrganizer}
}

// ValidRole reports whether role is a known operator role.
func ValidRole(role string) bool {
	return slices.Contains(AllOperatorRoles(), role)
}
