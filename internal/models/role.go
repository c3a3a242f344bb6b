package models

// Role classifies a principal's authority level on the platform.
// Roles come from the remote profile record; any string outside the
// closed set is mapped to RoleUnknown and treated as least-privileged.
type Role string

const (
	RoleNone          Role = ""        // Anonymous session, no role at all
	RoleSuperAdmin    Role = "super_admin"
	RoleAdmin         Role = "admin"
	RoleMentor        Role = "mentor"
	RoleHiringPartner Role = "hiring_partner"
	RoleStudent       Role = "student"
	RoleUnknown       Role = "unknown" // Unrecognized value from the profile store
)

// ParseRole maps a raw role string from the profile store onto the closed
// enum. Unrecognized values become RoleUnknown rather than being trusted
// verbatim, so a mistyped or hostile record can never grant elevated access.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSuperAdmin, RoleAdmin, RoleMentor, RoleHiringPartner, RoleStudent:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// Valid reports whether the role is one of the five recognized values.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleMentor, RoleHiringPartner, RoleStudent:
		return true
	}
	return false
}

// IsAdminTier reports whether the role belongs to the staff/admin tiers.
func (r Role) IsAdminTier() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}
