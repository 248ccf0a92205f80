package shared

// Role is a coarse privilege level gating which actions a user may perform.
type Role string

// Platform roles.
const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// AllRoles lists every platform role.
func AllRoles() []Role {
	return []Role{RoleStudent, RoleFaculty, RoleRecruiter, RoleAdmin}
}

// ReviewerRoles lists roles allowed to review certificates.
func ReviewerRoles() []Role {
	return []Role{RoleFaculty, RoleAdmin}
}
