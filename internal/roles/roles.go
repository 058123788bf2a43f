package roles

// Role is an organization membership capacity. Roles are ordered:
// Member < Editor < Admin.
type Role string

const (
	RoleMember Role = "member"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

var rank = map[Role]int{
	RoleMember: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// AtLeast reports whether r carries at least the capacity of min.
// Unknown roles rank below Member.
func (r Role) AtLeast(min Role) bool {
	return rank[r] >= rank[min]
}

func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Normalize maps a raw capacity string to a Role, falling back to Member.
func Normalize(s string) Role {
	switch Role(s) {
	case RoleMember, RoleEditor, RoleAdmin:
		return Role(s)
	default:
		return RoleMember
	}
}
