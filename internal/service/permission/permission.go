// Package permission decides whether a Discord identity is a bot administrator.
package permission

// Identity is the acting user with the guild roles they hold.
type Identity struct {
	UserID  uint64
	RoleIDs []uint64
}

// Checker applies the admin policy: listed user ids, or holders of the admin
// role when one is configured.
type Checker struct {
	users map[uint64]struct{}
	role  uint64
}

// NewChecker builds a checker. adminRole 0 disables role-based access. User id
// 0 is the "nobody" placeholder and is never an admin.
func NewChecker(adminUsers []uint64, adminRole uint64) *Checker {
	users := make(map[uint64]struct{}, len(adminUsers))
	for _, id := range adminUsers {
		if id == 0 {
			continue
		}
		users[id] = struct{}{}
	}
	return &Checker{users: users, role: adminRole}
}

// IsAdmin reports whether id may use administrator commands. An identity
// without a user id is always refused.
func (c *Checker) IsAdmin(id Identity) bool {
	if id.UserID == 0 {
		return false
	}
	if _, ok := c.users[id.UserID]; ok {
		return true
	}
	if c.role == 0 {
		return false
	}
	for _, r := range id.RoleIDs {
		if r == c.role {
			return true
		}
	}
	return false
}
