package core

// Role is the authorization tier of a connected identity.
type Role int

const (
	// RoleRegular is an ordinary chat participant.
	RoleRegular Role = iota
	// RoleAdmin is the privileged moderator seat.
	RoleAdmin
)

// String returns the wire representation of the role.
func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "regular"
}

// Identity is an authenticated participant. It is created at a successful
// join, bound to exactly one connection, and immutable afterwards.
type Identity struct {
	ID   string
	Name string
	Role Role
}

// RosterEntry is the public view of a connected identity.
type RosterEntry struct {
	ID    string
	Name  string
	Admin bool
}
