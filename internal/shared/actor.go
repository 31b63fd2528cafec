package shared

// Role names stored on user accounts.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated user on whose behalf an operation runs. It is
// passed explicitly into every core operation.
type Actor struct {
	ID       int64
	Username string
	Role     string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ValidRole reports whether role is a known role name.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
