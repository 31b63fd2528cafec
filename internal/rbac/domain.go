package rbac

import "github.com/tradyx/backoffice/internal/shared"

// userPermissions are granted to the non-admin role. Admins hold every
// permission.
var userPermissions = []string{
	shared.PermSalesView,
	shared.PermSalesCreate,
	shared.PermSalesClose,
	shared.PermInventoryView,
	shared.PermCashView,
	shared.PermCashCreate,
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role string) []string {
	switch role {
	case shared.RoleAdmin:
		return shared.AllPermissions()
	case shared.RoleUser:
		out := make([]string, len(userPermissions))
		copy(out, userPermissions)
		return out
	default:
		return nil
	}
}

// Can reports whether actor holds perm.
func Can(actor shared.Actor, perm string) bool {
	return hasAnyPermission(PermissionsFor(actor.Role), normalizePermissions([]string{perm}))
}
