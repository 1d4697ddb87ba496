package shared

// Core back-office permissions.
const (
	PermViewAllUsers = "VIEW_ALL_USERS"

	PermViewAllRoles        = "VIEW_ALL_ROLES"
	PermEditRolePermissions = "EDIT_ROLE_PERMISSIONS"

	PermViewAllPermissions = "VIEW_ALL_PERMISSIONS"
)

// CoreScopes lists all permissions guarding the administrative routes.
func CoreScopes() []string {
	return []string{
		PermViewAllUsers,
		PermViewAllRoles,
		PermEditRolePermissions,
		PermViewAllPermissions,
	}
}
