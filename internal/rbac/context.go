package rbac

import "context"

type permissionsContextKey struct{}

// ContextWithPermissions attaches the resolved permission set to the request context.
func ContextWithPermissions(ctx context.Context, set PermissionSet) context.Context {
	return context.WithValue(ctx, permissionsContextKey{}, set)
}

// PermissionsFromContext returns the permission set resolved earlier in the request.
func PermissionsFromContext(ctx context.Context) (PermissionSet, bool) {
	set, ok := ctx.Value(permissionsContextKey{}).(PermissionSet)
	return set, ok
}
