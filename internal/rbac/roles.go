package rbac

import (
	"tenant-admin/internal/session"
	"tenant-admin/internal/tenant"
)

// IsSuperAdmin reports whether p acts as an administrator of the admin
// company outside a support session. Support sessions are read-only.
func IsSuperAdmin(p session.Principal) bool {
	return p.IsSuperAdmin && p.SuperAdminRole == tenant.RoleAdministrator && !p.IsSupportSession()
}

