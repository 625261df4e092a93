package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/auth"
	"tenant-admin/internal/tenant"
)

// RequireCompany enforces that the session resolved an active company.
func RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromGin(c)
		if !ok || p.Company.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "company required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller's role in the active company is
// one of allowed.
// Rules:
// - super administrators bypass the check outside support sessions
// - service accounts are denied unless explicitly allowed
func RequireAnyRole(allowed ...tenant.Role) gin.HandlerFunc {
	allowedSet := make(map[tenant.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := auth.FromGin(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "session required"})
			return
		}

		if IsSuperAdmin(p) {
			c.Next()
			return
		}

		role := p.ActiveRole()
		if _, ok := allowedSet[role]; !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "msg": "You do not have permission to perform this action"})
			return
		}
		c.Next()
	}
}
