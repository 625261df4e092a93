package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/session"
)

type ctxKey int

const ctxPrincipal ctxKey = iota

const ginPrincipalKey = "principal"

func WithPrincipal(ctx context.Context, p session.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFrom(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(session.Principal)
	return p, ok
}

// FromGin returns the principal stored by RequireSession.
func FromGin(c *gin.Context) (session.Principal, bool) {
	if v, ok := c.Get(ginPrincipalKey); ok {
		if p, ok := v.(session.Principal); ok {
			return p, true
		}
	}
	return PrincipalFrom(c.Request.Context())
}

// SetPrincipal stores p on both the gin and the request context.
func SetPrincipal(c *gin.Context, p session.Principal) {
	c.Set(ginPrincipalKey, p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}
