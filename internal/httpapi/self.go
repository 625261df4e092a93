package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/auth"
	"tenant-admin/internal/session"
	"tenant-admin/pkg/logger"
)

type selfResponse struct {
	session.Principal
	MFAEnabled bool `json:"mfaEnabled"`
}

// Self returns the resolved principal. MFA status is looked up for password
// users only; lookup failures read as disabled.
func (h Handlers) Self(c *gin.Context) {
	p, ok := auth.FromGin(c)
	if !ok {
		fail(c, session.ErrSessionInvalid)
		return
	}

	out := selfResponse{Principal: p}
	if !p.IsSAML && !p.IsServiceAccount() && h.MFA != nil {
		creds, err := auth.ParseAuthorization(c.GetHeader("Authorization"))
		if err == nil && !creds.IsAPIKey() {
			enabled, err := h.MFA.MFAEnabled(c.Request.Context(), creds.AccessToken)
			if err != nil {
				logger.FromGin(c).Warn("mfa status lookup failed", slog.Any("err", err))
			}
			out.MFAEnabled = enabled
		}
	}
	respond(c, http.StatusOK, out, "")
}
