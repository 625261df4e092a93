package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/session"
	"tenant-admin/internal/tenant"
	"tenant-admin/pkg/logger"
)

const authorizationHeader = "Authorization"

// companyIDHeader scopes API-key callers.
const companyIDHeader = "companyid"

// Outcomes reported to the Observer.
const (
	OutcomeResolved       = "resolved"
	OutcomeServiceAccount = "service_account"
	OutcomeBadCredentials = "bad_credentials"
	OutcomeInvalidToken   = "invalid_token"
	OutcomeForbidden      = "forbidden"
	OutcomeRejected       = "rejected"
	OutcomeError          = "error"
)

type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// EmailLookup finds the email of a federated user by token subject.
type EmailLookup interface {
	EmailForSubject(ctx context.Context, sub string) (string, error)
}

type SessionResolver interface {
	Resolve(ctx context.Context, req session.Request) (session.Principal, error)
}

type Observer interface {
	ObserveAuth(outcome string)
}

type MiddlewareConfig struct {
	// ServiceAPIKey enables "ApiKey <key>" callers when non-empty.
	ServiceAPIKey string
}

type Middleware struct {
	verifier TokenVerifier
	emails   EmailLookup
	resolver SessionResolver
	cfg      MiddlewareConfig
	obs      Observer
}

func NewMiddleware(v TokenVerifier, emails EmailLookup, r SessionResolver, cfg MiddlewareConfig, obs Observer) *Middleware {
	return &Middleware{verifier: v, emails: emails, resolver: r, cfg: cfg, obs: obs}
}

func (m *Middleware) observe(outcome string) {
	if m.obs != nil {
		m.obs.ObserveAuth(outcome)
	}
}

// RequireSession authenticates the request and attaches the resolved
// principal. It does not perform role checks; those belong to internal/rbac.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		creds, err := ParseAuthorization(c.GetHeader(authorizationHeader))
		if err != nil {
			m.observe(OutcomeBadCredentials)
			unauthorized(c, err.Error())
			return
		}

		if creds.IsAPIKey() {
			if !m.validAPIKey(creds.APIKey) {
				m.observe(OutcomeBadCredentials)
				unauthorized(c, "Invalid API key")
				return
			}
			m.observe(OutcomeServiceAccount)
			m.attach(c, log, session.NewServiceAccount(c.GetHeader(companyIDHeader)))
			c.Next()
			return
		}

		claims, err := m.verifier.Verify(creds.AccessToken)
		if err != nil {
			m.observe(OutcomeInvalidToken)
			log.Debug("token rejected", slog.Any("err", err))
			unauthorized(c, "Invalid token")
			return
		}

		req := session.Request{
			Lookup:            tenant.UserLookup{ID: claims.Subject},
			CompanyID:         creds.CompanyID,
			ResellerCompanyID: creds.ResellerCompanyID,
		}
		if claims.Federated() {
			email, err := m.emails.EmailForSubject(c.Request.Context(), claims.Subject)
			if err != nil {
				m.observe(OutcomeError)
				log.Warn("federated email lookup failed", slog.Any("err", err))
				unauthorized(c, "Failed to validate session. Please try again.")
				return
			}
			req.Lookup = tenant.UserLookup{Email: email}
			req.SAML = true
		}

		p, err := m.resolver.Resolve(c.Request.Context(), req)
		if err != nil {
			m.reject(c, log, err)
			return
		}

		m.observe(OutcomeResolved)
		m.attach(c, log, p)
		c.Next()
	}
}

func (m *Middleware) validAPIKey(key string) bool {
	if m.cfg.ServiceAPIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.cfg.ServiceAPIKey)) == 1
}

func (m *Middleware) attach(c *gin.Context, log *slog.Logger, p session.Principal) {
	reqLog := log.With("user_id", p.ID, "company_id", p.Company.ID)
	logger.SetGin(c, reqLog)
	SetPrincipal(c, p)
}

func (m *Middleware) reject(c *gin.Context, log *slog.Logger, err error) {
	msg := session.Message(err)
	switch {
	case errors.Is(err, session.ErrForbidden):
		m.observe(OutcomeForbidden)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "msg": msg})
	case msg != "":
		m.observe(OutcomeRejected)
		unauthorized(c, msg)
	default:
		m.observe(OutcomeError)
		log.Error("session resolution failed", slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
}
