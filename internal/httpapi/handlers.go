package httpapi

import (
	"context"

	"tenant-admin/internal/account"
	"tenant-admin/internal/audit"
	"tenant-admin/internal/saml"
)

// AccountService is the part of *account.Service the auth routes use.
type AccountService interface {
	SignUp(ctx context.Context, req account.SignUpRequest, ip string) (account.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) (account.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (account.SignInResult, error)
	RespondToChallenge(ctx context.Context, req account.ChallengeRequest) (account.SignInResult, error)
	CheckSignInOptions(ctx context.Context, email string) (bool, error)
	SAMLSignInURL(ctx context.Context, email string) (string, error)
	CompleteSAMLSignIn(ctx context.Context, code string) (string, error)
}

// SAMLService is the part of *saml.Service the configuration routes use.
type SAMLService interface {
	Get(ctx context.Context, companyID string) (saml.Configuration, error)
	Create(ctx context.Context, req saml.CreateRequest) (saml.Configuration, error)
	Update(ctx context.Context, req saml.UpdateRequest) (saml.Configuration, error)
	Delete(ctx context.Context, companyID string) (saml.Configuration, error)
}

type SAMLAuditor interface {
	RecordSAML(ctx context.Context, typ audit.EventType, companyID string, actor audit.Actor, configID, providerName string)
}

type MFAChecker interface {
	MFAEnabled(ctx context.Context, accessToken string) (bool, error)
}

// Handlers groups HTTP handlers for dependency injection. Handlers parse and
// validate input, call a service and write the envelope.
type Handlers struct {
	Accounts AccountService
	SAML     SAMLService
	Audit    SAMLAuditor
	MFA      MFAChecker

	// AppHome is the frontend origin SAML sign-in redirects back to.
	AppHome string
}
