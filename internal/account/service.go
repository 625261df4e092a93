package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenant-admin/internal/auth"
	"tenant-admin/internal/identity"
	"tenant-admin/internal/tenant"
	"tenant-admin/pkg/logger"
)

// IdentityProvider is the part of *identity.Cognito the auth flows use.
type IdentityProvider interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (string, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendConfirmationCode(ctx context.Context, email string) (identity.CodeDelivery, error)
	SignIn(ctx context.Context, email, password string) (identity.AuthResult, error)
	RespondToChallenge(ctx context.Context, session, challengeName string, responses map[string]string) (identity.AuthResult, error)
	UserStatus(ctx context.Context, email string) (string, error)
	EmailForSubject(ctx context.Context, sub string) (string, error)
	HostedLoginURL(provider string) string
	ExchangeCode(ctx context.Context, code string) (identity.TokenSet, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// SAMLConfigs answers which companies sign in through SAML.
type SAMLConfigs interface {
	Configured(ctx context.Context, companyID string) (bool, error)
	ActiveProvider(ctx context.Context, companyID string) (string, error)
}

type Auditor interface {
	RecordSignUp(ctx context.Context, companyID, userID, ip string)
}

type Service struct {
	idp      IdentityProvider
	dir      Directory
	saml     SAMLConfigs
	verifier TokenVerifier
	audit    Auditor

	clock func() time.Time
	newID func() string
}

func NewService(idp IdentityProvider, dir Directory, saml SAMLConfigs, verifier TokenVerifier, audit Auditor) *Service {
	return &Service{
		idp:      idp,
		dir:      dir,
		saml:     saml,
		verifier: verifier,
		audit:    audit,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

type SignUpRequest struct {
	FirstName      string
	LastName       string
	Email          string
	Password       string
	CompanyName    string
	CompanyAddress string
}

type SignUpResult struct {
	UserSub              string                 `json:"userSub,omitempty"`
	CompanyID            string                 `json:"companyId,omitempty"`
	ConfirmationCodeSent bool                   `json:"confirmationCodeSent,omitempty"`
	CodeDelivery         *identity.CodeDelivery `json:"codeDeliveryDetails,omitempty"`
}

// Created reports whether a new account was registered, as opposed to a
// code being resent for a pending one.
func (r SignUpResult) Created() bool { return r.UserSub != "" }

func providerErr(err error, fallback string) error {
	return &ProviderError{Message: identity.FriendlyMessage(err, fallback), Err: err}
}

// SignUp registers the user with the identity provider and creates the
// company, user and Administrator membership locally.
//
// An email already registered but unconfirmed gets a fresh code instead.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest, ip string) (SignUpResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	companyID := s.newID()

	sub, err := s.idp.SignUp(ctx, identity.SignUpInput{
		Email:       email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		CompanyID:   companyID,
	})
	if err != nil {
		if identity.IsCode(err, identity.CodeUsernameExists) {
			return s.signUpExisting(ctx, email, err)
		}
		return SignUpResult{}, providerErr(err, "Could not sign up. Please try again.")
	}

	now := s.clock().UTC()
	reg := Registration{
		Company: tenant.Company{
			ID:          companyID,
			Name:        req.CompanyName,
			Address:     req.CompanyAddress,
			Enabled:     true,
			AccountType: tenant.AccountStandard,
			CreatedAt:   now,
		},
		User: tenant.User{
			ID:               sub,
			Email:            email,
			FirstName:        req.FirstName,
			LastName:         req.LastName,
			PrimaryCompanyID: companyID,
			CreatedAt:        now,
		},
		MembershipID: s.newID(),
	}
	if err := s.dir.Register(ctx, reg); err != nil {
		logger.From(ctx).Error("sign-up registered with identity provider but not locally",
			slog.String("user_id", sub), slog.Any("err", err))
		return SignUpResult{}, err
	}
	s.audit.RecordSignUp(ctx, companyID, sub, ip)
	return SignUpResult{UserSub: sub, CompanyID: companyID}, nil
}

func (s *Service) signUpExisting(ctx context.Context, email string, signUpErr error) (SignUpResult, error) {
	status, err := s.idp.UserStatus(ctx, email)
	if err != nil {
		return SignUpResult{}, providerErr(signUpErr, "Could not sign up. Please try again.")
	}
	switch status {
	case "CONFIRMED":
		return SignUpResult{}, ErrAlreadyConfirmed
	case "UNCONFIRMED":
		return s.ResendCode(ctx, email)
	default:
		return SignUpResult{}, providerErr(signUpErr, "Could not sign up. Please try again.")
	}
}

func (s *Service) ResendCode(ctx context.Context, email string) (SignUpResult, error) {
	d, err := s.idp.ResendConfirmationCode(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return SignUpResult{}, providerErr(err, "Failed to resend confirmation code")
	}
	return SignUpResult{ConfirmationCodeSent: true, CodeDelivery: &d}, nil
}

// ConfirmSignUp confirms the code with the identity provider and enables the
// local user.
func (s *Service) ConfirmSignUp(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.idp.ConfirmSignUp(ctx, email, code); err != nil {
		return providerErr(err, "Failed to confirm sign-up.")
	}
	err := s.dir.EnableUser(ctx, email, s.clock().UTC())
	if errors.Is(err, ErrUserNotFound) {
		logger.From(ctx).Warn("confirmed user has no local record", slog.String("email", email))
		return nil
	}
	return err
}

// SignInResult is either a token or a pending challenge. ConfirmationCodeSent
// is set instead when the user has not confirmed sign-up yet.
type SignInResult struct {
	AccessToken          string            `json:"accessToken,omitempty"`
	ChallengeName        string            `json:"challengeName,omitempty"`
	ChallengeParameters  map[string]string `json:"challengeParameters,omitempty"`
	Session              string            `json:"session,omitempty"`
	ConfirmationCodeSent bool              `json:"confirmationCodeSent,omitempty"`
}

func signInResult(r identity.AuthResult) SignInResult {
	return SignInResult{
		AccessToken:         r.AccessToken,
		ChallengeName:       r.ChallengeName,
		ChallengeParameters: r.ChallengeParameters,
		Session:             r.Session,
	}
}

func (s *Service) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.dir.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return SignInResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return SignInResult{}, err
	}
	active, err := s.dir.ActiveCompanies(ctx, user.ID)
	if err != nil {
		return SignInResult{}, err
	}
	if len(active) == 0 {
		return SignInResult{}, ErrAccountInactive
	}

	res, err := s.idp.SignIn(ctx, email, password)
	switch {
	case identity.IsCode(err, identity.CodeNotAuthorized):
		return SignInResult{}, &ProviderError{
			Message:      identity.SignInMessage(err, "Unable to sign in"),
			Unauthorized: true,
			Err:          err,
		}
	case identity.IsCode(err, identity.CodeUserNotConfirmed):
		if _, err := s.ResendCode(ctx, email); err != nil {
			return SignInResult{}, err
		}
		return SignInResult{ConfirmationCodeSent: true}, nil
	case err != nil:
		return SignInResult{}, providerErr(err, "Unable to sign in")
	}

	if res.AccessToken != "" {
		if err := s.saveRefreshToken(ctx, user.ID, res.RefreshToken); err != nil {
			return SignInResult{}, err
		}
	}
	return signInResult(res), nil
}

type ChallengeRequest struct {
	Session       string
	ChallengeName string
	Responses     map[string]string
}

// RespondToChallenge answers an MFA or new-password challenge. The refresh
// token is stored when the challenge completes and USERNAME names a known
// user by id or email.
func (s *Service) RespondToChallenge(ctx context.Context, req ChallengeRequest) (SignInResult, error) {
	res, err := s.idp.RespondToChallenge(ctx, req.Session, req.ChallengeName, req.Responses)
	if err != nil {
		return SignInResult{}, providerErr(err, "Failed to respond to MFA challenge")
	}
	if res.AccessToken != "" {
		if user, ok := s.challengeUser(ctx, req.Responses["USERNAME"]); ok {
			if err := s.saveRefreshToken(ctx, user.ID, res.RefreshToken); err != nil {
				return SignInResult{}, err
			}
		}
	}
	return signInResult(res), nil
}

func (s *Service) challengeUser(ctx context.Context, username string) (tenant.User, bool) {
	if username == "" {
		return tenant.User{}, false
	}
	if u, err := s.dir.UserByID(ctx, username); err == nil {
		return u, true
	}
	if u, err := s.dir.UserByEmail(ctx, username); err == nil {
		return u, true
	}
	return tenant.User{}, false
}

func (s *Service) saveRefreshToken(ctx context.Context, userID, token string) error {
	if token == "" {
		return nil
	}
	now := s.clock().UTC()
	return s.dir.SaveRefreshToken(ctx, RefreshToken{
		ID:        s.newID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt: now,
	})
}
