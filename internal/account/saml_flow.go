package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tenant-admin/internal/saml"
	"tenant-admin/pkg/logger"
)

// CheckSignInOptions reports whether the user's primary company signs in
// through SAML.
func (s *Service) CheckSignInOptions(ctx context.Context, email string) (bool, error) {
	user, err := s.dir.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, err
	}
	return s.saml.Configured(ctx, user.PrimaryCompanyID)
}

// SAMLSignInURL returns the hosted UI URL that starts SAML sign-in for the
// user's primary company.
func (s *Service) SAMLSignInURL(ctx context.Context, email string) (string, error) {
	user, err := s.dir.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	provider, err := s.saml.ActiveProvider(ctx, user.PrimaryCompanyID)
	if errors.Is(err, saml.ErrNotFound) {
		return "", ErrNoActiveSAML
	}
	if err != nil {
		return "", err
	}
	return s.idp.HostedLoginURL(provider), nil
}

// CompleteSAMLSignIn exchanges the hosted UI authorization code and returns
// the access token to hand to the frontend. A verified token for a user with
// no local record is still returned; session resolution rejects it later.
func (s *Service) CompleteSAMLSignIn(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrCodeMissing
	}
	log := logger.From(ctx)

	tokens, err := s.idp.ExchangeCode(ctx, code)
	if err != nil {
		log.Warn("saml code exchange failed", slog.Any("err", err))
		return "", fmt.Errorf("%w: %v", ErrCodeExchange, err)
	}
	claims, err := s.verifier.Verify(tokens.AccessToken)
	if err != nil {
		return "", err
	}
	email, err := s.idp.EmailForSubject(ctx, claims.Subject)
	if err != nil {
		return "", err
	}

	user, err := s.dir.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		log.Info("saml sign-in for unknown user", slog.String("email", email))
		return tokens.AccessToken, nil
	}
	if err != nil {
		return "", err
	}
	if err := s.saveRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}
