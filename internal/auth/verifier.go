package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type VerifierConfig struct {
	Region     string
	UserPoolID string
	// ClientID, when set, must match the client_id of access tokens.
	ClientID string
	Leeway   time.Duration
}

// IssuerURL is the issuer of tokens minted by the user pool.
func IssuerURL(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// JWKSURL is where the user pool publishes its signing keys.
func JWKSURL(issuer string) string {
	return issuer + "/.well-known/jwks.json"
}

// Verifier checks RS256 signatures against a key set and validates expiry and
// issuer. It never retries; any failure is ErrInvalidToken.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	clientID string
	leeway   time.Duration
	now      func() time.Time
}

func NewVerifier(kf jwt.Keyfunc, cfg VerifierConfig) *Verifier {
	v := &Verifier{
		keyfunc:  kf,
		clientID: cfg.ClientID,
		leeway:   cfg.Leeway,
		now:      time.Now,
	}
	if cfg.Region != "" && cfg.UserPoolID != "" {
		v.issuer = IssuerURL(cfg.Region, cfg.UserPoolID)
	}
	if v.leeway <= 0 {
		v.leeway = 30 * time.Second
	}
	return v
}

// NewJWKSVerifier builds a Verifier backed by the user pool's remote key set.
// Keys are cached by kid and refreshed in the background until ctx is done.
func NewJWKSVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.Region == "" || cfg.UserPoolID == "" {
		return nil, errors.New("region and user pool id are required")
	}
	k, err := keyfunc.NewDefaultCtx(ctx, []string{JWKSURL(IssuerURL(cfg.Region, cfg.UserPoolID))})
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}
	return NewVerifier(k.Keyfunc, cfg), nil
}

func (v *Verifier) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, v.keyfunc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if v.clientID != "" && claims.TokenUse == TokenUseAccess && claims.ClientID != v.clientID {
		return Claims{}, fmt.Errorf("%w: client_id mismatch", ErrInvalidToken)
	}
	return claims, nil
}
