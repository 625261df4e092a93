package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRegion = "eu-west-1"
	testPool   = "eu-west-1_pool"
	testClient = "client-123"
)

type signer struct {
	key *rsa.PrivateKey
	kid string
}

func newSigner(t *testing.T) signer {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signer{key: k, kid: "kid-1"}
}

func (s signer) keyfunc(tok *jwt.Token) (any, error) {
	if tok.Header["kid"] != s.kid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return &s.key.PublicKey, nil
}

func (s signer) sign(t *testing.T, c Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = s.kid
	out, err := tok.SignedString(s.key)
	require.NoError(t, err)
	return out
}

func accessClaims(now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    IssuerURL(testRegion, testPool),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenUse: TokenUseAccess,
		ClientID: testClient,
	}
}

func newTestVerifier(s signer, now time.Time) *Verifier {
	v := NewVerifier(s.keyfunc, VerifierConfig{Region: testRegion, UserPoolID: testPool, ClientID: testClient})
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_ValidAccessToken(t *testing.T) {
	s := newSigner(t)
	now := time.Unix(1700000000, 0).UTC()
	c := accessClaims(now)
	c.Groups = []string{"eu-west-1_pool_AcmeSSO"}

	got, err := newTestVerifier(s, now.Add(time.Minute)).Verify(s.sign(t, c))
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
	assert.True(t, got.Federated())
}

func TestVerify_Rejections(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	now := time.Unix(1700000000, 0).UTC()

	expired := accessClaims(now)
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))

	wrongIssuer := accessClaims(now)
	wrongIssuer.Issuer = "https://evil.example.com"

	noSubject := accessClaims(now)
	noSubject.Subject = ""

	noExpiry := accessClaims(now)
	noExpiry.ExpiresAt = nil

	wrongClient := accessClaims(now)
	wrongClient.ClientID = "someone-else"

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims(now))
	hs.Header["kid"] = s.kid
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"expired":        s.sign(t, expired),
		"wrong issuer":   s.sign(t, wrongIssuer),
		"no subject":     s.sign(t, noSubject),
		"no expiry":      s.sign(t, noExpiry),
		"wrong client":   s.sign(t, wrongClient),
		"foreign key":    other.sign(t, accessClaims(now)),
		"hmac algorithm": hsToken,
		"garbage":        "not-a-jwt",
	}
	v := newTestVerifier(s, now)
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_IDTokenSkipsClientCheck(t *testing.T) {
	s := newSigner(t)
	now := time.Unix(1700000000, 0).UTC()
	c := accessClaims(now)
	c.TokenUse = TokenUseID
	c.ClientID = ""
	c.Audience = jwt.ClaimStrings{testClient}

	_, err := newTestVerifier(s, now).Verify(s.sign(t, c))
	require.NoError(t, err)
}

func TestJWKSURL(t *testing.T) {
	assert.Equal(t,
		"https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_pool/.well-known/jwks.json",
		JWKSURL(IssuerURL(testRegion, testPool)))
}
