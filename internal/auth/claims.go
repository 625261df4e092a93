package auth

import "github.com/golang-jwt/jwt/v5"

type TokenUse string

const (
	TokenUseAccess TokenUse = "access"
	TokenUseID     TokenUse = "id"
)

// Claims is the shape of identity-provider access and id tokens.
// Tokens issued to federated (SAML) users carry cognito:groups; their subject
// is not a local user id and the email must be looked up.
type Claims struct {
	jwt.RegisteredClaims

	Groups   []string `json:"cognito:groups,omitempty"`
	TokenUse TokenUse `json:"token_use,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
}

func (c Claims) Federated() bool { return len(c.Groups) > 0 }
