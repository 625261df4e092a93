package auth

import (
	"errors"
	"strings"
)

const (
	SchemeBearer = "Bearer"
	SchemeAPIKey = "ApiKey"
)

var (
	ErrMissingHeader = errors.New("Authorization header is missing")
	ErrInvalidScheme = errors.New("Invalid authorization type")
	ErrMissingToken  = errors.New("Access token is missing")
)

// Credentials is a parsed Authorization header.
//
// Bearer form: "Bearer <accessToken> [<companyId>] [<resellerCompanyId>]".
// API key form: "ApiKey <key>".
type Credentials struct {
	Scheme string
	APIKey string

	AccessToken       string
	CompanyID         string
	ResellerCompanyID string
}

func (c Credentials) IsAPIKey() bool { return c.Scheme == SchemeAPIKey }

// ParseAuthorization splits the positional Authorization header.
func ParseAuthorization(raw string) (Credentials, error) {
	if strings.TrimSpace(raw) == "" {
		return Credentials{}, ErrMissingHeader
	}
	if strings.HasPrefix(raw, SchemeAPIKey+" ") {
		return Credentials{Scheme: SchemeAPIKey, APIKey: strings.TrimSpace(strings.TrimPrefix(raw, SchemeAPIKey))}, nil
	}

	fields := strings.Fields(raw)
	if fields[0] != SchemeBearer {
		return Credentials{}, ErrInvalidScheme
	}

	c := Credentials{Scheme: SchemeBearer}
	for i, f := range fields[1:] {
		switch i {
		case 0:
			c.AccessToken = f
		case 1:
			c.CompanyID = f
		case 2:
			c.ResellerCompanyID = f
		}
	}
	if c.AccessToken == "" {
		return Credentials{}, ErrMissingToken
	}
	return c, nil
}
