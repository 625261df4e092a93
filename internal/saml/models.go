package saml

import (
	"errors"
	"time"
)

// Configuration links a company to a SAML identity provider registered with
// the user pool. A company has at most one.
type Configuration struct {
	ID           string    `json:"id"`
	ProviderName string    `json:"providerName"`
	UserID       string    `json:"userId"`
	CompanyID    string    `json:"companyId"`
	IsEnabled    bool      `json:"isEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	ProviderName string
	MetadataURL  string
	MetadataFile string
	UserID       string
	CompanyID    string
}

type UpdateRequest struct {
	CompanyID    string
	MetadataURL  string
	MetadataFile string
}

// MaxProviderNameLen is the exclusive upper bound on provider names, both as
// supplied and as registered.
const MaxProviderNameLen = 32

var (
	ErrNotFound          = errors.New("No SAML configuration found")
	ErrAlreadyConfigured = errors.New("SAML configuration already exists for this company")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// argumentError is a user-facing validation failure that matches
// ErrInvalidArgument.
type argumentError struct{ msg string }

func (e *argumentError) Error() string        { return e.msg }
func (e *argumentError) Is(target error) bool { return target == ErrInvalidArgument }

func invalid(msg string) error { return &argumentError{msg: msg} }

var (
	ErrProviderNameTooLong = invalid("Provider name length must be less than 32 characters.")
	ErrProviderNameEmpty   = invalid("Provider name is required.")
	ErrMetadataRequired    = invalid("Either metadataUrl or metadataX509File must be provided.")
	ErrInvalidMetadataURL  = invalid("Invalid metadata URL provided.")
	ErrInvalidMetadataFile = invalid("Invalid X509 certificate format")
)
