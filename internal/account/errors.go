package account

import "errors"

var (
	ErrUserNotFound       = errors.New("User not found")
	ErrInvalidCredentials = errors.New("Incorrect username or password.")
	ErrAccountInactive    = errors.New("Your account doesn't seem to be active!")
	ErrAlreadyConfirmed   = errors.New("User account is already confirmed. Please login.")
	ErrNoActiveSAML       = errors.New("No active SAML configuration found!")
	ErrCodeMissing        = errors.New("Authorization code is missing!")
	ErrCodeExchange       = errors.New("Failed to exchange code for tokens")
)

// ProviderError is a rejection by the identity provider, carrying the text
// shown to the user.
type ProviderError struct {
	Message string
	// Unauthorized marks credential failures (401) as opposed to bad input (400).
	Unauthorized bool
	Err          error
}

func (e *ProviderError) Error() string { return e.Message }
func (e *ProviderError) Unwrap() error { return e.Err }
