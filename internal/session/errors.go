package session

import "errors"

var (
	ErrUserNotFound    = errors.New("session: user not found")
	ErrCompanyNotFound = errors.New("session: company not found")
	ErrForbidden       = errors.New("session: forbidden")
	ErrNoCompanyAccess = errors.New("session: no access to company")
	ErrAccountInactive = errors.New("session: account inactive")
	ErrSessionInvalid  = errors.New("session: invalid session")
)

var messages = map[error]string{
	ErrUserNotFound:    "User not found",
	ErrCompanyNotFound: "Company not found",
	ErrForbidden:       "You do not have permission to perform this action",
	ErrNoCompanyAccess: "Not authorized or access denied. Please switch sub account.",
	ErrAccountInactive: "Forbidden. Your account is not active.",
	ErrSessionInvalid:  "Session not valid. Please login again.",
}

// Message returns the user-facing text for a resolution failure, or "" when
// err is not one.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}
