package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"tenant-admin/internal/account"
	"tenant-admin/internal/auth"
	"tenant-admin/internal/identity"
	"tenant-admin/internal/saml"
	"tenant-admin/internal/session"
	"tenant-admin/internal/tenant"
	"tenant-admin/pkg/logger"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Body    any    `json:"body,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// APIError is an explicit business-rule failure with its HTTP status.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string { return e.Message }

func respond(c *gin.Context, status int, body any, msg string) {
	c.JSON(status, envelope{Success: true, Body: body, Msg: msg})
}

// fieldError is one failed binding rule.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// fail writes the error response for err and aborts the chain.
func fail(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{Msg: "Bad Request", Error: out})
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, envelope{Msg: apiErr.Message, Error: scrub(apiErr.Details)})
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", slog.Any("err", err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, envelope{Msg: msg})
}

// statusFor maps domain errors to a status and the message shown to callers.
func statusFor(err error) (int, string) {
	if msg := session.Message(err); msg != "" {
		switch {
		case errors.Is(err, session.ErrForbidden):
			return http.StatusForbidden, msg
		case errors.Is(err, session.ErrCompanyNotFound):
			return http.StatusNotFound, msg
		default:
			return http.StatusUnauthorized, msg
		}
	}

	var perr *account.ProviderError
	if errors.As(err, &perr) {
		if perr.Unauthorized {
			return http.StatusUnauthorized, perr.Message
		}
		return http.StatusBadRequest, perr.Message
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, account.ErrNoActiveSAML),
		errors.Is(err, saml.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrAccountInactive):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, account.ErrAlreadyConfirmed),
		errors.Is(err, account.ErrCodeMissing),
		errors.Is(err, saml.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, account.ErrCodeExchange):
		return http.StatusInternalServerError, account.ErrCodeExchange.Error()
	case errors.Is(err, saml.ErrAlreadyConfigured):
		return http.StatusConflict, err.Error()
	case errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, tenant.ErrDuplicate):
		return http.StatusConflict, "Already exists"
	}

	if identity.ErrorCode(err) != "" {
		return http.StatusBadRequest, identity.FriendlyMessage(err, "Request rejected by the identity provider")
	}
	return http.StatusInternalServerError, "Internal server error"
}

const scrubbedKey = "awsAccountId"

// scrub drops awsAccountId keys from error details at any depth.
func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == scrubbedKey {
				continue
			}
			out[k] = scrub(val)
		}
		return out
	case gin.H:
		return scrub(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = scrub(val)
		}
		return out
	default:
		return v
	}
}

var jsonNames sync.Once

// bindJSON binds the body and reports validation failures by JSON field name.
func bindJSON(c *gin.Context, dst any) error {
	jsonNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
				if name == "-" {
					return ""
				}
				if name == "" {
					return f.Name
				}
				return name
			})
		}
	})
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return err
		}
		return &APIError{Status: http.StatusBadRequest, Message: "Bad Request"}
	}
	return nil
}
