package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/account"
)

type signUpRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	CompanyName    string `json:"companyName" binding:"required,min=3"`
	CompanyAddress string `json:"companyAddress"`
}

type confirmSignUpRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type challengeRequest struct {
	Session            string            `json:"session" binding:"required"`
	ChallengeName      string            `json:"challengeName" binding:"required"`
	ChallengeResponses map[string]string `json:"challengeResponses" binding:"required"`
}

func (h Handlers) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.Accounts.SignUp(c.Request.Context(), account.SignUpRequest{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
	}, c.ClientIP())
	if err != nil {
		fail(c, err)
		return
	}
	if res.Created() {
		respond(c, http.StatusCreated, res, "User registered successfully")
		return
	}
	respond(c, http.StatusOK, res, "Confirmation code sent")
}

func (h Handlers) ConfirmSignUp(c *gin.Context) {
	var req confirmSignUpRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := h.Accounts.ConfirmSignUp(c.Request.Context(), req.Email, req.Code); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "User confirmed successfully")
}

func (h Handlers) ResendConfirmCode(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.Accounts.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res, "Confirmation code sent")
}

func (h Handlers) SignIn(c *gin.Context) {
	var req signInRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.Accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res, "")
}

func (h Handlers) RespondToChallenge(c *gin.Context) {
	var req challengeRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.Accounts.RespondToChallenge(c.Request.Context(), account.ChallengeRequest{
		Session:       req.Session,
		ChallengeName: req.ChallengeName,
		Responses:     req.ChallengeResponses,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res, "")
}

func (h Handlers) CheckSignInOptions(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	isSAML, err := h.Accounts.CheckSignInOptions(c.Request.Context(), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"isSaml": isSAML}, "")
}

func (h Handlers) SAMLSignIn(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	redirect, err := h.Accounts.SAMLSignInURL(c.Request.Context(), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"redirectUrl": redirect}, "")
}

// SAMLCallback finishes hosted UI sign-in and sends the browser back to the
// frontend with either the access token or an error message.
func (h Handlers) SAMLCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, account.ErrCodeMissing.Error())
		return
	}

	token, err := h.Accounts.CompleteSAMLSignIn(c.Request.Context(), code)
	switch {
	case errors.Is(err, account.ErrCodeExchange):
		fail(c, err)
	case err != nil:
		_, msg := statusFor(err)
		_ = c.Error(err)
		c.Redirect(http.StatusFound, h.callbackURL("error", msg))
	default:
		c.Redirect(http.StatusFound, h.callbackURL("access-token", token))
	}
}

func (h Handlers) callbackURL(key, value string) string {
	return h.AppHome + "/auth/callback?" + url.Values{key: {value}}.Encode()
}
