package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the user-pool client this service calls.
type CognitoAPI interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	CreateIdentityProvider(ctx context.Context, in *cip.CreateIdentityProviderInput, optFns ...func(*cip.Options)) (*cip.CreateIdentityProviderOutput, error)
	UpdateIdentityProvider(ctx context.Context, in *cip.UpdateIdentityProviderInput, optFns ...func(*cip.Options)) (*cip.UpdateIdentityProviderOutput, error)
	DeleteIdentityProvider(ctx context.Context, in *cip.DeleteIdentityProviderInput, optFns ...func(*cip.Options)) (*cip.DeleteIdentityProviderOutput, error)
	DescribeUserPoolClient(ctx context.Context, in *cip.DescribeUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.DescribeUserPoolClientOutput, error)
	UpdateUserPoolClient(ctx context.Context, in *cip.UpdateUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.UpdateUserPoolClientOutput, error)
}

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	UserPoolID   string
	ClientID     string
	ClientSecret string

	// Hosted UI.
	Domain       string
	DomainRegion string
	CallbackURL  string
	// HostedUIURL overrides the computed hosted UI base URL.
	HostedUIURL string

	HTTPTimeout time.Duration
}

// HostedUIBase is the hosted UI origin, e.g.
// https://acme.auth.eu-west-1.amazoncognito.com.
func (c Config) HostedUIBase() string {
	if c.HostedUIURL != "" {
		return strings.TrimRight(c.HostedUIURL, "/")
	}
	return fmt.Sprintf("https://%s.auth.%s.amazoncognito.com", c.Domain, c.DomainRegion)
}

var ErrUserNotFound = errors.New("identity: user not found")

// Cognito is the gateway to the managed identity provider.
type Cognito struct {
	api  CognitoAPI
	cfg  Config
	http *http.Client
}

func NewCognito(api CognitoAPI, cfg Config) *Cognito {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Cognito{api: api, cfg: cfg, http: &http.Client{Timeout: cfg.HTTPTimeout}}
}

// NewCognitoFromConfig builds the AWS client. Static credentials are used when
// provided, otherwise the default chain applies.
func NewCognitoFromConfig(ctx context.Context, cfg Config) (*Cognito, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewCognito(cip.NewFromConfig(awsCfg), cfg), nil
}

// SecretHash is base64(HMAC-SHA256(clientSecret, username+clientID)).
func SecretHash(clientSecret, clientID, username string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Cognito) secretHash(username string) *string {
	return aws.String(SecretHash(c.cfg.ClientSecret, c.cfg.ClientID, username))
}

var filterEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func filterEq(attr, value string) string {
	return fmt.Sprintf(`%s = "%s"`, attr, filterEscaper.Replace(value))
}

type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	CompanyID   string
}

// SignUp registers the user and returns the identity-provider subject.
func (c *Cognito) SignUp(ctx context.Context, in SignUpInput) (string, error) {
	out, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:   aws.String(c.cfg.ClientID),
		Username:   aws.String(in.Email),
		Password:   aws.String(in.Password),
		SecretHash: c.secretHash(in.Email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("given_name"), Value: aws.String(in.FirstName)},
			{Name: aws.String("family_name"), Value: aws.String(in.LastName)},
			{Name: aws.String("custom:company"), Value: aws.String(in.CompanyName)},
			{Name: aws.String("custom:companyId"), Value: aws.String(in.CompanyID)},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UserSub), nil
}

func (c *Cognito) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.cfg.ClientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       c.secretHash(email),
	})
	return err
}

// CodeDelivery describes where a confirmation code was sent.
type CodeDelivery struct {
	Destination    string `json:"destination,omitempty"`
	DeliveryMedium string `json:"deliveryMedium,omitempty"`
	AttributeName  string `json:"attributeName,omitempty"`
}

func (c *Cognito) ResendConfirmationCode(ctx context.Context, email string) (CodeDelivery, error) {
	out, err := c.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(c.cfg.ClientID),
		Username:   aws.String(email),
		SecretHash: c.secretHash(email),
	})
	if err != nil {
		return CodeDelivery{}, err
	}
	var d CodeDelivery
	if out.CodeDeliveryDetails != nil {
		d.Destination = aws.ToString(out.CodeDeliveryDetails.Destination)
		d.DeliveryMedium = string(out.CodeDeliveryDetails.DeliveryMedium)
		d.AttributeName = aws.ToString(out.CodeDeliveryDetails.AttributeName)
	}
	return d, nil
}

// AuthResult is either a token set or a pending challenge.
type AuthResult struct {
	AccessToken         string
	RefreshToken        string
	IDToken             string
	ExpiresIn           int32
	ChallengeName       string
	ChallengeParameters map[string]string
	Session             string
}

func authResult(res *types.AuthenticationResultType, challenge types.ChallengeNameType, params map[string]string, session *string) AuthResult {
	out := AuthResult{
		ChallengeName:       string(challenge),
		ChallengeParameters: params,
		Session:             aws.ToString(session),
	}
	if res != nil {
		out.AccessToken = aws.ToString(res.AccessToken)
		out.RefreshToken = aws.ToString(res.RefreshToken)
		out.IDToken = aws.ToString(res.IdToken)
		out.ExpiresIn = res.ExpiresIn
	}
	return out
}

// SignIn runs the USER_PASSWORD_AUTH flow.
func (c *Cognito) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(c.cfg.ClientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME":    email,
			"PASSWORD":    password,
			"SECRET_HASH": SecretHash(c.cfg.ClientSecret, c.cfg.ClientID, email),
		},
	})
	if err != nil {
		return AuthResult{}, err
	}
	return authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session), nil
}

// RespondToChallenge answers an auth challenge (MFA, new password). The
// secret hash is derived from responses["USERNAME"].
func (c *Cognito) RespondToChallenge(ctx context.Context, session, challengeName string, responses map[string]string) (AuthResult, error) {
	merged := make(map[string]string, len(responses)+1)
	for k, v := range responses {
		merged[k] = v
	}
	merged["SECRET_HASH"] = SecretHash(c.cfg.ClientSecret, c.cfg.ClientID, responses["USERNAME"])

	out, err := c.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ClientId:           aws.String(c.cfg.ClientID),
		ChallengeName:      types.ChallengeNameType(challengeName),
		ChallengeResponses: merged,
		Session:            aws.String(session),
	})
	if err != nil {
		return AuthResult{}, err
	}
	return authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session), nil
}

func (c *Cognito) findUser(ctx context.Context, filter string) (types.UserType, error) {
	out, err := c.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(c.cfg.UserPoolID),
		Filter:     aws.String(filter),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return types.UserType{}, err
	}
	if len(out.Users) == 0 {
		return types.UserType{}, ErrUserNotFound
	}
	return out.Users[0], nil
}

// UserStatus returns the pool status (CONFIRMED, UNCONFIRMED, ...) of the
// user registered with email.
func (c *Cognito) UserStatus(ctx context.Context, email string) (string, error) {
	u, err := c.findUser(ctx, filterEq("email", email))
	if err != nil {
		return "", err
	}
	return string(u.UserStatus), nil
}

// EmailForSubject resolves a token subject to the user's email attribute.
func (c *Cognito) EmailForSubject(ctx context.Context, sub string) (string, error) {
	u, err := c.findUser(ctx, filterEq("sub", sub))
	if err != nil {
		return "", err
	}
	for _, a := range u.Attributes {
		if aws.ToString(a.Name) == "email" {
			return aws.ToString(a.Value), nil
		}
	}
	return "", ErrUserNotFound
}

// MFAEnabled reports whether the token's user prefers SMS or TOTP MFA.
func (c *Cognito) MFAEnabled(ctx context.Context, accessToken string) (bool, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return false, err
	}
	switch aws.ToString(out.PreferredMfaSetting) {
	case "SMS_MFA", "SOFTWARE_TOKEN_MFA":
		return true, nil
	default:
		return false, nil
	}
}

// SAML provider details keys.
const (
	DetailMetadataURL  = "MetadataURL"
	DetailMetadataFile = "MetadataFile"
)

func (c *Cognito) CreateSAMLProvider(ctx context.Context, name string, details map[string]string) error {
	_, err := c.api.CreateIdentityProvider(ctx, &cip.CreateIdentityProviderInput{
		UserPoolId:       aws.String(c.cfg.UserPoolID),
		ProviderName:     aws.String(name),
		ProviderType:     types.IdentityProviderTypeTypeSaml,
		ProviderDetails:  details,
		AttributeMapping: map[string]string{"email": "email"},
	})
	return err
}

func (c *Cognito) UpdateSAMLProvider(ctx context.Context, name string, details map[string]string) error {
	_, err := c.api.UpdateIdentityProvider(ctx, &cip.UpdateIdentityProviderInput{
		UserPoolId:      aws.String(c.cfg.UserPoolID),
		ProviderName:    aws.String(name),
		ProviderDetails: details,
	})
	return err
}

func (c *Cognito) DeleteSAMLProvider(ctx context.Context, name string) error {
	_, err := c.api.DeleteIdentityProvider(ctx, &cip.DeleteIdentityProviderInput{
		UserPoolId:   aws.String(c.cfg.UserPoolID),
		ProviderName: aws.String(name),
	})
	return err
}

// EnableProviderOnClient adds name to the app client's supported identity
// providers, carrying over the client's existing OAuth settings.
func (c *Cognito) EnableProviderOnClient(ctx context.Context, name string) error {
	desc, err := c.api.DescribeUserPoolClient(ctx, &cip.DescribeUserPoolClientInput{
		UserPoolId: aws.String(c.cfg.UserPoolID),
		ClientId:   aws.String(c.cfg.ClientID),
	})
	if err != nil {
		return fmt.Errorf("describe app client: %w", err)
	}
	cur := desc.UserPoolClient
	if cur == nil {
		return errors.New("describe app client: empty response")
	}

	providers := append([]string(nil), cur.SupportedIdentityProviders...)
	if len(providers) == 0 {
		providers = []string{"COGNITO"}
	}
	found := false
	for _, p := range providers {
		if p == name {
			found = true
			break
		}
	}
	if !found {
		providers = append(providers, name)
	}

	_, err = c.api.UpdateUserPoolClient(ctx, &cip.UpdateUserPoolClientInput{
		UserPoolId:                      aws.String(c.cfg.UserPoolID),
		ClientId:                        aws.String(c.cfg.ClientID),
		SupportedIdentityProviders:      providers,
		CallbackURLs:                    cur.CallbackURLs,
		LogoutURLs:                      cur.LogoutURLs,
		AllowedOAuthFlows:               cur.AllowedOAuthFlows,
		AllowedOAuthScopes:              cur.AllowedOAuthScopes,
		AllowedOAuthFlowsUserPoolClient: aws.ToBool(cur.AllowedOAuthFlowsUserPoolClient),
		ExplicitAuthFlows:               cur.ExplicitAuthFlows,
		PreventUserExistenceErrors:      cur.PreventUserExistenceErrors,
		EnableTokenRevocation:           cur.EnableTokenRevocation,
	})
	if err != nil {
		return fmt.Errorf("update app client: %w", err)
	}
	return nil
}
