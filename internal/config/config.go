package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the API process reads from the environment.
// Nothing outside this package reads raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	AWS     AWSConfig
	Auth    AuthConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Env  string
	Port int
	// Home is the frontend origin SAML sign-in redirects back to.
	Home string

	AdminCompanyID string
	ServiceAPIKey  string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	UserPoolID   string
	ClientID     string
	ClientSecret string
	Domain       string
	DomainRegion string

	SAMLCallbackURL string
}

type AuthConfig struct {
	// RateLimit is the number of /auth requests allowed per client IP per minute.
	RateLimit     int
	EmailCacheTTL time.Duration
}

type MetricsConfig struct {
	Namespace string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}
	c := Config{}

	c.App.Env = r.str("APP_ENV")
	c.App.Port = r.requiredInt("APP_PORT")
	c.App.Home = strings.TrimRight(r.str("APP_HOME"), "/")
	c.App.AdminCompanyID = r.str("ADMIN_COMPANY_ID")
	c.App.ServiceAPIKey = r.secret("SERVICE_API_KEY")

	c.DB.Host = r.str("DB_HOST")
	c.DB.Port = r.requiredInt("DB_PORT")
	c.DB.User = r.str("DB_USER")
	c.DB.Password = r.secret("DB_PASSWORD")
	c.DB.Name = r.str("DB_NAME")
	c.DB.SSLMode = r.str("DB_SSLMODE")

	c.Redis.Host = r.str("REDIS_HOST")
	c.Redis.Port = r.requiredInt("REDIS_PORT")

	c.AWS.Region = r.str("AWS_REGION")
	c.AWS.AccessKeyID = r.str("AWS_ACCESS_KEY_ID")
	c.AWS.SecretAccessKey = r.secret("AWS_SECRET_ACCESS_KEY")
	c.AWS.UserPoolID = r.str("AWS_COGNITO_USER_POOL_ID")
	c.AWS.ClientID = r.str("AWS_COGNITO_CLIENT_ID")
	c.AWS.ClientSecret = r.secret("AWS_COGNITO_CLIENT_SECRET")
	c.AWS.Domain = r.str("AWS_COGNITO_DOMAIN")
	c.AWS.DomainRegion = r.str("AWS_COGNITO_DOMAIN_REGION")
	c.AWS.SAMLCallbackURL = r.str("SAML_CALLBACK_URL")

	c.Auth.RateLimit = r.optionalInt("AUTH_RATE_LIMIT")
	c.Auth.EmailCacheTTL = r.duration("EMAIL_CACHE_TTL")

	c.Metrics.Namespace = r.str("METRICS_NAMESPACE")

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Home == "" {
		errs = append(errs, errors.New("APP_HOME is required"))
	} else if u, err := url.Parse(c.App.Home); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("APP_HOME must be an absolute URL, got %q", c.App.Home))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !validPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if !validPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.AWS.Region == "" {
		errs = append(errs, errors.New("AWS_REGION is required"))
	}
	if c.AWS.UserPoolID == "" {
		errs = append(errs, errors.New("AWS_COGNITO_USER_POOL_ID is required"))
	}
	if c.AWS.ClientID == "" {
		errs = append(errs, errors.New("AWS_COGNITO_CLIENT_ID is required"))
	}
	if c.AWS.DomainRegion == "" {
		c.AWS.DomainRegion = c.AWS.Region
	}

	if c.IsProduction() {
		if c.App.ServiceAPIKey == "" {
			errs = append(errs, errors.New("SERVICE_API_KEY is required in production"))
		}
		if c.App.AdminCompanyID == "" {
			errs = append(errs, errors.New("ADMIN_COMPANY_ID is required in production"))
		}
	}

	if c.Auth.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_LIMIT must be >= 0, got %d", c.Auth.RateLimit))
	} else if c.Auth.RateLimit == 0 {
		c.Auth.RateLimit = 30
	}
	if c.Auth.EmailCacheTTL <= 0 {
		c.Auth.EmailCacheTTL = 10 * time.Minute
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "tenant_admin"
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN contains the database password; never log it.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// MigrateURL is the pgx5:// URL golang-migrate expects.
func (c Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key string) string { return strings.TrimSpace(r.getenv(key)) }

// secret keeps surrounding whitespace; it may be significant.
func (r *reader) secret(key string) string { return r.getenv(key) }

func (r *reader) requiredInt(key string) int {
	if r.str(key) == "" {
		r.errs = append(r.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	return r.optionalInt(key)
}

func (r *reader) optionalInt(key string) int {
	v := r.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func (r *reader) duration(key string) time.Duration {
	v := r.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return 0
	}
	return d
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}
