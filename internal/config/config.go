package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultListenAddr      = ":8080"
	defaultSessionTTL      = 24 * time.Hour
	defaultProviderTimeout = 10 * time.Second
	minStateSecretLength   = 32
)

// Config is built once at startup and handed to the components that need it.
type Config struct {
	ListenAddr  string
	DBURL       string
	RedisURL    string
	TLSCertPath string
	TLSKeyPath  string

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	StateSecret      []byte

	AdminToken        string
	AdminUserIDs      []string
	AllowedDomains    []string
	AllowedGitHubOrgs []string

	SessionTTL      time.Duration
	ProviderTimeout time.Duration
	SecureCookies   bool
}

// LoadFromEnv reads FLIGHTPOOL_* variables. A .env file in the working
// directory fills in variables that are not already set.
func LoadFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:        defaultListenAddr,
		DBURL:             os.Getenv("FLIGHTPOOL_DB_URL"),
		RedisURL:          os.Getenv("FLIGHTPOOL_REDIS_URL"),
		TLSCertPath:       os.Getenv("FLIGHTPOOL_TLS_CERT"),
		TLSKeyPath:        os.Getenv("FLIGHTPOOL_TLS_KEY"),
		OIDCIssuer:        os.Getenv("FLIGHTPOOL_OIDC_ISSUER"),
		OIDCClientID:      os.Getenv("FLIGHTPOOL_OIDC_CLIENT_ID"),
		OIDCClientSecret:  os.Getenv("FLIGHTPOOL_OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:   os.Getenv("FLIGHTPOOL_OIDC_REDIRECT_URL"),
		StateSecret:       []byte(os.Getenv("FLIGHTPOOL_STATE_SECRET")),
		AdminToken:        os.Getenv("FLIGHTPOOL_ADMIN_TOKEN"),
		AdminUserIDs:      splitList(os.Getenv("FLIGHTPOOL_ADMIN_USER_IDS")),
		AllowedDomains:    splitList(os.Getenv("FLIGHTPOOL_ALLOWED_DOMAINS")),
		AllowedGitHubOrgs: splitList(os.Getenv("FLIGHTPOOL_ALLOWED_GITHUB_ORGS")),
		SessionTTL:        defaultSessionTTL,
		ProviderTimeout:   defaultProviderTimeout,
		SecureCookies:     true,
	}

	if v := os.Getenv("FLIGHTPOOL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FLIGHTPOOL_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("session ttl: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("FLIGHTPOOL_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("provider timeout: %w", err)
		}
		cfg.ProviderTimeout = d
	}
	if v := os.Getenv("FLIGHTPOOL_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.New("secure cookies must be a boolean")
		}
		cfg.SecureCookies = b
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if c.DBURL == "" {
		return errors.New("db url is required")
	}
	if c.OIDCIssuer == "" || c.OIDCClientID == "" || c.OIDCRedirectURL == "" {
		return errors.New("oidc issuer, client id, and redirect url are required")
	}
	if len(c.StateSecret) < minStateSecretLength {
		return fmt.Errorf("state secret must be at least %d bytes", minStateSecretLength)
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return errors.New("both tls cert and key are required when enabling tls")
	}
	if c.SessionTTL <= 0 || c.ProviderTimeout <= 0 {
		return errors.New("session ttl and provider timeout must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
