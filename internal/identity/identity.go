// Package identity adapts an external OpenID Connect provider to the
// verified claims the rest of the service works with.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrEmailUnverified     = errors.New("email address not verified by provider")
	ErrMissingClaims       = errors.New("identity token missing required claims")
)

// Claims are the verified attributes of a login.
type Claims struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// Token carries the provider session. A zero Expiry means the provider did
// not report one.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Claims, Token, error)
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}
