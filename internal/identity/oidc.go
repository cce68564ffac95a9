package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const defaultTimeout = 10 * time.Second

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

// tokenSource is the slice of oauth2.Config the provider needs; tests swap it.
type tokenSource interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type OIDCProvider struct {
	oauth    tokenSource
	verifier idTokenVerifier
	timeout  time.Duration
}

// NewOIDCProvider performs issuer discovery under the configured timeout.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if strings.TrimSpace(cfg.IssuerURL) == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oidc issuer and client id are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	provider, err := oidc.NewProvider(discoverCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery: %v", ErrProviderUnavailable, err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile", oidc.ScopeOfflineAccess},
	}
	return &OIDCProvider{
		oauth:    oauthCfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		timeout:  timeout,
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code string) (Claims, Token, error) {
	if strings.TrimSpace(code) == "" {
		return Claims{}, Token{}, fmt.Errorf("%w: missing authorization code", ErrProviderUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Claims{}, Token{}, fmt.Errorf("%w: exchange: %v", ErrProviderUnavailable, err)
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return Claims{}, Token{}, fmt.Errorf("%w: no id_token in response", ErrProviderUnavailable)
	}
	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return Claims{}, Token{}, fmt.Errorf("%w: verify id_token: %v", ErrProviderUnavailable, err)
	}

	var raw struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&raw); err != nil {
		return Claims{}, Token{}, fmt.Errorf("%w: decode claims: %v", ErrProviderUnavailable, err)
	}
	claims, err := buildClaims(idToken.Subject, raw.Email, raw.EmailVerified, raw.GivenName, raw.FamilyName, raw.Name)
	if err != nil {
		return Claims{}, Token{}, err
	}
	return claims, fromOAuth(tok), nil
}

func (p *OIDCProvider) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, fmt.Errorf("%w: no refresh token", ErrProviderUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, fmt.Errorf("%w: refresh: %v", ErrProviderUnavailable, err)
	}
	out := fromOAuth(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// buildClaims treats a missing email_verified claim as verified; some
// providers only issue verified addresses and omit it.
func buildClaims(subject, email string, verified *bool, given, family, name string) (Claims, error) {
	email = strings.TrimSpace(email)
	if subject == "" || email == "" {
		return Claims{}, ErrMissingClaims
	}
	if verified != nil && !*verified {
		return Claims{}, ErrEmailUnverified
	}
	if given == "" && family == "" && name != "" {
		parts := strings.Fields(name)
		if len(parts) > 0 {
			given = parts[0]
			family = strings.Join(parts[1:], " ")
		}
	}
	return Claims{
		Subject:   subject,
		Email:     email,
		FirstName: strings.TrimSpace(given),
		LastName:  strings.TrimSpace(family),
	}, nil
}

func fromOAuth(tok *oauth2.Token) Token {
	if tok == nil {
		return Token{}
	}
	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
