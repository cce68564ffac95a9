// Package access holds the OAuth admission policy: which email domains may
// sign in, and the persisted settings that configure it.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
)

type Decision int

const (
	Allowed Decision = iota
	Denied
)

func (d Decision) String() string {
	if d == Allowed {
		return "Allowed"
	}
	return "Denied"
}

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDomainDenied = errors.New("email domain is not authorized")
	ErrNotFound     = errors.New("settings not found")
)

// Restrictions limits who may sign in through the identity provider.
// AllowedGitHubOrgs is stored and reported but not enforced.
type Restrictions struct {
	AllowedDomains    []string
	AllowedGitHubOrgs []string
}

type Repository interface {
	GetRestrictions(ctx context.Context) (Restrictions, error)
	SaveRestrictions(ctx context.Context, r Restrictions) error
}

// EvaluateDomain allows every email when no domains are configured; otherwise
// the part after the last "@" must match one allowed domain, ignoring case.
func EvaluateDomain(email string, r Restrictions) Decision {
	if len(r.AllowedDomains) == 0 {
		return Allowed
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return Denied
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return Denied
	}
	for _, allowed := range r.AllowedDomains {
		if strings.EqualFold(domain, strings.TrimSpace(allowed)) {
			return Allowed
		}
	}
	return Denied
}

// Normalize trims, lower-cases and de-duplicates the configured lists.
func (r Restrictions) Normalize() Restrictions {
	return Restrictions{
		AllowedDomains: normalizeList(r.AllowedDomains, func(s string) string {
			return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "@")
		}),
		AllowedGitHubOrgs: normalizeList(r.AllowedGitHubOrgs, func(s string) string {
			return strings.ToLower(strings.TrimSpace(s))
		}),
	}
}

func (r Restrictions) Validate() error {
	for _, d := range r.AllowedDomains {
		if !strings.Contains(d, ".") || strings.ContainsAny(d, "@ \t/") || strings.HasPrefix(d, ".") || strings.HasSuffix(d, ".") {
			return ErrInvalidInput
		}
	}
	for _, org := range r.AllowedGitHubOrgs {
		if strings.ContainsAny(org, " \t/@") {
			return ErrInvalidInput
		}
	}
	return nil
}

func normalizeList(values []string, clean func(string) string) []string {
	out := lo.Uniq(lo.FilterMap(values, func(v string, _ int) (string, bool) {
		c := clean(v)
		return c, c != ""
	}))
	if out == nil {
		return []string{}
	}
	return out
}
