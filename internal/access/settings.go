package access

import (
	"context"
	"errors"
)

// Settings serves the persisted restrictions, falling back to the defaults
// supplied at startup until an administrator saves a value.
type Settings struct {
	repo     Repository
	defaults Restrictions
}

func NewSettings(repo Repository, defaults Restrictions) *Settings {
	return &Settings{repo: repo, defaults: defaults.Normalize()}
}

func (s *Settings) Get(ctx context.Context) (Restrictions, error) {
	if s.repo == nil {
		return Restrictions{}, errors.New("repository is required")
	}
	r, err := s.repo.GetRestrictions(ctx)
	if errors.Is(err, ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return Restrictions{}, err
	}
	return r.Normalize(), nil
}

func (s *Settings) Update(ctx context.Context, r Restrictions) (Restrictions, error) {
	if s.repo == nil {
		return Restrictions{}, errors.New("repository is required")
	}
	normalized := r.Normalize()
	if err := normalized.Validate(); err != nil {
		return Restrictions{}, err
	}
	if err := s.repo.SaveRestrictions(ctx, normalized); err != nil {
		return Restrictions{}, err
	}
	return normalized, nil
}

// CheckEmail evaluates email against the current restrictions.
func (s *Settings) CheckEmail(ctx context.Context, email string) error {
	r, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if EvaluateDomain(email, r) == Denied {
		return ErrDomainDenied
	}
	return nil
}
