package trip

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/user"
	"github.com/google/uuid"
)

const (
	maxSeats       = 8
	maxNotesLength = 500
)

type Service struct {
	repo  Repository
	idGen func() string
	now   func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		idGen: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

func (s *Service) Create(ctx context.Context, userID user.ID, d Details) (Trip, error) {
	if s.repo == nil {
		return Trip{}, errors.New("repository is required")
	}
	if userID == "" {
		return Trip{}, ErrInvalidInput
	}
	d, err := normalizeDetails(d)
	if err != nil {
		return Trip{}, err
	}
	now := s.now().UTC()
	t := Trip{
		ID:        ID(s.idGen()),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.apply(d)
	if err := s.repo.Create(ctx, t); err != nil {
		return Trip{}, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id ID) (Trip, error) {
	if s.repo == nil {
		return Trip{}, errors.New("repository is required")
	}
	if strings.TrimSpace(string(id)) == "" {
		return Trip{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Trip, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	f.Airport = strings.ToUpper(strings.TrimSpace(f.Airport))
	if f.Direction != "" && !f.Direction.Valid() {
		return nil, ErrInvalidInput
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, userID user.ID, id ID, d Details) (Trip, error) {
	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return Trip{}, err
	}
	d, err = normalizeDetails(d)
	if err != nil {
		return Trip{}, err
	}
	existing.apply(d)
	existing.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, existing); err != nil {
		return Trip{}, err
	}
	return existing, nil
}

func (s *Service) Delete(ctx context.Context, userID user.ID, id ID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) owned(ctx context.Context, userID user.ID, id ID) (Trip, error) {
	if s.repo == nil {
		return Trip{}, errors.New("repository is required")
	}
	if userID == "" || strings.TrimSpace(string(id)) == "" {
		return Trip{}, ErrInvalidInput
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if t.UserID != userID {
		return Trip{}, ErrForbidden
	}
	return t, nil
}

func (t *Trip) apply(d Details) {
	t.Direction = d.Direction
	t.Airport = d.Airport
	t.FlightNumber = d.FlightNumber
	t.FlightTime = d.FlightTime
	t.Terminal = d.Terminal
	t.Notes = d.Notes
	t.Seats = d.Seats
}

func normalizeDetails(d Details) (Details, error) {
	d.Airport = strings.ToUpper(strings.TrimSpace(d.Airport))
	d.FlightNumber = strings.ToUpper(strings.Join(strings.Fields(d.FlightNumber), ""))
	d.Terminal = strings.TrimSpace(d.Terminal)
	d.Notes = strings.TrimSpace(d.Notes)
	if !d.Direction.Valid() || !validIATA(d.Airport) || d.FlightTime.IsZero() {
		return Details{}, ErrInvalidInput
	}
	if d.Seats < 0 || d.Seats > maxSeats || len(d.Notes) > maxNotesLength {
		return Details{}, ErrInvalidInput
	}
	d.FlightTime = d.FlightTime.UTC()
	return d, nil
}

// validIATA accepts three-letter airport codes.
func validIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
