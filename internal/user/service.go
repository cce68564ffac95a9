package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	admins map[ID]struct{}
	idGen  func() ID
	now    func() time.Time
}

func NewService(repo Repository, adminIDs []string) *Service {
	admins := make(map[ID]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[ID(id)] = struct{}{}
		}
	}
	return &Service{
		repo:   repo,
		admins: admins,
		idGen: func() ID {
			return ID(uuid.NewString())
		},
		now: time.Now,
	}
}

// UpsertOAuth records the verified identity returned by the provider.
func (s *Service) UpsertOAuth(ctx context.Context, subject ID, email, firstName, lastName string) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	addr := NormalizeEmail(email)
	if subject == "" || !ValidEmail(addr) {
		return User{}, ErrInvalidInput
	}
	now := s.now().UTC()
	u, err := s.repo.Upsert(ctx, User{
		ID:           subject,
		Email:        addr,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		AuthProvider: ProviderOIDC,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	return s.decorate(u), nil
}

// CreateInvited creates a principal that signed up with an invitation code.
func (s *Service) CreateInvited(ctx context.Context, name, email string) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	addr := NormalizeEmail(email)
	first, last := SplitName(name)
	if first == "" || !ValidEmail(addr) {
		return User{}, ErrInvalidInput
	}
	now := s.now().UTC()
	u := User{
		ID:           s.idGen(),
		Email:        addr,
		FirstName:    first,
		LastName:     last,
		AuthProvider: ProviderInvitation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return s.decorate(u), nil
}

func (s *Service) GetByID(ctx context.Context, id ID) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	if id == "" {
		return User{}, ErrInvalidInput
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return s.decorate(u), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	addr := NormalizeEmail(email)
	if addr == "" {
		return User{}, ErrInvalidInput
	}
	u, err := s.repo.GetByEmail(ctx, addr)
	if err != nil {
		return User{}, err
	}
	return s.decorate(u), nil
}

// EmailTaken reports whether a principal already owns email.
func (s *Service) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) decorate(u User) User {
	if _, ok := s.admins[u.ID]; ok {
		u.IsAdmin = true
	}
	return u
}

// SplitName takes the first whitespace-delimited token as the first name and
// the trimmed remainder, inner spacing intact, as the last name.
func SplitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	i := strings.IndexFunc(name, unicode.IsSpace)
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.TrimSpace(name[i:])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	if email == "" || strings.Count(email, "@") != 1 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
