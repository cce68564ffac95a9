package invitation

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/user"
	"github.com/google/uuid"
)

const (
	generatedCodeLength = 8
	maxAllowedUses      = 1000
	maxCodeLength       = 64
	generateAttempts    = 3
	codeAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type CreateParams struct {
	Code      string
	MaxUses   int
	ExpiresIn time.Duration
}

type Service struct {
	repo    Repository
	idGen   func() string
	codeGen func() (string, error)
	now     func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:    repo,
		idGen:   func() string { return uuid.NewString() },
		codeGen: generateCode,
		now:     time.Now,
	}
}

// Create mints a new code. A blank params.Code is replaced by a generated one.
func (s *Service) Create(ctx context.Context, createdBy user.ID, params CreateParams) (Code, error) {
	if s.repo == nil {
		return Code{}, errors.New("repository is required")
	}
	if createdBy == "" || params.ExpiresIn < 0 {
		return Code{}, ErrInvalidInput
	}
	maxUses := params.MaxUses
	if maxUses == 0 {
		maxUses = DefaultMaxUses
	}
	if maxUses < 1 || maxUses > maxAllowedUses {
		return Code{}, ErrInvalidInput
	}

	requested := NormalizeCode(params.Code)
	if len(requested) > maxCodeLength || strings.ContainsAny(requested, " \t\n") {
		return Code{}, ErrInvalidInput
	}

	now := s.now().UTC()
	code := Code{
		ID:        s.idGen(),
		CreatedBy: createdBy,
		MaxUses:   maxUses,
		CreatedAt: now,
	}
	if params.ExpiresIn > 0 {
		expires := now.Add(params.ExpiresIn)
		code.ExpiresAt = &expires
	}

	if requested != "" {
		code.Code = requested
		if err := s.repo.Create(ctx, code); err != nil {
			return Code{}, err
		}
		return code, nil
	}

	for attempt := 0; attempt < generateAttempts; attempt++ {
		value, err := s.codeGen()
		if err != nil {
			return Code{}, err
		}
		code.Code = value
		err = s.repo.Create(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return Code{}, err
		}
	}
	return Code{}, ErrDuplicateCode
}

func (s *Service) List(ctx context.Context) ([]Code, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	return s.repo.List(ctx)
}

// Revoke is idempotent: revoking an already revoked code returns it unchanged.
func (s *Service) Revoke(ctx context.Context, id string) (Code, error) {
	if s.repo == nil {
		return Code{}, errors.New("repository is required")
	}
	if strings.TrimSpace(id) == "" {
		return Code{}, ErrInvalidInput
	}
	return s.repo.Revoke(ctx, strings.TrimSpace(id), s.now().UTC())
}

// Check looks a code up and returns it together with its policy error, if any.
func (s *Service) Check(ctx context.Context, value string) (Code, error) {
	if s.repo == nil {
		return Code{}, errors.New("repository is required")
	}
	normalized := NormalizeCode(value)
	if normalized == "" {
		return Code{}, ErrInvalidInput
	}
	found, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		return Code{}, err
	}
	if err := Evaluate(&found, s.now().UTC()).Err(); err != nil {
		return found, err
	}
	return found, nil
}

// Redeem consumes one use of the code for userID. The policy check here only
// short-circuits obvious failures; the repository update is the authority.
func (s *Service) Redeem(ctx context.Context, value string, userID user.ID) (Code, error) {
	if userID == "" {
		return Code{}, ErrInvalidInput
	}
	found, err := s.Check(ctx, value)
	if err != nil {
		return Code{}, err
	}
	return s.repo.Redeem(ctx, found.ID, userID, s.now().UTC())
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < generatedCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
