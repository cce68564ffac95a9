package invitation

import (
	"context"
	"errors"
	"time"

	"github.com/Avicted/flightpool/internal/user"
)

const DefaultMaxUses = 1

// Code is a human-entered invitation token that admits up to MaxUses principals.
type Code struct {
	ID          string
	Code        string
	CreatedBy   user.ID
	MaxUses     int
	CurrentUses int
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
	UsedBy      *user.ID
	UsedAt      *time.Time
	CreatedAt   time.Time
}

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("invitation code not found")
	ErrRevoked       = errors.New("invitation code has been revoked")
	ErrExpired       = errors.New("invitation code has expired")
	ErrExhausted     = errors.New("invitation code has already been used")
	ErrDuplicateCode = errors.New("invitation code already exists")
)

// Repository persists invitation codes. Redeem and Revoke must be atomic
// single-statement updates; callers never read-modify-write a code.
type Repository interface {
	Create(ctx context.Context, code Code) error
	GetByID(ctx context.Context, id string) (Code, error)
	GetByCode(ctx context.Context, code string) (Code, error)
	List(ctx context.Context) ([]Code, error)
	Revoke(ctx context.Context, id string, now time.Time) (Code, error)
	Redeem(ctx context.Context, id string, userID user.ID, now time.Time) (Code, error)
}
