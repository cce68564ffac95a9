package user

import (
	"context"
	"errors"
	"time"
)

type ID string

const (
	ProviderOIDC       = "oidc"
	ProviderInvitation = "invitation"
)

// User is a principal: an identity that can hold a session.
type User struct {
	ID           ID
	Email        string
	FirstName    string
	LastName     string
	AuthProvider string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already registered")
)

type Repository interface {
	// Create fails with ErrEmailTaken when the email already belongs to a principal.
	Create(ctx context.Context, u User) error
	// Upsert inserts or refreshes the profile fields of an OAuth principal keyed by ID.
	Upsert(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id ID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}
