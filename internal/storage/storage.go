package storage

import (
	"context"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
)

type Store interface {
	Close(ctx context.Context) error
	Migrate(ctx context.Context) error
	Users() user.Repository
	Invitations() invitation.Repository
	Settings() access.Repository
	Trips() trip.Repository
	// RunInTx runs fn in one transaction; repositories called with the
	// context fn receives take part in it.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type NopStore struct{}

func NewNopStore() *NopStore {
	return &NopStore{}
}

func (s *NopStore) Close(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *NopStore) Migrate(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *NopStore) Users() user.Repository {
	return nil
}

func (s *NopStore) Invitations() invitation.Repository {
	return nil
}

func (s *NopStore) Settings() access.Repository {
	return nil
}

func (s *NopStore) Trips() trip.Repository {
	return nil
}

func (s *NopStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
