package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db          *sql.DB
	tx          *TxManager
	users       *userRepo
	invitations *invitationRepo
	settings    *settingsRepo
	trips       *tripRepo
}

func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("db url is required")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:          db,
		tx:          NewTxManager(db),
		users:       &userRepo{db: db},
		invitations: &invitationRepo{db: db},
		settings:    &settingsRepo{db: db, now: time.Now},
		trips:       &tripRepo{db: db},
	}
}

func (s *PostgresStore) Close(ctx context.Context) error {
	_ = ctx
	return s.db.Close()
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrator := NewMigrator(s.db, migrationsFS)
	return migrator.Up(ctx)
}

func (s *PostgresStore) Users() user.Repository {
	return s.users
}

func (s *PostgresStore) Invitations() invitation.Repository {
	return s.invitations
}

func (s *PostgresStore) Settings() access.Repository {
	return s.settings
}

func (s *PostgresStore) Trips() trip.Repository {
	return s.trips
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, fn)
}
