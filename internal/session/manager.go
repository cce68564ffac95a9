package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/identity"
	"github.com/Avicted/flightpool/internal/user"
)

// Refresher renews a provider session from its refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (identity.Token, error)
}

type Manager struct {
	store      Store
	refresher  Refresher
	defaultTTL time.Duration
	now        func() time.Time
	tokenGen   func() (string, error)
}

// NewManager wires a session store. refresher may be nil, in which case
// expired sessions are never renewed. defaultTTL applies when a refresh
// does not report an expiry.
func NewManager(store Store, refresher Refresher, defaultTTL time.Duration) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Manager{
		store:      store,
		refresher:  refresher,
		defaultTTL: defaultTTL,
		now:        time.Now,
		tokenGen:   randomToken,
	}
}

func (m *Manager) Issue(ctx context.Context, userID user.ID, expiresAt time.Time, refreshToken string, admission Admission) (Session, error) {
	if m.store == nil {
		return Session{}, errors.New("session store is required")
	}
	if strings.TrimSpace(string(userID)) == "" {
		return Session{}, errors.New("user id is required")
	}
	token, err := m.tokenGen()
	if err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	s := Session{
		Token:        token,
		UserID:       userID,
		ExpiresAt:    expiresAt.UTC(),
		RefreshToken: refreshToken,
		Admission:    admission,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Authenticate resolves a token to a live session, refreshing it through
// the provider when it has expired and carries a refresh token.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	if m.store == nil {
		return Session{}, errors.New("session store is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return Session{}, err
	}
	now := m.now()
	if !s.Expired(now) {
		return s, nil
	}
	if s.RefreshToken == "" || m.refresher == nil {
		_ = m.store.Delete(ctx, token)
		return Session{}, ErrExpired
	}

	fresh, err := m.refresher.Refresh(ctx, s.RefreshToken)
	if err != nil {
		_ = m.store.Delete(ctx, token)
		return Session{}, fmt.Errorf("%w: %w", ErrExpired, err)
	}
	s.ExpiresAt = fresh.Expiry.UTC()
	if fresh.Expiry.IsZero() || !fresh.Expiry.After(now) {
		s.ExpiresAt = now.Add(m.defaultTTL).UTC()
	}
	if fresh.RefreshToken != "" {
		s.RefreshToken = fresh.RefreshToken
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Admit lifts the invitation gate. It is a no-op for unrestricted sessions.
func (m *Manager) Admit(ctx context.Context, s Session) (Session, error) {
	if !s.Admission.Pending() {
		return s, nil
	}
	s.Admission = Unrestricted()
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (m *Manager) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return m.store.Delete(ctx, token)
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
