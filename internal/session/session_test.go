package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Avicted/flightpool/internal/identity"
)

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeRefresher struct {
	token identity.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (identity.Token, error) {
	f.calls++
	return f.token, f.err
}

func newTestManager(refresher Refresher) (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	m := NewManager(store, refresher, time.Hour)
	m.now = func() time.Time { return testNow }
	n := 0
	m.tokenGen = func() (string, error) {
		n++
		return "tok-" + string(rune('a'+n-1)), nil
	}
	return m, store
}

func TestAdmissionJSONRoundTrip(t *testing.T) {
	for _, a := range []Admission{Unrestricted(), PendingInvitation("WELCOME"), PendingInvitation("")} {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var got Admission
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if got != a {
			t.Fatalf("round trip mismatch: got %v want %v (%s)", got, a, data)
		}
	}
}

func TestAdmissionRejectsUnknownState(t *testing.T) {
	var a Admission
	if err := json.Unmarshal([]byte(`{"state":"half_open"}`), &a); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}

func TestUnrestrictedHasNoPrefill(t *testing.T) {
	a := Unrestricted()
	if a.Pending() || a.PrefillCode() != "" {
		t.Fatalf("unexpected unrestricted admission: %+v", a)
	}
	p := PendingInvitation("  ABC ")
	if !p.Pending() || p.PrefillCode() != "ABC" {
		t.Fatalf("unexpected pending admission: %+v", p)
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()

	s, err := m.Issue(ctx, "user-1", testNow.Add(time.Hour), "", PendingInvitation("CODE"))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	got, err := m.Authenticate(ctx, s.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.UserID != "user-1" || !got.Admission.Pending() || got.Admission.PrefillCode() != "CODE" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestIssueRequiresUser(t *testing.T) {
	m, _ := newTestManager(nil)
	if _, err := m.Issue(context.Background(), " ", time.Time{}, "", Unrestricted()); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	m, _ := newTestManager(nil)
	if _, err := m.Authenticate(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Authenticate(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty token, got %v", err)
	}
}

func TestNeverExpiringSession(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	s, err := m.Issue(ctx, "user-1", time.Time{}, "", Unrestricted())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	m.now = func() time.Time { return testNow.AddDate(10, 0, 0) }
	if _, err := m.Authenticate(ctx, s.Token); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
}

func TestExpiredWithoutRefreshIsDeleted(t *testing.T) {
	m, store := newTestManager(&fakeRefresher{})
	ctx := context.Background()
	s, err := m.Issue(ctx, "user-1", testNow.Add(time.Minute), "", Unrestricted())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	m.now = func() time.Time { return testNow.Add(2 * time.Minute) }

	if _, err := m.Authenticate(ctx, s.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := store.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session to be deleted, got %v", err)
	}
}

func TestExpiredWithRefreshIsRenewed(t *testing.T) {
	later := testNow.Add(3 * time.Hour)
	refresher := &fakeRefresher{token: identity.Token{RefreshToken: "rotated", Expiry: later}}
	m, _ := newTestManager(refresher)
	ctx := context.Background()
	s, err := m.Issue(ctx, "user-1", testNow.Add(time.Minute), "refresh-1", PendingInvitation("X"))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	m.now = func() time.Time { return testNow.Add(2 * time.Hour) }

	got, err := m.Authenticate(ctx, s.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !got.ExpiresAt.Equal(later) || got.RefreshToken != "rotated" {
		t.Fatalf("unexpected renewed session: %+v", got)
	}
	if !got.Admission.Pending() {
		t.Fatalf("refresh must not lift the invitation gate")
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls)
	}
}

func TestRefreshWithoutExpiryUsesDefaultTTL(t *testing.T) {
	refresher := &fakeRefresher{token: identity.Token{}}
	m, _ := newTestManager(refresher)
	ctx := context.Background()
	s, _ := m.Issue(ctx, "user-1", testNow.Add(time.Minute), "refresh-1", Unrestricted())
	now := testNow.Add(time.Hour)
	m.now = func() time.Time { return now }

	got, err := m.Authenticate(ctx, s.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) || got.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected renewed session: %+v", got)
	}
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	refresher := &fakeRefresher{err: identity.ErrProviderUnavailable}
	m, store := newTestManager(refresher)
	ctx := context.Background()
	s, _ := m.Issue(ctx, "user-1", testNow.Add(time.Minute), "refresh-1", Unrestricted())
	m.now = func() time.Time { return testNow.Add(time.Hour) }

	_, err := m.Authenticate(ctx, s.Token)
	if !errors.Is(err, ErrExpired) || !errors.Is(err, identity.ErrProviderUnavailable) {
		t.Fatalf("expected ErrExpired wrapping provider error, got %v", err)
	}
	if _, err := store.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to be deleted, got %v", err)
	}
}

func TestAdmitLiftsGate(t *testing.T) {
	m, store := newTestManager(nil)
	ctx := context.Background()
	s, _ := m.Issue(ctx, "user-1", time.Time{}, "", PendingInvitation("CODE"))

	admitted, err := m.Admit(ctx, s)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if admitted.Admission.Pending() {
		t.Fatalf("expected unrestricted admission")
	}
	stored, err := store.Get(ctx, s.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Admission.Pending() {
		t.Fatalf("expected stored session to be unrestricted")
	}
}

func TestRevoke(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	s, _ := m.Issue(ctx, "user-1", time.Time{}, "", Unrestricted())

	if err := m.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := m.Authenticate(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
	if err := m.Revoke(ctx, ""); err != nil {
		t.Fatalf("Revoke(empty) error = %v", err)
	}
}
