package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/user"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Admission is the invitation gate state of a session. The zero value is
// Unrestricted; a pre-fill code can only exist on a pending admission.
type Admission struct {
	pending bool
	code    string
}

func Unrestricted() Admission {
	return Admission{}
}

// PendingInvitation blocks protected operations until a code is redeemed.
// code is only a convenience for pre-filling the redemption form.
func PendingInvitation(code string) Admission {
	return Admission{pending: true, code: strings.TrimSpace(code)}
}

func (a Admission) Pending() bool {
	return a.pending
}

func (a Admission) PrefillCode() string {
	return a.code
}

func (a Admission) String() string {
	if a.pending {
		return "PendingInvitation"
	}
	return "Unrestricted"
}

const (
	stateUnrestricted = "unrestricted"
	statePending      = "pending_invitation"
)

type admissionJSON struct {
	State string `json:"state"`
	Code  string `json:"code,omitempty"`
}

func (a Admission) MarshalJSON() ([]byte, error) {
	if !a.pending {
		return json.Marshal(admissionJSON{State: stateUnrestricted})
	}
	return json.Marshal(admissionJSON{State: statePending, Code: a.code})
}

func (a *Admission) UnmarshalJSON(data []byte) error {
	var raw admissionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.State {
	case stateUnrestricted, "":
		*a = Unrestricted()
	case statePending:
		*a = PendingInvitation(raw.Code)
	default:
		return fmt.Errorf("unknown admission state %q", raw.State)
	}
	return nil
}

// Session maps an opaque browser token to a principal. A zero ExpiresAt
// never expires.
type Session struct {
	Token        string    `json:"token"`
	UserID       user.ID   `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Admission    Admission `json:"admission"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}
