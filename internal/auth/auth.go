package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/identity"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/user"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("invalid oauth state")
	ErrInvitationRequired = errors.New("invitation code required")
	ErrEmailTaken         = user.ErrEmailTaken
)

// TxRunner runs fn in a single storage transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Deps struct {
	Users       *user.Service
	Invitations *invitation.Service
	Settings    *access.Settings
	Sessions    *session.Manager
	Provider    identity.Provider
	States      *StateSigner
	Tx          TxRunner
	// SessionTTL bounds OAuth sessions whose provider token has no expiry.
	SessionTTL time.Duration
}

type Service struct {
	users       *user.Service
	invitations *invitation.Service
	settings    *access.Settings
	sessions    *session.Manager
	provider    identity.Provider
	states      *StateSigner
	tx          TxRunner
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewService(d Deps) *Service {
	tx := d.Tx
	if tx == nil {
		tx = directTx{}
	}
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:       d.Users,
		invitations: d.Invitations,
		settings:    d.Settings,
		sessions:    d.Sessions,
		provider:    d.Provider,
		states:      d.States,
		tx:          tx,
		sessionTTL:  ttl,
		now:         time.Now,
	}
}

// BeginLogin returns the provider URL to redirect to and the signed state
// that must come back on the callback.
func (s *Service) BeginLogin(invitationFlow bool, code string) (string, string, error) {
	if s.provider == nil || s.states == nil {
		return "", "", errors.New("identity provider is required")
	}
	st := LoginState{Invitation: invitationFlow}
	if invitationFlow {
		st.Code = invitation.NormalizeCode(code)
	}
	state, err := s.states.Sign(st)
	if err != nil {
		return "", "", err
	}
	return s.provider.AuthCodeURL(state), state, nil
}

// VerifyState checks the callback state against the cookie copy.
func (s *Service) VerifyState(queryState, cookieState string) (LoginState, error) {
	if s.states == nil {
		return LoginState{}, errors.New("state signer is required")
	}
	if queryState == "" || queryState != cookieState {
		return LoginState{}, ErrInvalidState
	}
	return s.states.Verify(queryState)
}

// CompleteOAuthLogin exchanges the authorization code, enforces the domain
// allow-list and only then records the principal and opens a session.
func (s *Service) CompleteOAuthLogin(ctx context.Context, authCode string, st LoginState) (user.User, session.Session, error) {
	if s.provider == nil || s.users == nil || s.settings == nil || s.sessions == nil {
		return user.User{}, session.Session{}, errors.New("services are required")
	}
	claims, token, err := s.provider.Exchange(ctx, authCode)
	if err != nil {
		return user.User{}, session.Session{}, err
	}
	if err := s.settings.CheckEmail(ctx, claims.Email); err != nil {
		return user.User{}, session.Session{}, err
	}

	principal, err := s.users.UpsertOAuth(ctx, user.ID(claims.Subject), claims.Email, claims.FirstName, claims.LastName)
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	admission := session.Unrestricted()
	if st.Invitation {
		admission = session.PendingInvitation(st.Code)
	}
	expires := token.Expiry
	if expires.IsZero() {
		expires = s.now().Add(s.sessionTTL)
	}
	sess, err := s.sessions.Issue(ctx, principal.ID, expires, token.RefreshToken, admission)
	if err != nil {
		return user.User{}, session.Session{}, err
	}
	return principal, sess, nil
}

type SignupRequest struct {
	Name           string
	Email          string
	InvitationCode string
}

// SignupWithInvitation creates an invitation principal and redeems the code
// in one transaction, then opens a never-expiring session for it.
func (s *Service) SignupWithInvitation(ctx context.Context, req SignupRequest) (user.User, invitation.Code, session.Session, error) {
	if s.users == nil || s.invitations == nil || s.sessions == nil {
		return user.User{}, invitation.Code{}, session.Session{}, errors.New("services are required")
	}
	if strings.TrimSpace(req.Name) == "" || !user.ValidEmail(user.NormalizeEmail(req.Email)) {
		return user.User{}, invitation.Code{}, session.Session{}, ErrInvalidInput
	}
	if invitation.NormalizeCode(req.InvitationCode) == "" {
		return user.User{}, invitation.Code{}, session.Session{}, invitation.ErrInvalidInput
	}

	var (
		principal user.User
		redeemed  invitation.Code
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		taken, err := s.users.EmailTaken(ctx, req.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if _, err := s.invitations.Check(ctx, req.InvitationCode); err != nil {
			return err
		}
		principal, err = s.users.CreateInvited(ctx, req.Name, req.Email)
		if err != nil {
			return err
		}
		redeemed, err = s.invitations.Redeem(ctx, req.InvitationCode, principal.ID)
		return err
	})
	if err != nil {
		return user.User{}, invitation.Code{}, session.Session{}, err
	}

	sess, err := s.sessions.Issue(ctx, principal.ID, time.Time{}, "", session.Unrestricted())
	if err != nil {
		return user.User{}, invitation.Code{}, session.Session{}, fmt.Errorf("issue session: %w", err)
	}
	return principal, redeemed, sess, nil
}

// RedeemInvitation consumes one use of code for the session principal and
// lifts the invitation gate. A failed redemption leaves the session as is.
func (s *Service) RedeemInvitation(ctx context.Context, sess session.Session, code string) (invitation.Code, session.Session, error) {
	if s.invitations == nil || s.sessions == nil {
		return invitation.Code{}, session.Session{}, errors.New("services are required")
	}
	redeemed, err := s.invitations.Redeem(ctx, code, sess.UserID)
	if err != nil {
		return invitation.Code{}, sess, err
	}
	admitted, err := s.sessions.Admit(ctx, sess)
	if err != nil {
		return invitation.Code{}, sess, err
	}
	return redeemed, admitted, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if s.sessions == nil {
		return errors.New("session manager is required")
	}
	return s.sessions.Revoke(ctx, token)
}
