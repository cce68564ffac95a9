package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// LoginState travels through the provider round-trip in the OAuth state
// parameter and the state cookie.
type LoginState struct {
	Invitation bool
	Code       string
	Nonce      string
}

type stateClaims struct {
	Invitation bool   `json:"invitation,omitempty"`
	Code       string `json:"code,omitempty"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}

type StateSigner struct {
	secret []byte
	now    func() time.Time
}

func NewStateSigner(secret []byte) *StateSigner {
	return &StateSigner{secret: secret, now: time.Now}
}

func (s *StateSigner) Sign(st LoginState) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("state secret is required")
	}
	if st.Nonce == "" {
		st.Nonce = uuid.NewString()
	}
	now := s.now()
	claims := stateClaims{
		Invitation: st.Invitation,
		Code:       st.Code,
		Nonce:      st.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

func (s *StateSigner) Verify(token string) (LoginState, error) {
	if token == "" || len(s.secret) == 0 {
		return LoginState{}, ErrInvalidState
	}
	var claims stateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return LoginState{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return LoginState{Invitation: claims.Invitation, Code: claims.Code, Nonce: claims.Nonce}, nil
}
