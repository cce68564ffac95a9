package httpapi

import (
	"errors"
	"net/http"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/auth"
	"github.com/Avicted/flightpool/internal/identity"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
)

const (
	reasonNotFound            = "NotFound"
	reasonRevoked             = "Revoked"
	reasonExpired             = "Expired"
	reasonExhausted           = "Exhausted"
	reasonDomainDenied        = "DomainDenied"
	reasonEmailTaken          = "EmailTaken"
	reasonEmailUnverified     = "EmailUnverified"
	reasonInvitationRequired  = "InvitationRequired"
	reasonDuplicateCode       = "DuplicateCode"
	reasonProviderUnavailable = "ProviderUnavailable"
	reasonInvalidInput        = "InvalidInput"
	reasonInvalidState        = "InvalidState"
	reasonUnauthorized        = "Unauthorized"
	reasonForbidden           = "Forbidden"
	reasonInternal            = "Internal"
)

var errForbidden = errors.New("admin privileges required")

// classify maps a service error to its HTTP status and machine reason.
// Invitation policy failures are client errors naming the exact cause.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, invitation.ErrNotFound):
		return http.StatusBadRequest, reasonNotFound
	case errors.Is(err, invitation.ErrRevoked):
		return http.StatusBadRequest, reasonRevoked
	case errors.Is(err, invitation.ErrExpired):
		return http.StatusBadRequest, reasonExpired
	case errors.Is(err, invitation.ErrExhausted):
		return http.StatusBadRequest, reasonExhausted
	case errors.Is(err, invitation.ErrDuplicateCode):
		return http.StatusBadRequest, reasonDuplicateCode
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusBadRequest, reasonEmailTaken
	case errors.Is(err, access.ErrDomainDenied):
		return http.StatusForbidden, reasonDomainDenied
	case errors.Is(err, auth.ErrInvitationRequired):
		return http.StatusForbidden, reasonInvitationRequired
	case errors.Is(err, identity.ErrEmailUnverified):
		return http.StatusForbidden, reasonEmailUnverified
	case errors.Is(err, identity.ErrProviderUnavailable):
		return http.StatusBadGateway, reasonProviderUnavailable
	case errors.Is(err, auth.ErrInvalidState):
		return http.StatusBadRequest, reasonInvalidState
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return http.StatusUnauthorized, reasonUnauthorized
	case errors.Is(err, trip.ErrNotFound):
		return http.StatusNotFound, reasonNotFound
	case errors.Is(err, trip.ErrForbidden), errors.Is(err, errForbidden):
		return http.StatusForbidden, reasonForbidden
	case errors.Is(err, invitation.ErrInvalidInput), errors.Is(err, access.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput), errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, trip.ErrInvalidInput):
		return http.StatusBadRequest, reasonInvalidInput
	default:
		return http.StatusInternalServerError, reasonInternal
	}
}
