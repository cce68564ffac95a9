package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/auth"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/securelog"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
)

const (
	maxBodyBytes = 1 << 20
	timeLayout   = time.RFC3339Nano
)

type Deps struct {
	Auth          *auth.Service
	Users         *user.Service
	Invitations   *invitation.Service
	Settings      *access.Settings
	Sessions      *session.Manager
	Trips         *trip.Service
	AdminToken    string
	SecureCookies bool
}

type Handler struct {
	auth          *auth.Service
	users         *user.Service
	invitations   *invitation.Service
	settings      *access.Settings
	sessions      *session.Manager
	trips         *trip.Service
	adminToken    string
	secureCookies bool
	now           func() time.Time
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		auth:          d.Auth,
		users:         d.Users,
		invitations:   d.Invitations,
		settings:      d.Settings,
		sessions:      d.Sessions,
		trips:         d.Trips,
		adminToken:    d.AdminToken,
		secureCookies: d.SecureCookies,
		now:           time.Now,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/login", h.handleLogin)
	mux.HandleFunc("GET /api/callback", h.handleCallback)
	mux.Handle("POST /api/logout", h.withSession(h.handleLogout))
	mux.Handle("GET /api/auth/user", h.gated(h.handleCurrentUser))

	mux.HandleFunc("POST /api/invitations/signup", h.handleSignup)
	// reachable while the invitation gate is closed
	mux.Handle("POST /api/invitations/validate", h.withSession(h.handleValidate))

	mux.Handle("POST /api/admin/invitations", h.admin(h.handleCreateInvitation))
	mux.Handle("GET /api/admin/invitations", h.admin(h.handleListInvitations))
	mux.Handle("DELETE /api/admin/invitations/{id}", h.admin(h.handleRevokeInvitation))
	mux.Handle("GET /api/admin/settings/oauth", h.admin(h.handleGetRestrictions))
	mux.Handle("PUT /api/admin/settings/oauth", h.admin(h.handleUpdateRestrictions))

	mux.Handle("GET /api/trips", h.gated(h.handleListTrips))
	mux.Handle("POST /api/trips", h.gated(h.handleCreateTrip))
	mux.Handle("GET /api/trips/{id}", h.gated(h.handleGetTrip))
	mux.Handle("PUT /api/trips/{id}", h.gated(h.handleUpdateTrip))
	mux.Handle("DELETE /api/trips/{id}", h.gated(h.handleDeleteTrip))
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("multiple json objects are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err with the status and reason its sentinel maps to.
func writeError(w http.ResponseWriter, err error) {
	status, reason := classify(err)
	writeErrorStatus(w, status, reason, err)
}

func writeErrorStatus(w http.ResponseWriter, status int, reason string, err error) {
	securelog.Error("httpapi", err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}
