package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Avicted/flightpool/internal/securelog"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/user"
)

const (
	sessionCookie    = "flightpool_session"
	stateCookie      = "flightpool_oauth_state"
	sessionCookieAge = 30 * 24 * 60 * 60
	stateCookieAge   = 10 * 60

	// adminTokenActor is recorded as creator when the static admin token is used.
	adminTokenActor user.ID = "admin-token"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

type adminHandler func(w http.ResponseWriter, r *http.Request, actor user.ID)

type invitationRequiredResponse struct {
	Error                  string `json:"error"`
	Reason                 string `json:"reason"`
	RequiresInvitationCode bool   `json:"requiresInvitationCode"`
	RedirectTo             string `json:"redirectTo"`
}

// withSession resolves the caller's session in any admission state.
func (h *Handler) withSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r, sess)
	})
}

// gated admits only Unrestricted sessions.
func (h *Handler) gated(next sessionHandler) http.Handler {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, sess session.Session) {
		if sess.Admission.Pending() {
			h.rejectPending(w, sess)
			return
		}
		next(w, r, sess)
	})
}

func (h *Handler) admin(next adminHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.validAdminToken(r) {
			next(w, r, adminTokenActor)
			return
		}
		sess, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		if sess.Admission.Pending() {
			h.rejectPending(w, sess)
			return
		}
		u, err := h.users.GetByID(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				writeErrorStatus(w, http.StatusUnauthorized, reasonUnauthorized, errors.New("unauthorized"))
				return
			}
			writeError(w, err)
			return
		}
		if !u.IsAdmin {
			securelog.Denied("httpapi.admin", reasonForbidden)
			writeError(w, errForbidden)
			return
		}
		next(w, r, u.ID)
	})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	token := requestToken(r)
	if token == "" {
		writeErrorStatus(w, http.StatusUnauthorized, reasonUnauthorized, errors.New("missing session"))
		return session.Session{}, false
	}
	sess, err := h.sessions.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
			h.clearCookie(w, sessionCookie, "/")
			writeErrorStatus(w, http.StatusUnauthorized, reasonUnauthorized, errors.New("invalid session"))
			return session.Session{}, false
		}
		writeError(w, err)
		return session.Session{}, false
	}
	return sess, true
}

func (h *Handler) rejectPending(w http.ResponseWriter, sess session.Session) {
	securelog.Denied("httpapi.gate", reasonInvitationRequired)
	writeJSON(w, http.StatusForbidden, invitationRequiredResponse{
		Error:                  "invitation code required",
		Reason:                 reasonInvitationRequired,
		RequiresInvitationCode: true,
		RedirectTo:             completeInvitationPath(sess.Admission.PrefillCode()),
	})
}

func (h *Handler) validAdminToken(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	got := r.Header.Get("X-Admin-Token")
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) == 1
}

// requestToken prefers a bearer token and falls back to the session cookie.
func requestToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func completeInvitationPath(code string) string {
	if code == "" {
		return "/complete-invitation"
	}
	return "/complete-invitation?code=" + url.QueryEscape(code)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value, path string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name, path string) {
	h.setCookie(w, name, "", path, -1)
}
