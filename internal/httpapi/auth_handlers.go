package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/auth"
	"github.com/Avicted/flightpool/internal/identity"
	"github.com/Avicted/flightpool/internal/securelog"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/user"
)

const (
	loginErrDomain     = "domain_not_authorized"
	loginErrEmailTaken = "email_taken"
	loginErrUnverified = "email_unverified"
)

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AuthProvider string `json:"authProvider"`
	IsAdmin      bool   `json:"isAdmin"`
	CreatedAt    string `json:"createdAt"`
}

type signupRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	InvitationCode string `json:"invitationCode"`
}

type signupResponse struct {
	User       userResponse       `json:"user"`
	Invitation invitationResponse `json:"invitation"`
	Token      string             `json:"token"`
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo"`
}

// handleLogin starts the provider flow, or reports why a previous callback
// was refused when ?error= is present.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("error") {
	case "":
	case loginErrDomain:
		writeErrorStatus(w, http.StatusForbidden, reasonDomainDenied, access.ErrDomainDenied)
		return
	case loginErrEmailTaken:
		writeErrorStatus(w, http.StatusBadRequest, reasonEmailTaken, auth.ErrEmailTaken)
		return
	case loginErrUnverified:
		writeErrorStatus(w, http.StatusForbidden, reasonEmailUnverified, identity.ErrEmailUnverified)
		return
	default:
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, errors.New("unknown login error"))
		return
	}

	redirect, state, err := h.auth.BeginLogin(q.Get("invitation") == "true", q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.setCookie(w, stateCookie, state, "/api", stateCookieAge)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cookieState := ""
	if c, err := r.Cookie(stateCookie); err == nil {
		cookieState = c.Value
	}
	st, err := h.auth.VerifyState(q.Get("state"), cookieState)
	if err != nil {
		securelog.Denied("httpapi.callback", reasonInvalidState)
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidState, auth.ErrInvalidState)
		return
	}
	h.clearCookie(w, stateCookie, "/api")

	if q.Get("error") != "" || q.Get("code") == "" {
		// provider-side refusal, e.g. the user cancelled consent
		http.Redirect(w, r, retryLoginPath(st), http.StatusFound)
		return
	}

	_, sess, err := h.auth.CompleteOAuthLogin(r.Context(), q.Get("code"), st)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrDomainDenied):
			securelog.Denied("httpapi.callback", reasonDomainDenied)
			http.Redirect(w, r, "/api/login?error="+loginErrDomain, http.StatusFound)
		case errors.Is(err, user.ErrEmailTaken):
			http.Redirect(w, r, "/api/login?error="+loginErrEmailTaken, http.StatusFound)
		case errors.Is(err, identity.ErrEmailUnverified):
			http.Redirect(w, r, "/api/login?error="+loginErrUnverified, http.StatusFound)
		case errors.Is(err, identity.ErrProviderUnavailable), errors.Is(err, identity.ErrMissingClaims):
			http.Redirect(w, r, retryLoginPath(st), http.StatusFound)
		default:
			writeError(w, err)
		}
		return
	}

	h.setCookie(w, sessionCookie, sess.Token, "/", sessionCookieAge)
	target := "/"
	if sess.Admission.Pending() {
		target = completeInvitationPath(sess.Admission.PrefillCode())
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := h.auth.Logout(r.Context(), sess.Token); err != nil {
		writeError(w, err)
		return
	}
	h.clearCookie(w, sessionCookie, "/")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request, sess session.Session) {
	u, err := h.users.GetByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeErrorStatus(w, http.StatusUnauthorized, reasonUnauthorized, err)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	u, code, sess, err := h.auth.SignupWithInvitation(r.Context(), auth.SignupRequest{
		Name:           req.Name,
		Email:          req.Email,
		InvitationCode: req.InvitationCode,
	})
	if err != nil {
		h.denyInvitation(w, "httpapi.signup", err)
		return
	}
	h.setCookie(w, sessionCookie, sess.Token, "/", sessionCookieAge)
	writeJSON(w, http.StatusCreated, signupResponse{
		User:       toUserResponse(u),
		Invitation: toInvitationResponse(code, h.now()),
		Token:      sess.Token,
	})
}

// handleValidate redeems a code for the current principal and opens the gate.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	code := req.Code
	if code == "" {
		code = sess.Admission.PrefillCode()
	}
	if _, _, err := h.auth.RedeemInvitation(r.Context(), sess, code); err != nil {
		h.denyInvitation(w, "httpapi.validate", err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Message:    "invitation code accepted",
		RedirectTo: "/",
	})
}

func (h *Handler) denyInvitation(w http.ResponseWriter, context string, err error) {
	status, reason := classify(err)
	if status < http.StatusInternalServerError {
		securelog.Denied(context, reason)
	}
	writeErrorStatus(w, status, reason, err)
}

func retryLoginPath(st auth.LoginState) string {
	if !st.Invitation {
		return "/api/login"
	}
	v := url.Values{"invitation": {"true"}}
	if st.Code != "" {
		v.Set("code", st.Code)
	}
	return "/api/login?" + v.Encode()
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:           string(u.ID),
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AuthProvider: u.AuthProvider,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt.UTC().Format(timeLayout),
	}
}
