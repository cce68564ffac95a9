package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/user"
)

type createInvitationRequest struct {
	Code           string `json:"code"`
	MaxUses        *int   `json:"maxUses"`
	ExpiresInHours *int   `json:"expiresInHours"`
}

type invitationResponse struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	CreatedBy   string  `json:"createdBy"`
	MaxUses     int     `json:"maxUses"`
	CurrentUses int     `json:"currentUses"`
	Status      string  `json:"status"`
	ExpiresAt   *string `json:"expiresAt,omitempty"`
	RevokedAt   *string `json:"revokedAt,omitempty"`
	UsedBy      *string `json:"usedBy,omitempty"`
	UsedAt      *string `json:"usedAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

type listInvitationsResponse struct {
	Invitations []invitationResponse `json:"invitations"`
}

type restrictionsPayload struct {
	AllowedDomains    []string `json:"allowedDomains"`
	AllowedGitHubOrgs []string `json:"allowedGitHubOrgs"`
}

func (h *Handler) handleCreateInvitation(w http.ResponseWriter, r *http.Request, actor user.ID) {
	var req createInvitationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	params := invitation.CreateParams{Code: req.Code}
	if req.MaxUses != nil {
		if *req.MaxUses < 1 {
			writeError(w, invitation.ErrInvalidInput)
			return
		}
		params.MaxUses = *req.MaxUses
	}
	if req.ExpiresInHours != nil {
		if *req.ExpiresInHours < 0 {
			writeError(w, invitation.ErrInvalidInput)
			return
		}
		params.ExpiresIn = time.Duration(*req.ExpiresInHours) * time.Hour
	}

	code, err := h.invitations.Create(r.Context(), actor, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvitationResponse(code, h.now()))
}

func (h *Handler) handleListInvitations(w http.ResponseWriter, r *http.Request, _ user.ID) {
	codes, err := h.invitations.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	now := h.now()
	writeJSON(w, http.StatusOK, listInvitationsResponse{
		Invitations: lo.Map(codes, func(c invitation.Code, _ int) invitationResponse {
			return toInvitationResponse(c, now)
		}),
	})
}

func (h *Handler) handleRevokeInvitation(w http.ResponseWriter, r *http.Request, _ user.ID) {
	code, err := h.invitations.Revoke(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, invitation.ErrNotFound) {
			writeErrorStatus(w, http.StatusNotFound, reasonNotFound, err)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationResponse(code, h.now()))
}

func (h *Handler) handleGetRestrictions(w http.ResponseWriter, r *http.Request, _ user.ID) {
	res, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestrictionsPayload(res))
}

func (h *Handler) handleUpdateRestrictions(w http.ResponseWriter, r *http.Request, _ user.ID) {
	var req restrictionsPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	res, err := h.settings.Update(r.Context(), access.Restrictions{
		AllowedDomains:    req.AllowedDomains,
		AllowedGitHubOrgs: req.AllowedGitHubOrgs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestrictionsPayload(res))
}

func toInvitationResponse(c invitation.Code, now time.Time) invitationResponse {
	out := invitationResponse{
		ID:          c.ID,
		Code:        c.Code,
		CreatedBy:   string(c.CreatedBy),
		MaxUses:     c.MaxUses,
		CurrentUses: c.CurrentUses,
		Status:      invitation.Evaluate(&c, now).String(),
		ExpiresAt:   formatTime(c.ExpiresAt),
		RevokedAt:   formatTime(c.RevokedAt),
		UsedAt:      formatTime(c.UsedAt),
		CreatedAt:   c.CreatedAt.UTC().Format(timeLayout),
	}
	if c.UsedBy != nil {
		out.UsedBy = lo.ToPtr(string(*c.UsedBy))
	}
	return out
}

func toRestrictionsPayload(r access.Restrictions) restrictionsPayload {
	return restrictionsPayload{
		AllowedDomains:    lo.Ternary(r.AllowedDomains == nil, []string{}, r.AllowedDomains),
		AllowedGitHubOrgs: lo.Ternary(r.AllowedGitHubOrgs == nil, []string{}, r.AllowedGitHubOrgs),
	}
}
