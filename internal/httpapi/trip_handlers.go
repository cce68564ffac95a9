package httpapi

import (
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/trip"
)

type tripRequest struct {
	Direction    string    `json:"direction"`
	Airport      string    `json:"airport"`
	FlightNumber string    `json:"flightNumber"`
	FlightTime   time.Time `json:"flightTime"`
	Terminal     string    `json:"terminal"`
	Notes        string    `json:"notes"`
	Seats        int       `json:"seats"`
}

type tripResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Direction    string `json:"direction"`
	Airport      string `json:"airport"`
	FlightNumber string `json:"flightNumber"`
	FlightTime   string `json:"flightTime"`
	Terminal     string `json:"terminal,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Seats        int    `json:"seats"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type listTripsResponse struct {
	Trips []tripResponse `json:"trips"`
}

func (h *Handler) handleListTrips(w http.ResponseWriter, r *http.Request, sess session.Session) {
	q := r.URL.Query()
	f := trip.Filter{
		Airport:   q.Get("airport"),
		Direction: trip.Direction(q.Get("direction")),
	}
	var err error
	if f.From, err = parseQueryTime(q.Get("from")); err != nil {
		writeError(w, trip.ErrInvalidInput)
		return
	}
	if f.To, err = parseQueryTime(q.Get("to")); err != nil {
		writeError(w, trip.ErrInvalidInput)
		return
	}
	if q.Get("mine") == "true" {
		f.UserID = sess.UserID
	}

	trips, err := h.trips.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listTripsResponse{
		Trips: lo.Map(trips, func(t trip.Trip, _ int) tripResponse { return toTripResponse(t) }),
	})
}

func (h *Handler) handleCreateTrip(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	t, err := h.trips.Create(r.Context(), sess.UserID, req.details())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTripResponse(t))
}

func (h *Handler) handleGetTrip(w http.ResponseWriter, r *http.Request, _ session.Session) {
	t, err := h.trips.Get(r.Context(), trip.ID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(t))
}

func (h *Handler) handleUpdateTrip(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, reasonInvalidInput, err)
		return
	}
	t, err := h.trips.Update(r.Context(), sess.UserID, trip.ID(r.PathValue("id")), req.details())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(t))
}

func (h *Handler) handleDeleteTrip(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := h.trips.Delete(r.Context(), sess.UserID, trip.ID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req tripRequest) details() trip.Details {
	return trip.Details{
		Direction:    trip.Direction(req.Direction),
		Airport:      req.Airport,
		FlightNumber: req.FlightNumber,
		FlightTime:   req.FlightTime,
		Terminal:     req.Terminal,
		Notes:        req.Notes,
		Seats:        req.Seats,
	}
}

func parseQueryTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func toTripResponse(t trip.Trip) tripResponse {
	return tripResponse{
		ID:           string(t.ID),
		UserID:       string(t.UserID),
		Direction:    string(t.Direction),
		Airport:      t.Airport,
		FlightNumber: t.FlightNumber,
		FlightTime:   t.FlightTime.UTC().Format(time.RFC3339),
		Terminal:     t.Terminal,
		Notes:        t.Notes,
		Seats:        t.Seats,
		CreatedAt:    t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:    t.UpdatedAt.UTC().Format(timeLayout),
	}
}
