package trip

import (
	"context"
	"errors"
	"time"

	"github.com/Avicted/flightpool/internal/user"
)

type ID string

type Direction string

const (
	ToAirport   Direction = "to_airport"
	FromAirport Direction = "from_airport"
)

func (d Direction) Valid() bool {
	return d == ToAirport || d == FromAirport
}

// Trip is one traveller's ride to or from an airport around a flight.
type Trip struct {
	ID           ID
	UserID       user.ID
	Direction    Direction
	Airport      string
	FlightNumber string
	FlightTime   time.Time
	Terminal     string
	Notes        string
	Seats        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Details are the traveller-editable fields of a trip.
type Details struct {
	Direction    Direction
	Airport      string
	FlightNumber string
	FlightTime   time.Time
	Terminal     string
	Notes        string
	Seats        int
}

// Filter narrows List; zero fields match everything. From and To bound the
// flight time inclusively.
type Filter struct {
	Airport   string
	Direction Direction
	From      time.Time
	To        time.Time
	UserID    user.ID
}

var (
	ErrNotFound     = errors.New("trip not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

type Repository interface {
	Create(ctx context.Context, t Trip) error
	Get(ctx context.Context, id ID) (Trip, error)
	List(ctx context.Context, f Filter) ([]Trip, error)
	Update(ctx context.Context, t Trip) error
	Delete(ctx context.Context, id ID) error
}
