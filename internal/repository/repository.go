// Package repository provides persisted-store access for the trip-assignment engine.
//
// The store is the single source of truth and the only synchronization point:
// trip claims are compare-and-swap updates, and trip creation locks the
// candidate vehicle row so two bookings cannot both land on it.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shiva/tripmatch/internal/model"
)

// ─── Store Errors ───────────────────────────────────────────

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDriverNotFound is returned when a claim or dispatch update names a
	// driver that does not exist.
	ErrDriverNotFound = errors.New("driver not found")

	// ErrAlreadyAssigned is returned by ClaimTrip when another driver won the race.
	ErrAlreadyAssigned = errors.New("trip is already assigned to a driver")

	// ErrDriverBusy is returned by ClaimTrip when the claiming driver already
	// holds an active trip whose window overlaps the claimed one.
	ErrDriverBusy = errors.New("driver has an overlapping trip")

	// ErrNotClaimable is returned by ClaimTrip when the trip left the scheduled state.
	ErrNotClaimable = errors.New("trip is not in a claimable state")

	// ErrVehicleConflict is returned by CreateTrip when the vehicle became
	// unavailable between matching and insert.
	ErrVehicleConflict = errors.New("vehicle already holds an overlapping trip")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the trip's current status.
	ErrInvalidTransition = errors.New("invalid trip status transition")
)

// FleetStore reads vehicles, drivers and the trips occupying them.
type FleetStore interface {
	// VehiclesByClass returns vehicles of a class in a status, ordered by id.
	VehiclesByClass(ctx context.Context, class model.VehicleClass, status model.VehicleStatus) ([]model.Vehicle, error)

	// DriversByStatus returns drivers in a status, ordered by id.
	DriversByStatus(ctx context.Context, status model.DriverStatus) ([]model.Driver, error)

	// ActiveTripsBetween returns scheduled, confirmed and in-progress trips
	// whose pickup time lies strictly between from and to.
	ActiveTripsBetween(ctx context.Context, from, to time.Time) ([]model.Trip, error)

	// VehiclesWithTrips returns vehicles in a status joined with their
	// active trips, ordered by vehicle id.
	VehiclesWithTrips(ctx context.Context, status model.VehicleStatus) ([]model.VehicleTrips, error)
}

// TripStore reads and writes trips.
type TripStore interface {
	// CreateTrip inserts a trip and fills its ID and timestamps. When the trip
	// carries a vehicle, the vehicle is locked and re-checked for overlapping
	// active trips; ErrVehicleConflict is returned if it is no longer free.
	CreateTrip(ctx context.Context, trip *model.Trip) error

	GetTrip(ctx context.Context, id string) (*model.Trip, error)

	// ListUnassigned returns scheduled trips with no driver and pickup at or
	// after now, ordered by pickup time.
	ListUnassigned(ctx context.Context, now time.Time) ([]model.Trip, error)

	// ListDriverTrips returns a driver's trips with pickup in [from, to], ordered by pickup time.
	ListDriverTrips(ctx context.Context, driverID string, from, to time.Time) ([]model.Trip, error)

	// ClaimTrip sets driver_id and status=confirmed only while driver_id is null.
	ClaimTrip(ctx context.Context, tripID, driverID string) (*model.Trip, error)

	// TransitionStatus moves a trip to `to` only if its current status is one of `from`.
	TransitionStatus(ctx context.Context, tripID string, from []model.TripStatus, to model.TripStatus) (*model.Trip, error)

	// ApplyDispatchUpdate writes an externally authored partial update without conflict checks.
	ApplyDispatchUpdate(ctx context.Context, tripID string, upd model.DispatchUpdate) (*model.Trip, error)
}

// Store is the full persisted-store contract.
type Store interface {
	FleetStore
	TripStore
}

// DefaultTxTimeout bounds a locking transaction, including lock wait time.
const DefaultTxTimeout = 5 * time.Second

// ApplyDispatch returns trip with upd applied, following the dispatch rules:
// a driver forces confirmed, a dropoff time forces completed.
func ApplyDispatch(trip model.Trip, upd model.DispatchUpdate) model.Trip {
	if upd.DriverID != nil {
		id := *upd.DriverID
		trip.DriverID = &id
		trip.Status = model.TripConfirmed
	}
	if upd.Status != nil {
		trip.Status = *upd.Status
	}
	if upd.ActualPickupTime != nil {
		t := *upd.ActualPickupTime
		trip.ActualPickupTime = &t
	}
	if upd.ActualDropoffTime != nil {
		t := *upd.ActualDropoffTime
		trip.ActualDropoffTime = &t
		trip.Status = model.TripCompleted
	}
	if upd.Mileage != nil {
		m := *upd.Mileage
		trip.ActualMileage = &m
	}
	if upd.Duration != nil {
		d := *upd.Duration
		trip.ActualDuration = &d
	}
	return trip
}

// activeStatuses returns model.ActiveTripStatuses as query arguments.
func activeStatuses() []string {
	out := make([]string, len(model.ActiveTripStatuses))
	for i, st := range model.ActiveTripStatuses {
		out[i] = string(st)
	}
	return out
}
