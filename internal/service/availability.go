package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
	"github.com/shiva/tripmatch/pkg/timewindow"
)

// ─── Availability Errors ────────────────────────────────────

// ErrStoreUnavailable is returned alongside a negative verdict when the
// store could not be read. The verdict itself carries no conflicts.
var ErrStoreUnavailable = errors.New("store unavailable")

// AvailabilityQuery describes a prospective trip.
type AvailabilityQuery struct {
	PickupTime  time.Time
	Passengers  int
	ServiceType model.ServiceType

	// VehicleClass overrides the class derived from Passengers when set.
	VehicleClass model.VehicleClass
}

// Availability is the verdict for a prospective trip.
type Availability struct {
	Available         bool               `json:"available"`
	AssignedVehicleID *string            `json:"assignedVehicleId"`
	VehicleClass      model.VehicleClass `json:"vehicleClass"`
	DriverAvailable   bool               `json:"driverAvailable"`
	ConflictingTrips  []model.Trip       `json:"conflictingTrips"`
}

// ─── AvailabilityService ────────────────────────────────────

// AvailabilityService decides whether a vehicle of the right class and an
// active driver are both free for the occupancy window of a pickup.
//
// Algorithm:
//
//  1. Resolve the vehicle class.
//  2. Fetch active trips whose pickup falls in the window's candidate range
//     and keep those whose window truly overlaps.
//  3. Exclude class vehicles and active drivers held by those trips.
//  4. Available iff at least one vehicle and one driver remain; the vehicle
//     with the lowest id is proposed.
//
// Read-only: the verdict is advisory until CreateTrip re-checks the vehicle.
type AvailabilityService struct {
	fleet   repository.FleetStore
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewAvailabilityService creates an availability matcher.
func NewAvailabilityService(fleet repository.FleetStore, m *metrics.Metrics) *AvailabilityService {
	return &AvailabilityService{
		fleet:   fleet,
		metrics: m,
		log:     logger.New("availability"),
	}
}

// Check evaluates q against the current store contents.
func (s *AvailabilityService) Check(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	class := q.VehicleClass
	if class == "" {
		class = ResolveVehicleClass(q.Passengers, q.ServiceType)
	}

	result, err := s.check(ctx, q.PickupTime, class)
	if err != nil {
		s.log.Error().Err(err).Time("pickup_time", q.PickupTime).Msg("availability check failed")
		s.metrics.RecordAvailability(string(class), false)
		return Availability{VehicleClass: class, ConflictingTrips: []model.Trip{}},
			fmt.Errorf("availability: %w: %w", ErrStoreUnavailable, err)
	}

	s.metrics.RecordAvailability(string(class), result.Available)
	return result, nil
}

func (s *AvailabilityService) check(ctx context.Context, pickup time.Time, class model.VehicleClass) (Availability, error) {
	want := timewindow.ForPickup(pickup)
	from, to := want.CandidateRange()

	// ── Step 1: Active trips near the window ────────────
	nearby, err := s.fleet.ActiveTripsBetween(ctx, from, to)
	if err != nil {
		return Availability{}, err
	}
	overlapping := make([]model.Trip, 0, len(nearby))
	busyVehicles := make(map[string]bool)
	busyDrivers := make(map[string]bool)
	for _, t := range nearby {
		if !t.Status.IsActive() || !timewindow.Overlaps(want, timewindow.ForPickup(t.PickupTime)) {
			continue
		}
		overlapping = append(overlapping, t)
		if t.VehicleID != nil {
			busyVehicles[*t.VehicleID] = true
		}
		if t.DriverID != nil {
			busyDrivers[*t.DriverID] = true
		}
	}

	// ── Step 2: Vehicles of the class ───────────────────
	vehicles, err := s.fleet.VehiclesByClass(ctx, class, model.VehicleAvailable)
	if err != nil {
		return Availability{}, err
	}
	classVehicles := make(map[string]bool, len(vehicles))
	var assigned *string
	for _, v := range vehicles {
		classVehicles[v.ID] = true
		if assigned == nil && !busyVehicles[v.ID] {
			id := v.ID
			assigned = &id
		}
	}

	// ── Step 3: Active drivers ──────────────────────────
	drivers, err := s.fleet.DriversByStatus(ctx, model.DriverActive)
	if err != nil {
		return Availability{}, err
	}
	activeDrivers := make(map[string]bool, len(drivers))
	driverFree := false
	for _, d := range drivers {
		activeDrivers[d.ID] = true
		if !busyDrivers[d.ID] {
			driverFree = true
		}
	}

	// ── Step 4: Verdict ─────────────────────────────────
	conflicts := []model.Trip{}
	for _, t := range overlapping {
		if (t.VehicleID != nil && classVehicles[*t.VehicleID]) ||
			(t.DriverID != nil && activeDrivers[*t.DriverID]) {
			conflicts = append(conflicts, t)
		}
	}

	return Availability{
		Available:         assigned != nil && driverFree,
		AssignedVehicleID: assigned,
		VehicleClass:      class,
		DriverAvailable:   driverFree,
		ConflictingTrips:  conflicts,
	}, nil
}
