package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
	"github.com/shiva/tripmatch/pkg/timewindow"
)

// FleetCache stores fleet snapshots between change notifications.
type FleetCache interface {
	Get(ctx context.Context) (*model.FleetStatus, error)
	Set(ctx context.Context, fs *model.FleetStatus) error
	Invalidate(ctx context.Context) error
}

// FleetService reports real-time availability of every available vehicle.
type FleetService struct {
	fleet repository.FleetStore
	cache FleetCache
	now   func() time.Time
	log   zerolog.Logger
}

// NewFleetService creates a fleet status service. cache may be nil.
func NewFleetService(fleet repository.FleetStore, cache FleetCache, now func() time.Time) *FleetService {
	if now == nil {
		now = time.Now
	}
	return &FleetService{fleet: fleet, cache: cache, now: now, log: logger.New("fleet")}
}

// Status returns the current fleet snapshot, from cache when possible.
// Cache failures degrade to a direct read.
func (s *FleetService) Status(ctx context.Context) (*model.FleetStatus, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("fleet cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	vehicles, err := s.fleet.VehiclesWithTrips(ctx, model.VehicleAvailable)
	if err != nil {
		return nil, fmt.Errorf("fleet: status: %w", err)
	}

	now := s.now().UTC()
	fs := &model.FleetStatus{
		Fleet:       make([]model.FleetVehicleStatus, 0, len(vehicles)),
		LastUpdated: now,
	}
	for _, vt := range vehicles {
		fs.Fleet = append(fs.Fleet, VehicleStatusAt(vt, now))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, fs); err != nil {
			s.log.Warn().Err(err).Msg("fleet cache write failed")
		}
	}
	return fs, nil
}

// Invalidate drops the cached snapshot. Called on every trip change.
func (s *FleetService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("fleet cache invalidation failed")
	}
}

// VehicleStatusAt derives one vehicle's status at instant now.
//
//   - currentTrip: a confirmed or in-progress trip whose window contains now.
//   - nextAvailableTime: end of the window of the latest upcoming scheduled
//     or confirmed trip.
func VehicleStatusAt(vt model.VehicleTrips, now time.Time) model.FleetVehicleStatus {
	out := model.FleetVehicleStatus{
		VehicleID:         vt.Vehicle.ID,
		IsAvailable:       true,
		MaintenanceStatus: vt.Vehicle.Status,
	}

	var latest *time.Time
	for i := range vt.Trips {
		t := vt.Trips[i]
		w := timewindow.ForPickup(t.PickupTime)

		if out.CurrentTrip == nil && w.Contains(now) &&
			(t.Status == model.TripConfirmed || t.Status == model.TripInProgress) {
			out.CurrentTrip = &t
			out.IsAvailable = false
		}

		if t.PickupTime.After(now) && (t.Status == model.TripScheduled || t.Status == model.TripConfirmed) {
			if latest == nil || t.PickupTime.After(*latest) {
				p := t.PickupTime
				latest = &p
			}
		}
	}

	if latest != nil {
		end := timewindow.ForPickup(*latest).End
		out.NextAvailableTime = &end
	}
	return out
}
