package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
)

// ─── Lifecycle Errors ───────────────────────────────────────

var (
	ErrInvalidTransition = errors.New("trip cannot move to the requested status")
	ErrNotTripDriver     = errors.New("trip is not assigned to this driver")
)

// allowedFrom lists, per target status, the statuses a driver may move a trip
// out of. Confirmation only happens through Accept or dispatch.
var allowedFrom = map[model.TripStatus][]model.TripStatus{
	model.TripInProgress: {model.TripConfirmed},
	model.TripCompleted:  {model.TripInProgress},
	model.TripCancelled:  {model.TripScheduled, model.TripConfirmed},
}

// ─── LifecycleService ───────────────────────────────────────

// LifecycleService applies driver-reported progress and cancellations.
//
// State transitions:
//   - CONFIRMED   → IN-PROGRESS: driver picked the customer up.
//   - IN-PROGRESS → COMPLETED:   driver dropped the customer off.
//   - SCHEDULED, CONFIRMED → CANCELLED.
//   - Anything else: ErrInvalidTransition.
//
// The check and the write are one guarded UPDATE, so a concurrent dispatch
// update cannot be overwritten by a stale driver request.
type LifecycleService struct {
	trips repository.TripStore
	log   zerolog.Logger
}

// NewLifecycleService creates a lifecycle service.
func NewLifecycleService(trips repository.TripStore) *LifecycleService {
	return &LifecycleService{trips: trips, log: logger.New("lifecycle")}
}

// UpdateStatus moves tripID to status. When driverID is non-empty the trip
// must be assigned to that driver.
func (s *LifecycleService) UpdateStatus(ctx context.Context, tripID, driverID string, to model.TripStatus) (*model.Trip, error) {
	from, ok := allowedFrom[to]
	if !ok {
		return nil, ErrInvalidTransition
	}

	if driverID != "" {
		current, err := s.trips.GetTrip(ctx, tripID)
		if err != nil {
			return nil, s.classifyError(err)
		}
		if current.DriverID == nil || *current.DriverID != driverID {
			return nil, ErrNotTripDriver
		}
	}

	trip, err := s.trips.TransitionStatus(ctx, tripID, from, to)
	if err != nil {
		return nil, s.classifyError(err)
	}

	s.log.Info().Str("trip_id", tripID).Str("status", string(to)).Msg("trip status updated")
	return trip, nil
}

// Cancel cancels a scheduled or confirmed trip.
func (s *LifecycleService) Cancel(ctx context.Context, tripID string) (*model.Trip, error) {
	return s.UpdateStatus(ctx, tripID, "", model.TripCancelled)
}

func (s *LifecycleService) classifyError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrTripNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return ErrInvalidTransition
	default:
		return fmt.Errorf("lifecycle: %w", err)
	}
}
