package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
)

// ErrEmptyDispatchUpdate is returned when an update carries no field.
var ErrEmptyDispatchUpdate = errors.New("dispatch update carries no fields")

// DispatchService applies updates pushed by the external dispatch system.
//
// The dispatch system is authoritative: its updates are written without
// conflict checks. A driver assignment implies confirmed; a dropoff time
// implies completed and wins over any explicit status in the same update.
type DispatchService struct {
	trips   repository.TripStore
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewDispatchService creates a dispatch adapter.
func NewDispatchService(trips repository.TripStore, m *metrics.Metrics) *DispatchService {
	return &DispatchService{trips: trips, metrics: m, log: logger.New("dispatch")}
}

// ApplyUpdate writes upd to tripID and returns the updated trip.
func (s *DispatchService) ApplyUpdate(ctx context.Context, tripID string, upd model.DispatchUpdate) (*model.Trip, error) {
	if upd.Empty() {
		return nil, ErrEmptyDispatchUpdate
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("dispatch: status '%s': %w", *upd.Status, ErrInvalidTransition)
	}

	trip, err := s.trips.ApplyDispatchUpdate(ctx, tripID, upd)
	if errors.Is(err, repository.ErrDriverNotFound) {
		return nil, ErrDriverNotFound
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: apply: %w", err)
	}

	s.metrics.RecordDispatch(string(trip.Status))
	s.log.Info().
		Str("trip_id", tripID).
		Str("status", string(trip.Status)).
		Bool("driver_assigned", upd.DriverID != nil).
		Msg("dispatch update applied")
	return trip, nil
}
