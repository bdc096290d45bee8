// Package memstore is an in-process implementation of repository.Store.
//
// It mirrors the PostgreSQL repository's semantics (ordering, CAS claims,
// vehicle re-check on create) under a single mutex and is used for the
// memory backend and for service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/timewindow"
)

// Store holds vehicles, drivers and trips in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]model.Vehicle
	drivers  map[string]model.Driver
	trips    map[string]model.Trip

	now      func() time.Time
	onChange func(model.TripChange)
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for created_at/updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithChangeHook registers fn to receive every trip change after it is applied.
func WithChangeHook(fn func(model.TripChange)) Option {
	return func(s *Store) { s.onChange = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		vehicles: make(map[string]model.Vehicle),
		drivers:  make(map[string]model.Driver),
		trips:    make(map[string]model.Trip),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetChangeHook replaces the change hook. It is used when the hook's owner is
// built after the store.
func (s *Store) SetChangeHook(fn func(model.TripChange)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// ─── Seeding ────────────────────────────────────────────────

// AddVehicle inserts or replaces a vehicle. An empty ID gets a fresh uuid.
func (s *Store) AddVehicle(v model.Vehicle) model.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}
	now := s.now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.vehicles[v.ID] = v
	return v
}

// AddDriver inserts or replaces a driver. An empty ID gets a fresh uuid.
func (s *Store) AddDriver(d model.Driver) model.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = model.DriverActive
	}
	now := s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	s.drivers[d.ID] = d
	return d
}

// AddTrip inserts a trip without any conflict checks.
func (s *Store) AddTrip(t model.Trip) model.Trip {
	s.mu.Lock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TripScheduled
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.trips[t.ID] = t
	hook := s.onChange
	s.mu.Unlock()

	emit(hook, model.TripChange{Op: model.ChangeInsert, TripID: t.ID, DriverID: cloneStr(t.DriverID)})
	return t
}

// DeleteTrip removes a trip.
func (s *Store) DeleteTrip(id string) bool {
	s.mu.Lock()
	t, ok := s.trips[id]
	delete(s.trips, id)
	hook := s.onChange
	s.mu.Unlock()

	if ok {
		emit(hook, model.TripChange{Op: model.ChangeDelete, TripID: id, OldDriverID: cloneStr(t.DriverID)})
	}
	return ok
}

// ─── FleetStore ─────────────────────────────────────────────

func (s *Store) VehiclesByClass(_ context.Context, class model.VehicleClass, status model.VehicleStatus) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Vehicle{}
	for _, v := range s.vehicles {
		if v.Class == class && v.Status == status {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DriversByStatus(_ context.Context, status model.DriverStatus) ([]model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Driver{}
	for _, d := range s.drivers {
		if d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ActiveTripsBetween(_ context.Context, from, to time.Time) ([]model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterTrips(func(t model.Trip) bool {
		return t.Status.IsActive() && t.PickupTime.After(from) && t.PickupTime.Before(to)
	})
	return out, nil
}

func (s *Store) VehiclesWithTrips(_ context.Context, status model.VehicleStatus) ([]model.VehicleTrips, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.VehicleTrips{}
	for _, v := range s.vehicles {
		if v.Status != status {
			continue
		}
		id := v.ID
		trips := s.filterTrips(func(t model.Trip) bool {
			return t.Status.IsActive() && t.VehicleID != nil && *t.VehicleID == id
		})
		out = append(out, model.VehicleTrips{Vehicle: v, Trips: trips})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vehicle.ID < out[j].Vehicle.ID })
	return out, nil
}

// ─── TripStore ──────────────────────────────────────────────

func (s *Store) CreateTrip(_ context.Context, trip *model.Trip) error {
	s.mu.Lock()

	if trip.VehicleID != nil {
		v, ok := s.vehicles[*trip.VehicleID]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("create trip: vehicle %s: %w", *trip.VehicleID, repository.ErrNotFound)
		}
		if v.Status != model.VehicleAvailable {
			s.mu.Unlock()
			return fmt.Errorf("create trip: vehicle %s is '%s': %w", v.ID, v.Status, repository.ErrVehicleConflict)
		}
		want := timewindow.ForPickup(trip.PickupTime)
		for _, o := range s.trips {
			if o.Status.IsActive() && o.VehicleID != nil && *o.VehicleID == v.ID &&
				timewindow.Overlaps(want, timewindow.ForPickup(o.PickupTime)) {
				s.mu.Unlock()
				return fmt.Errorf("create trip: vehicle %s: %w", v.ID, repository.ErrVehicleConflict)
			}
		}
	}

	trip.ID = uuid.NewString()
	now := s.now()
	trip.CreatedAt, trip.UpdatedAt = now, now
	s.trips[trip.ID] = *trip
	hook := s.onChange
	s.mu.Unlock()

	emit(hook, model.TripChange{Op: model.ChangeInsert, TripID: trip.ID, DriverID: cloneStr(trip.DriverID)})
	return nil
}

func (s *Store) GetTrip(_ context.Context, id string) (*model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[id]
	if !ok {
		return nil, fmt.Errorf("get trip %s: %w", id, repository.ErrNotFound)
	}
	return &t, nil
}

func (s *Store) ListUnassigned(_ context.Context, now time.Time) ([]model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterTrips(func(t model.Trip) bool {
		return t.DriverID == nil && t.Status == model.TripScheduled && !t.PickupTime.Before(now)
	}), nil
}

func (s *Store) ListDriverTrips(_ context.Context, driverID string, from, to time.Time) ([]model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterTrips(func(t model.Trip) bool {
		return t.DriverID != nil && *t.DriverID == driverID &&
			!t.PickupTime.Before(from) && !t.PickupTime.After(to)
	}), nil
}

func (s *Store) ClaimTrip(_ context.Context, tripID, driverID string) (*model.Trip, error) {
	s.mu.Lock()

	t, ok := s.trips[tripID]
	_, known := s.drivers[driverID]
	switch {
	case !known:
		s.mu.Unlock()
		return nil, fmt.Errorf("claim trip %s: driver %s: %w", tripID, driverID, repository.ErrDriverNotFound)
	case !ok:
		s.mu.Unlock()
		return nil, fmt.Errorf("claim trip %s: %w", tripID, repository.ErrNotFound)
	case t.DriverID != nil:
		s.mu.Unlock()
		return nil, fmt.Errorf("claim trip %s: %w", tripID, repository.ErrAlreadyAssigned)
	case t.Status != model.TripScheduled:
		s.mu.Unlock()
		return nil, fmt.Errorf("claim trip %s: %w", tripID, repository.ErrNotClaimable)
	}

	want := timewindow.ForPickup(t.PickupTime)
	for _, o := range s.trips {
		if o.ID != t.ID && o.Status.IsActive() && o.DriverID != nil && *o.DriverID == driverID &&
			timewindow.Overlaps(want, timewindow.ForPickup(o.PickupTime)) {
			s.mu.Unlock()
			return nil, fmt.Errorf("claim trip %s: %w", tripID, repository.ErrDriverBusy)
		}
	}

	id := driverID
	t.DriverID = &id
	t.Status = model.TripConfirmed
	t.UpdatedAt = s.now()
	s.trips[tripID] = t
	hook := s.onChange
	s.mu.Unlock()

	emit(hook, model.TripChange{Op: model.ChangeUpdate, TripID: tripID, DriverID: cloneStr(t.DriverID)})
	return &t, nil
}

func (s *Store) TransitionStatus(_ context.Context, tripID string, from []model.TripStatus, to model.TripStatus) (*model.Trip, error) {
	s.mu.Lock()

	t, ok := s.trips[tripID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("transition trip %s: %w", tripID, repository.ErrNotFound)
	}
	allowed := false
	for _, st := range from {
		if t.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		s.mu.Unlock()
		return nil, fmt.Errorf("transition trip %s from '%s' to '%s': %w", tripID, t.Status, to, repository.ErrInvalidTransition)
	}

	t.Status = to
	t.UpdatedAt = s.now()
	s.trips[tripID] = t
	hook := s.onChange
	s.mu.Unlock()

	emit(hook, model.TripChange{Op: model.ChangeUpdate, TripID: tripID, DriverID: cloneStr(t.DriverID), OldDriverID: cloneStr(t.DriverID)})
	return &t, nil
}

func (s *Store) ApplyDispatchUpdate(_ context.Context, tripID string, upd model.DispatchUpdate) (*model.Trip, error) {
	s.mu.Lock()

	cur, ok := s.trips[tripID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("dispatch update %s: %w", tripID, repository.ErrNotFound)
	}
	if upd.DriverID != nil {
		if _, known := s.drivers[*upd.DriverID]; !known {
			s.mu.Unlock()
			return nil, fmt.Errorf("dispatch update %s: driver %s: %w", tripID, *upd.DriverID, repository.ErrDriverNotFound)
		}
	}
	next := repository.ApplyDispatch(cur, upd)
	next.UpdatedAt = s.now()
	s.trips[tripID] = next
	hook := s.onChange
	s.mu.Unlock()

	emit(hook, model.TripChange{
		Op:          model.ChangeUpdate,
		TripID:      tripID,
		DriverID:    cloneStr(next.DriverID),
		OldDriverID: cloneStr(cur.DriverID),
	})
	return &next, nil
}

// ─── helpers ────────────────────────────────────────────────

// filterTrips returns matching trips ordered by pickup time then id.
// Caller must hold s.mu.
func (s *Store) filterTrips(keep func(model.Trip) bool) []model.Trip {
	out := []model.Trip{}
	for _, t := range s.trips {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PickupTime.Equal(out[j].PickupTime) {
			return out[i].PickupTime.Before(out[j].PickupTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func emit(hook func(model.TripChange), c model.TripChange) {
	if hook != nil {
		hook(c)
	}
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
