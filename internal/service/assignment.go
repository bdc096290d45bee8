package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
)

// ─── Assignment Errors ──────────────────────────────────────

var (
	ErrTripNotFound     = errors.New("trip not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrAlreadyAssigned  = errors.New("trip was already accepted by another driver")
	ErrDriverBusy       = errors.New("driver already has a trip in this time window")
	ErrTripNotClaimable = errors.New("trip is no longer open for acceptance")
)

// UpcomingHorizon is how far ahead a driver's upcoming list reaches.
const UpcomingHorizon = 7 * 24 * time.Hour

// WorkingSet is everything a driver view renders.
type WorkingSet struct {
	Today      []model.Trip `json:"today"`
	Upcoming   []model.Trip `json:"upcoming"`
	Unassigned []model.Trip `json:"unassigned"`
}

// ─── AssignmentService ──────────────────────────────────────

// AssignmentService runs the accept/decline workflow over the unassigned pool.
//
// Concurrency model:
//   - Accept is a single compare-and-swap in the store; no in-process lock.
//   - Of N concurrent accepts on one trip, exactly one succeeds and the rest
//     get ErrAlreadyAssigned.
//   - Declines are per-view and never written to the store.
type AssignmentService struct {
	trips   repository.TripStore
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewAssignmentService creates an assignment coordinator. A nil clock uses time.Now.
func NewAssignmentService(trips repository.TripStore, m *metrics.Metrics, now func() time.Time) *AssignmentService {
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		trips:   trips,
		metrics: m,
		now:     now,
		log:     logger.New("assignment"),
	}
}

// Accept claims tripID for driverID.
func (s *AssignmentService) Accept(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	trip, err := s.trips.ClaimTrip(ctx, tripID, driverID)
	if err != nil {
		cerr := s.classifyError(err)
		s.metrics.RecordAccept(acceptOutcome(cerr))
		s.log.Info().Err(cerr).Str("trip_id", tripID).Str("driver_id", driverID).Msg("accept refused")
		return nil, cerr
	}

	s.metrics.RecordAccept("accepted")
	s.log.Info().
		Str("trip_id", tripID).
		Str("driver_id", driverID).
		Bool("emergency", trip.IsEmergency()).
		Msg("trip accepted")
	return trip, nil
}

// UnassignedPool lists trips waiting for a driver, earliest pickup first.
func (s *AssignmentService) UnassignedPool(ctx context.Context) ([]model.Trip, error) {
	trips, err := s.trips.ListUnassigned(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("assignment: unassigned pool: %w", err)
	}
	return trips, nil
}

// PendingAssignment returns the trip to surface to a driver who has declined
// the given ids, or nil when nothing is left.
func (s *AssignmentService) PendingAssignment(ctx context.Context, declined map[string]bool) (*model.Trip, error) {
	pool, err := s.UnassignedPool(ctx)
	if err != nil {
		return nil, err
	}
	return SelectPending(pool, declined), nil
}

// WorkingSet loads a driver's today, upcoming and unassigned lists.
func (s *AssignmentService) WorkingSet(ctx context.Context, driverID string) (*WorkingSet, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	today, err := s.trips.ListDriverTrips(ctx, driverID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("assignment: today's trips: %w", err)
	}
	upcoming, err := s.trips.ListDriverTrips(ctx, driverID, now, now.Add(UpcomingHorizon))
	if err != nil {
		return nil, fmt.Errorf("assignment: upcoming trips: %w", err)
	}
	pool, err := s.UnassignedPool(ctx)
	if err != nil {
		return nil, err
	}

	return &WorkingSet{Today: today, Upcoming: upcoming, Unassigned: pool}, nil
}

// SelectPending picks the next trip to offer: any emergency trip beats any
// routine one, then earliest pickup wins. Declined ids are skipped.
func SelectPending(pool []model.Trip, declined map[string]bool) *model.Trip {
	candidates := make([]model.Trip, 0, len(pool))
	for _, t := range pool {
		if !declined[t.ID] && t.Unassigned() {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ei, ej := candidates[i].IsEmergency(), candidates[j].IsEmergency()
		if ei != ej {
			return ei
		}
		return candidates[i].PickupTime.Before(candidates[j].PickupTime)
	})
	return &candidates[0]
}

func (s *AssignmentService) classifyError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrTripNotFound
	case errors.Is(err, repository.ErrDriverNotFound):
		return ErrDriverNotFound
	case errors.Is(err, repository.ErrAlreadyAssigned):
		return ErrAlreadyAssigned
	case errors.Is(err, repository.ErrDriverBusy):
		return ErrDriverBusy
	case errors.Is(err, repository.ErrNotClaimable):
		return ErrTripNotClaimable
	default:
		return fmt.Errorf("assignment: accept: %w", err)
	}
}

func acceptOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrDriverBusy):
		return "driver_busy"
	case errors.Is(err, ErrTripNotFound):
		return "not_found"
	case errors.Is(err, ErrDriverNotFound):
		return "driver_not_found"
	case errors.Is(err, ErrTripNotClaimable):
		return "not_claimable"
	default:
		return "error"
	}
}

// ─── AssignmentView ─────────────────────────────────────────

// AssignmentView is one driver's session over the unassigned pool. Declines
// live only here: a new view starts with nothing declined.
type AssignmentView struct {
	svc      *AssignmentService
	driverID string

	mu       sync.Mutex
	declined map[string]bool
	pending  *model.Trip
}

// NewView opens a view for driverID.
func (s *AssignmentService) NewView(driverID string) *AssignmentView {
	return &AssignmentView{svc: s, driverID: driverID, declined: make(map[string]bool)}
}

// Refresh re-reads the pool and returns the trip now surfaced, or nil.
func (v *AssignmentView) Refresh(ctx context.Context) (*model.Trip, error) {
	v.mu.Lock()
	declined := make(map[string]bool, len(v.declined))
	for id := range v.declined {
		declined[id] = true
	}
	v.mu.Unlock()

	next, err := v.svc.PendingAssignment(ctx, declined)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.pending = next
	v.mu.Unlock()
	return next, nil
}

// Pending returns the trip surfaced by the last Refresh.
func (v *AssignmentView) Pending() *model.Trip {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

// Decline hides tripID from this view and clears it if it was pending.
func (v *AssignmentView) Decline(tripID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.declined[tripID] = true
	if v.pending != nil && v.pending.ID == tripID {
		v.pending = nil
	}
}

// Accept claims the pending trip for the view's driver.
func (v *AssignmentView) Accept(ctx context.Context, tripID string) (*model.Trip, error) {
	trip, err := v.svc.Accept(ctx, tripID, v.driverID)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	if v.pending != nil && v.pending.ID == tripID {
		v.pending = nil
	}
	v.mu.Unlock()
	return trip, nil
}
