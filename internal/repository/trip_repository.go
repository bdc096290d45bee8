package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/pkg/timewindow"
)

// tripColumns is the canonical column list scanned by scanTrip.
const tripColumns = `
	id::text, vehicle_id::text, driver_id::text,
	customer_name, pickup_location, dropoff_location,
	pickup_time, estimated_duration, trip_type, status,
	COALESCE(special_instructions, ''), COALESCE(fare_amount, 0)::float8,
	platform_source, corporate_account_id,
	actual_pickup_time, actual_dropoff_time, actual_mileage::float8, actual_duration,
	created_at, updated_at`

// TripRepository is the PostgreSQL-backed TripStore.
type TripRepository struct {
	pool *pgxpool.Pool
}

// NewTripRepository creates a new trip repository.
func NewTripRepository(pool *pgxpool.Pool) *TripRepository {
	return &TripRepository{pool: pool}
}

// ─── Create ─────────────────────────────────────────────────

// CreateTrip inserts a scheduled trip.
//
// Concurrency strategy: PESSIMISTIC LOCKING
//
//	T1: BEGIN → SELECT vehicle FOR UPDATE → (vehicle row LOCKED)
//	T2: BEGIN → SELECT vehicle FOR UPDATE → (BLOCKS)
//	T1: no overlap → INSERT trip → COMMIT → (lock released)
//	T2: (unblocked) → overlap check sees T1's trip → ROLLBACK → ErrVehicleConflict
//
// This closes the window between the availability check and the insert.
func (r *TripRepository) CreateTrip(ctx context.Context, trip *model.Trip) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("create trip: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if trip.VehicleID != nil {
		vehicleID := *trip.VehicleID
		if !isUUID(vehicleID) {
			return fmt.Errorf("create trip: vehicle %s: %w", vehicleID, ErrNotFound)
		}

		// ── Step 1: LOCK the vehicle row ────────────────
		var status model.VehicleStatus
		err = tx.QueryRow(txCtx, `
			SELECT status FROM vehicles WHERE id = $1 FOR UPDATE
		`, vehicleID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("create trip: vehicle %s: %w", vehicleID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("create trip: lock vehicle %s: %w", vehicleID, err)
		}
		if status != model.VehicleAvailable {
			return fmt.Errorf("create trip: vehicle %s is '%s': %w", vehicleID, status, ErrVehicleConflict)
		}

		// ── Step 2: Re-check overlapping trips ──────────
		from, to := timewindow.ForPickup(trip.PickupTime).CandidateRange()
		var overlapping int
		err = tx.QueryRow(txCtx, `
			SELECT COUNT(*)::int
			FROM trips
			WHERE vehicle_id = $1
			  AND status = ANY($4)
			  AND pickup_time > $2
			  AND pickup_time < $3
		`, vehicleID, from, to, activeStatuses()).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("create trip: check vehicle %s overlap: %w", vehicleID, err)
		}
		if overlapping > 0 {
			return fmt.Errorf("create trip: vehicle %s: %w", vehicleID, ErrVehicleConflict)
		}
	}

	// ── Step 3: INSERT ──────────────────────────────────
	err = tx.QueryRow(txCtx, `
		INSERT INTO trips (
			vehicle_id, driver_id, customer_name, pickup_location, dropoff_location,
			pickup_time, estimated_duration, trip_type, status,
			special_instructions, fare_amount, platform_source, corporate_account_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id::text, created_at, updated_at
	`,
		trip.VehicleID, trip.DriverID, trip.CustomerName, trip.PickupLocation, trip.DropoffLocation,
		trip.PickupTime, trip.EstimatedDuration, trip.TripType, trip.Status,
		trip.SpecialInstructions, trip.FareAmount, trip.PlatformSource, trip.CorporateAccountID,
	).Scan(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create trip: insert: %w", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("create trip: commit: %w", err)
	}
	return nil
}

// ─── Reads ──────────────────────────────────────────────────

// GetTrip fetches a single trip by ID.
func (r *TripRepository) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get trip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

// ListUnassigned returns the unassigned pool.
// Uses the partial index idx_trips_unassigned (driver_id IS NULL).
func (r *TripRepository) ListUnassigned(ctx context.Context, now time.Time) ([]model.Trip, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE driver_id IS NULL
		  AND status = 'scheduled'
		  AND pickup_time >= $1
		ORDER BY pickup_time ASC, id ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list unassigned trips: %w", err)
	}
	return collectTrips(rows)
}

// ListDriverTrips returns a driver's trips in a pickup range.
func (r *TripRepository) ListDriverTrips(ctx context.Context, driverID string, from, to time.Time) ([]model.Trip, error) {
	if !isUUID(driverID) {
		return []model.Trip{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE driver_id = $1
		  AND pickup_time >= $2
		  AND pickup_time <= $3
		ORDER BY pickup_time ASC
	`, driverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list trips of driver %s: %w", driverID, err)
	}
	return collectTrips(rows)
}

// ─── Claim (compare-and-swap) ───────────────────────────────

// ClaimTrip assigns the trip to a driver if and only if nobody holds it yet.
//
// Concurrency strategy:
//
//	Same trip:    the UPDATE ... WHERE driver_id IS NULL is a compare-and-swap;
//	              the second claimer re-evaluates against the committed row,
//	              matches nothing and gets ErrAlreadyAssigned.
//	Same driver:  the driver row is locked FOR UPDATE first, so claims by one
//	              driver on different trips run one after another and the
//	              overlap check sees the earlier claim (ErrDriverBusy).
func (r *TripRepository) ClaimTrip(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	if !isUUID(tripID) {
		return nil, fmt.Errorf("claim trip %s: %w", tripID, ErrNotFound)
	}
	if !isUUID(driverID) {
		return nil, fmt.Errorf("claim trip %s: driver %s: %w", tripID, driverID, ErrDriverNotFound)
	}
	window := int64(timewindow.OccupancyDuration / time.Second)

	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("claim trip %s: begin tx: %w", tripID, err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: LOCK the driver row ─────────────────────
	var one int
	err = tx.QueryRow(txCtx, `SELECT 1 FROM drivers WHERE id = $1 FOR UPDATE`, driverID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim trip %s: driver %s: %w", tripID, driverID, ErrDriverNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("claim trip %s: lock driver %s: %w", tripID, driverID, err)
	}

	// ── Step 2: CAS the trip ────────────────────────────
	t, err := scanTrip(tx.QueryRow(txCtx, `
		UPDATE trips t
		SET driver_id = $2, status = 'confirmed', updated_at = now()
		WHERE t.id = $1
		  AND t.driver_id IS NULL
		  AND t.status = 'scheduled'
		  AND NOT EXISTS (
		        SELECT 1 FROM trips o
		        WHERE o.driver_id = $2
		          AND o.id <> t.id
		          AND o.status = ANY($4)
		          AND o.pickup_time > t.pickup_time - $3 * interval '1 second'
		          AND o.pickup_time < t.pickup_time + $3 * interval '1 second'
		      )
		RETURNING `+tripColumns, tripID, driverID, window, activeStatuses()))
	if err == nil {
		if err := tx.Commit(txCtx); err != nil {
			return nil, fmt.Errorf("claim trip %s: commit: %w", tripID, err)
		}
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim trip %s: %w", tripID, err)
	}

	// ── Step 3: nothing matched, find out why ───────────
	var (
		currentDriver *string
		status        model.TripStatus
	)
	err = tx.QueryRow(txCtx, `
		SELECT driver_id::text, status FROM trips WHERE id = $1
	`, tripID).Scan(&currentDriver, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim trip %s: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("claim trip %s: classify: %w", tripID, err)
	}
	return nil, fmt.Errorf("claim trip %s: %w", tripID, classifyClaimMiss(currentDriver, status))
}

// classifyClaimMiss explains why a claim matched no row.
func classifyClaimMiss(currentDriver *string, status model.TripStatus) error {
	switch {
	case currentDriver != nil:
		return ErrAlreadyAssigned
	case status != model.TripScheduled:
		return ErrNotClaimable
	default:
		return ErrDriverBusy
	}
}

// ─── Status writes ──────────────────────────────────────────

// TransitionStatus performs a guarded status change.
func (r *TripRepository) TransitionStatus(
	ctx context.Context,
	tripID string,
	from []model.TripStatus,
	to model.TripStatus,
) (*model.Trip, error) {
	if !isUUID(tripID) {
		return nil, ErrNotFound
	}
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE trips
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+tripColumns, tripID, to, allowed)

	t, err := scanTrip(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition trip %s: %w", tripID, err)
	}

	var current model.TripStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, tripID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition trip %s: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transition trip %s: %w", tripID, err)
	}
	return nil, fmt.Errorf("transition trip %s from '%s' to '%s': %w", tripID, current, to, ErrInvalidTransition)
}

// ApplyDispatchUpdate applies an authoritative external update. No conflict
// checking is done on this path.
func (r *TripRepository) ApplyDispatchUpdate(ctx context.Context, tripID string, upd model.DispatchUpdate) (*model.Trip, error) {
	if !isUUID(tripID) {
		return nil, fmt.Errorf("dispatch update %s: %w", tripID, ErrNotFound)
	}
	if upd.DriverID != nil && !isUUID(*upd.DriverID) {
		return nil, fmt.Errorf("dispatch update %s: driver %s: %w", tripID, *upd.DriverID, ErrDriverNotFound)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("dispatch update: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanTrip(tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, tripID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dispatch update %s: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch update %s: lock: %w", tripID, err)
	}

	next := ApplyDispatch(*current, upd)

	updated, err := scanTrip(tx.QueryRow(ctx, `
		UPDATE trips
		SET driver_id = $2, status = $3,
		    actual_pickup_time = $4, actual_dropoff_time = $5,
		    actual_mileage = $6, actual_duration = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+tripColumns,
		tripID, next.DriverID, next.Status,
		next.ActualPickupTime, next.ActualDropoffTime,
		next.ActualMileage, next.ActualDuration,
	))
	if isFKViolation(err) {
		return nil, fmt.Errorf("dispatch update %s: %w", tripID, ErrDriverNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch update %s: write: %w", tripID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispatch update %s: commit: %w", tripID, err)
	}
	return updated, nil
}

// ─── Scanning helpers ───────────────────────────────────────

// fkViolation is the SQLSTATE for a foreign key violation.
const fkViolation = "23503"

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolation
}

// isUUID reports whether id can be compared with a uuid column without a cast
// error. Anything else cannot name an existing row.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanTrip(row pgx.Row) (*model.Trip, error) {
	t := &model.Trip{}
	err := row.Scan(
		&t.ID, &t.VehicleID, &t.DriverID,
		&t.CustomerName, &t.PickupLocation, &t.DropoffLocation,
		&t.PickupTime, &t.EstimatedDuration, &t.TripType, &t.Status,
		&t.SpecialInstructions, &t.FareAmount,
		&t.PlatformSource, &t.CorporateAccountID,
		&t.ActualPickupTime, &t.ActualDropoffTime, &t.ActualMileage, &t.ActualDuration,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func collectTrips(rows pgx.Rows) ([]model.Trip, error) {
	defer rows.Close()

	trips := []model.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}
