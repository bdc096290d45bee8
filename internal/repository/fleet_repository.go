package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/tripmatch/internal/model"
)

const vehicleColumns = `
	id::text, make, model, license_plate, type, capacity, status, created_at, updated_at`

// FleetRepository is the PostgreSQL-backed FleetStore.
type FleetRepository struct {
	pool *pgxpool.Pool
}

// NewFleetRepository creates a new fleet repository.
func NewFleetRepository(pool *pgxpool.Pool) *FleetRepository {
	return &FleetRepository{pool: pool}
}

// VehiclesByClass returns vehicles of the given class and status.
// Uses idx_vehicles_type_status.
func (r *FleetRepository) VehiclesByClass(
	ctx context.Context,
	class model.VehicleClass,
	status model.VehicleStatus,
) ([]model.Vehicle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE type = $1 AND status = $2
		ORDER BY id ASC
	`, class, status)
	if err != nil {
		return nil, fmt.Errorf("vehicles by class %s: %w", class, err)
	}
	return collectVehicles(rows)
}

// DriversByStatus returns drivers in the given status.
func (r *FleetRepository) DriversByStatus(ctx context.Context, status model.DriverStatus) ([]model.Driver, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, status, created_at, updated_at
		FROM drivers
		WHERE status = $1
		ORDER BY id ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("drivers by status %s: %w", status, err)
	}
	defer rows.Close()

	drivers := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// ActiveTripsBetween returns active trips with pickup strictly inside (from, to).
func (r *FleetRepository) ActiveTripsBetween(ctx context.Context, from, to time.Time) ([]model.Trip, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE status = ANY($3)
		  AND pickup_time > $1
		  AND pickup_time < $2
		ORDER BY pickup_time ASC, id ASC
	`, from, to, activeStatuses())
	if err != nil {
		return nil, fmt.Errorf("active trips between: %w", err)
	}
	return collectTrips(rows)
}

// VehiclesWithTrips returns vehicles in a status with their active trips.
// Two queries instead of a join keep the scan code shared with the other readers.
func (r *FleetRepository) VehiclesWithTrips(ctx context.Context, status model.VehicleStatus) ([]model.VehicleTrips, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE status = $1
		ORDER BY id ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("vehicles with trips: %w", err)
	}
	vehicles, err := collectVehicles(rows)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return []model.VehicleTrips{}, nil
	}

	ids := make([]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
	}

	tripRows, err := r.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE vehicle_id::text = ANY($1)
		  AND status = ANY($2)
		ORDER BY pickup_time ASC
	`, ids, activeStatuses())
	if err != nil {
		return nil, fmt.Errorf("vehicles with trips: trips: %w", err)
	}
	trips, err := collectTrips(tripRows)
	if err != nil {
		return nil, err
	}

	byVehicle := make(map[string][]model.Trip, len(vehicles))
	for _, t := range trips {
		if t.VehicleID != nil {
			byVehicle[*t.VehicleID] = append(byVehicle[*t.VehicleID], t)
		}
	}

	out := make([]model.VehicleTrips, len(vehicles))
	for i, v := range vehicles {
		out[i] = model.VehicleTrips{Vehicle: v, Trips: byVehicle[v.ID]}
	}
	return out, nil
}

func collectVehicles(rows pgx.Rows) ([]model.Vehicle, error) {
	defer rows.Close()

	vehicles := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(
			&v.ID, &v.Make, &v.Model, &v.LicensePlate, &v.Class,
			&v.Capacity, &v.Status, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
