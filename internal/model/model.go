// Package model contains domain models for the trip-assignment engine.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import (
	"strings"
	"time"
)

// ─── Enums ──────────────────────────────────────────────────

type VehicleClass string

const (
	ClassSedan     VehicleClass = "sedan"
	ClassSUV       VehicleClass = "suv"
	ClassVan       VehicleClass = "van"
	ClassLimousine VehicleClass = "limousine"
	ClassPartyBus  VehicleClass = "party-bus"
)

type VehicleStatus string

const (
	VehicleAvailable    VehicleStatus = "available"
	VehicleInUse        VehicleStatus = "in-use"
	VehicleMaintenance  VehicleStatus = "maintenance"
	VehicleOutOfService VehicleStatus = "out-of-service"
)

type DriverStatus string

const (
	DriverActive    DriverStatus = "active"
	DriverInactive  DriverStatus = "inactive"
	DriverSuspended DriverStatus = "suspended"
)

type TripStatus string

const (
	TripScheduled  TripStatus = "scheduled"
	TripConfirmed  TripStatus = "confirmed"
	TripInProgress TripStatus = "in-progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// ActiveTripStatuses are the statuses that occupy a vehicle or driver.
var ActiveTripStatuses = []TripStatus{TripScheduled, TripConfirmed, TripInProgress}

// IsActive reports whether the status occupies its vehicle and driver.
func (s TripStatus) IsActive() bool {
	return s == TripScheduled || s == TripConfirmed || s == TripInProgress
}

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	return s.IsActive() || s == TripCompleted || s == TripCancelled
}

type ServiceType string

const (
	ServiceAirport        ServiceType = "airport"
	ServiceHourly         ServiceType = "hourly"
	ServicePointToPoint   ServiceType = "point-to-point"
	ServiceWedding        ServiceType = "wedding"
	ServiceWineTour       ServiceType = "wine-tour"
	ServiceCorporate      ServiceType = "corporate"
	ServiceOrganTransport ServiceType = "organ_transport"
)

type Platform string

const (
	PlatformStandard   Platform = "standard"
	PlatformGNET       Platform = "gnet"
	PlatformGroundSpan Platform = "groundspan"
	PlatformCorporate  Platform = "corporate"
)

// EmergencyMarker flags a trip as emergency when present in its special instructions.
const EmergencyMarker = "EMERGENCY ORGAN TRANSPORT"

// ─── Domain Models ──────────────────────────────────────────

// Vehicle maps to the `vehicles` table.
type Vehicle struct {
	ID           string        `json:"id"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	LicensePlate string        `json:"license_plate"`
	Class        VehicleClass  `json:"type"`
	Capacity     int           `json:"capacity"`
	Status       VehicleStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Driver maps to the `drivers` table.
type Driver struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    DriverStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Trip maps to the `trips` table.
type Trip struct {
	ID                  string      `json:"id"`
	VehicleID           *string     `json:"vehicle_id"`
	DriverID            *string     `json:"driver_id"`
	CustomerName        string      `json:"customer_name"`
	PickupLocation      string      `json:"pickup_location"`
	DropoffLocation     *string     `json:"dropoff_location,omitempty"`
	PickupTime          time.Time   `json:"pickup_time"`
	EstimatedDuration   *int        `json:"estimated_duration,omitempty"` // minutes
	TripType            ServiceType `json:"trip_type"`
	Status              TripStatus  `json:"status"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	FareAmount          float64     `json:"fare_amount"`
	PlatformSource      Platform    `json:"platform_source"`
	CorporateAccountID  *string     `json:"corporate_account_id,omitempty"`
	ActualPickupTime    *time.Time  `json:"actual_pickup_time,omitempty"`
	ActualDropoffTime   *time.Time  `json:"actual_dropoff_time,omitempty"`
	ActualMileage       *float64    `json:"actual_mileage,omitempty"`
	ActualDuration      *int        `json:"actual_duration,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IsEmergency reports whether the trip is flagged for unconditional priority,
// either by its type or by the instruction marker.
func (t *Trip) IsEmergency() bool {
	return t.TripType == ServiceOrganTransport ||
		strings.Contains(t.SpecialInstructions, EmergencyMarker)
}

// Unassigned reports whether the trip belongs to the unassigned pool.
func (t *Trip) Unassigned() bool {
	return t.DriverID == nil
}

// ─── Dispatch / Fleet DTOs ──────────────────────────────────

// DispatchUpdate is a partial trip update pushed by the external dispatch system.
// Nil fields are left untouched.
type DispatchUpdate struct {
	DriverID          *string
	Status            *TripStatus
	ActualPickupTime  *time.Time
	ActualDropoffTime *time.Time
	Mileage           *float64
	Duration          *int
}

// Empty reports whether the update carries no field.
func (u DispatchUpdate) Empty() bool {
	return u.DriverID == nil && u.Status == nil && u.ActualPickupTime == nil &&
		u.ActualDropoffTime == nil && u.Mileage == nil && u.Duration == nil
}

// VehicleTrips is a vehicle joined with its non-terminal trips, used for fleet status.
type VehicleTrips struct {
	Vehicle Vehicle
	Trips   []Trip
}

// ─── Change Notifications ───────────────────────────────────

type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// TripChange describes one row-level change to the trips table. OldDriverID
// is set on updates and deletes; on deletes DriverID is nil.
type TripChange struct {
	Op          ChangeOp `json:"op"`
	TripID      string   `json:"trip_id"`
	DriverID    *string  `json:"driver_id"`
	OldDriverID *string  `json:"old_driver_id"`
}

// ─── Fleet Status ───────────────────────────────────────────

// FleetVehicleStatus is one vehicle's real-time availability.
type FleetVehicleStatus struct {
	VehicleID         string        `json:"vehicleId"`
	IsAvailable       bool          `json:"isAvailable"`
	CurrentTrip       *Trip         `json:"currentTrip,omitempty"`
	NextAvailableTime *time.Time    `json:"nextAvailableTime,omitempty"`
	MaintenanceStatus VehicleStatus `json:"maintenanceStatus"`
}

// FleetStatus is a point-in-time snapshot of the available fleet.
type FleetStatus struct {
	Fleet       []FleetVehicleStatus `json:"fleet"`
	LastUpdated time.Time            `json:"lastUpdated"`
}
