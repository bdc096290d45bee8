package model

import (
	"encoding/json"
	"time"
)

// BookingRequest is an externally submitted booking. It is never persisted
// as-is; only the derived Trip is stored.
type BookingRequest struct {
	CustomerID          string          `json:"customerId,omitempty"`
	CorporateAccountID  string          `json:"corporateAccountId,omitempty"`
	ServiceType         ServiceType     `json:"serviceType" validate:"required"`
	VehicleClass        VehicleClass    `json:"vehicleClass" validate:"required_without=PassengerCount,omitempty,oneof=sedan suv van limousine party-bus"`
	PickupDateTime      *time.Time      `json:"pickupDateTime" validate:"required"`
	PickupLocation      json.RawMessage `json:"pickupLocation" validate:"required"`
	DropoffLocation     json.RawMessage `json:"dropoffLocation,omitempty"`
	PassengerCount      int             `json:"passengerCount" validate:"required,gt=0"`
	TotalAmount         float64         `json:"totalAmount"`
	Platform            Platform        `json:"platform" validate:"required,oneof=standard gnet groundspan corporate"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
}

// LocationText renders a location payload the way the trips table stores it:
// plain strings are unquoted, anything else is kept as compact JSON.
func LocationText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
