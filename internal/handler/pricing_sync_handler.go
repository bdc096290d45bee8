package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/service"
	"github.com/shiva/tripmatch/pkg/logger"
)

// PricingSyncHandler serves the integration surface used by the pricing tool
// and the external dispatch system.
type PricingSyncHandler struct {
	availability *service.AvailabilityService
	booking      *service.BookingService
	fleet        *service.FleetService
	dispatch     *service.DispatchService
	log          zerolog.Logger
}

// NewPricingSyncHandler creates the pricing-sync handler.
func NewPricingSyncHandler(
	availability *service.AvailabilityService,
	booking *service.BookingService,
	fleet *service.FleetService,
	dispatch *service.DispatchService,
) *PricingSyncHandler {
	return &PricingSyncHandler{
		availability: availability,
		booking:      booking,
		fleet:        fleet,
		dispatch:     dispatch,
		log:          logger.New("handler"),
	}
}

// Availability handles GET /api/v1/pricing-sync/availability
//
// Query: datetime (RFC 3339), passengers (default 1), service_type.
//
// Response codes:
//
//	200  verdict (available may be false)
//	400  datetime or service_type missing or malformed
//	503  store unreachable; verdict is negative
func (h *PricingSyncHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var missing []string
	if q.Get("datetime") == "" {
		missing = append(missing, "datetime")
	}
	if q.Get("service_type") == "" {
		missing = append(missing, "service_type")
	}
	if len(missing) > 0 {
		writeValidation(w, &service.ValidationError{MissingFields: missing})
		return
	}

	pickup, err := time.Parse(time.RFC3339, q.Get("datetime"))
	if err != nil {
		writeValidation(w, &service.ValidationError{InvalidFields: []string{"datetime"}})
		return
	}

	passengers := 1
	if raw := q.Get("passengers"); raw != "" {
		passengers, err = strconv.Atoi(raw)
		if err != nil || passengers <= 0 {
			writeValidation(w, &service.ValidationError{InvalidFields: []string{"passengers"}})
			return
		}
	}

	result, err := h.availability.Check(r.Context(), service.AvailabilityQuery{
		PickupTime:  pickup,
		Passengers:  passengers,
		ServiceType: model.ServiceType(q.Get("service_type")),
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// bookResponse is returned by a successful booking.
type bookResponse struct {
	Success bool   `json:"success"`
	TripID  string `json:"tripId"`
}

// Book handles POST /api/v1/pricing-sync/book
//
// Response codes:
//
//	200  trip created, returns tripId
//	400  missing/invalid fields (missingFields lists them) or no availability
//	408  timed out waiting for the vehicle lock
//	503  store unreachable
//	500  unexpected error
func (h *PricingSyncHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	tripID, err := h.booking.SyncBooking(r.Context(), req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidation(w, verr)
		case errors.Is(err, service.ErrNoAvailability):
			writeError(w, http.StatusBadRequest, "no_availability", service.ErrNoAvailability.Error())
		case errors.Is(err, service.ErrBookingTimeout):
			writeError(w, http.StatusRequestTimeout, "booking_timeout", "Booking timed out due to high contention. Please retry.")
		case errors.Is(err, service.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Availability could not be determined.")
		default:
			h.log.Error().Err(err).Msg("book error")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, bookResponse{Success: true, TripID: tripID})
}

// FleetStatus handles GET /api/v1/pricing-sync/fleet-status
func (h *PricingSyncHandler) FleetStatus(w http.ResponseWriter, r *http.Request) {
	fs, err := h.fleet.Status(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("fleet status error")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Fleet status could not be loaded.")
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// FastTrackRequest is a partial trip update from the dispatch system.
type FastTrackRequest struct {
	TripID            string            `json:"tripId" validate:"required"`
	DriverID          *string           `json:"driverId" validate:"omitempty,min=1"`
	Status            *model.TripStatus `json:"status" validate:"omitempty,oneof=scheduled confirmed in-progress completed cancelled"`
	ActualPickupTime  *time.Time        `json:"actualPickupTime"`
	ActualDropoffTime *time.Time        `json:"actualDropoffTime"`
	Mileage           *float64          `json:"mileage" validate:"omitempty,gte=0"`
	Duration          *int              `json:"duration" validate:"omitempty,gte=0"`
}

func (f FastTrackRequest) update() model.DispatchUpdate {
	return model.DispatchUpdate{
		DriverID:          f.DriverID,
		Status:            f.Status,
		ActualPickupTime:  f.ActualPickupTime,
		ActualDropoffTime: f.ActualDropoffTime,
		Mileage:           f.Mileage,
		Duration:          f.Duration,
	}
}

type fastTrackResponse struct {
	Success bool        `json:"success"`
	Trip    *model.Trip `json:"trip"`
}

// FastTrack handles PUT /api/v1/pricing-sync/fasttrack
//
// Response codes:
//
//	200  update applied, returns the trip
//	400  tripId missing, invalid field, or empty update
//	404  unknown trip (not_found) or unknown driverId (driver_not_found)
func (h *PricingSyncHandler) FastTrack(w http.ResponseWriter, r *http.Request) {
	var req FastTrackRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if verr := validateStruct(req); verr != nil {
		writeValidation(w, verr)
		return
	}

	trip, err := h.dispatch.ApplyUpdate(r.Context(), req.TripID, req.update())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTripNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Trip not found.")
		case errors.Is(err, service.ErrDriverNotFound):
			writeError(w, http.StatusNotFound, "driver_not_found", "Driver not found.")
		case errors.Is(err, service.ErrEmptyDispatchUpdate):
			writeError(w, http.StatusBadRequest, "empty_update", err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		default:
			h.log.Error().Err(err).Str("trip_id", req.TripID).Msg("fasttrack error")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, fastTrackResponse{Success: true, Trip: trip})
}
