package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/service"
	"github.com/shiva/tripmatch/pkg/logger"
)

// TripHandler handles driver actions on a single trip.
type TripHandler struct {
	assignment *service.AssignmentService
	lifecycle  *service.LifecycleService
	log        zerolog.Logger
}

// NewTripHandler creates the trip handler.
func NewTripHandler(assignment *service.AssignmentService, lifecycle *service.LifecycleService) *TripHandler {
	return &TripHandler{assignment: assignment, lifecycle: lifecycle, log: logger.New("handler")}
}

// AcceptRequest is the body of POST /trips/{trip_id}/accept.
type AcceptRequest struct {
	DriverID string `json:"driverId" validate:"required"`
}

// Accept handles POST /api/v1/trips/{trip_id}/accept
//
// Response codes:
//
//	200  trip now confirmed for this driver
//	400  driverId missing
//	404  trip not found (not_found) or unknown driver (driver_not_found)
//	409  another driver won (already_assigned), the driver is busy in
//	       that window (driver_busy), or the trip left the pool (not_claimable)
func (h *TripHandler) Accept(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]

	var req AcceptRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if verr := validateStruct(req); verr != nil {
		writeValidation(w, verr)
		return
	}

	trip, err := h.assignment.Accept(r.Context(), tripID, req.DriverID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTripNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Trip not found.")
		case errors.Is(err, service.ErrDriverNotFound):
			writeError(w, http.StatusNotFound, "driver_not_found", "Driver not found.")
		case errors.Is(err, service.ErrAlreadyAssigned):
			writeError(w, http.StatusConflict, "already_assigned", "This trip was already accepted by another driver.")
		case errors.Is(err, service.ErrDriverBusy):
			writeError(w, http.StatusConflict, "driver_busy", "You already have a trip in this time window.")
		case errors.Is(err, service.ErrTripNotClaimable):
			writeError(w, http.StatusConflict, "not_claimable", "This trip is no longer open for acceptance.")
		default:
			h.log.Error().Err(err).Str("trip_id", tripID).Msg("accept error")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, trip)
}

// StatusRequest is the body of PATCH /trips/{trip_id}/status.
type StatusRequest struct {
	Status   model.TripStatus `json:"status" validate:"required,oneof=in-progress completed cancelled"`
	DriverID string           `json:"driverId"`
}

// UpdateStatus handles PATCH /api/v1/trips/{trip_id}/status
//
// Response codes:
//
//	200  status changed
//	400  status missing or not a driver-settable status
//	403  trip belongs to another driver
//	404  trip not found (not_found) or unknown driver (driver_not_found)
//	409  transition not allowed from the current status
func (h *TripHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]

	var req StatusRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if verr := validateStruct(req); verr != nil {
		writeValidation(w, verr)
		return
	}

	trip, err := h.lifecycle.UpdateStatus(r.Context(), tripID, req.DriverID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTripNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Trip not found.")
		case errors.Is(err, service.ErrNotTripDriver):
			writeError(w, http.StatusForbidden, "not_trip_driver", "This trip is assigned to another driver.")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		default:
			h.log.Error().Err(err).Str("trip_id", tripID).Msg("status update error")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, trip)
}
