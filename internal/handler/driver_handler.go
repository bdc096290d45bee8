package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/notifier"
	"github.com/shiva/tripmatch/internal/service"
	"github.com/shiva/tripmatch/pkg/logger"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 25 * time.Second

// DriverHandler serves a driver's working set, pending assignment and
// change stream.
type DriverHandler struct {
	assignment *service.AssignmentService
	hub        *notifier.Hub
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewDriverHandler creates the driver handler.
func NewDriverHandler(assignment *service.AssignmentService, hub *notifier.Hub, m *metrics.Metrics) *DriverHandler {
	return &DriverHandler{assignment: assignment, hub: hub, metrics: m, log: logger.New("handler")}
}

// Trips handles GET /api/v1/drivers/{driver_id}/trips
func (h *DriverHandler) Trips(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]

	ws, err := h.assignment.WorkingSet(r.Context(), driverID)
	if err != nil {
		h.log.Error().Err(err).Str("driver_id", driverID).Msg("working set error")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type assignmentResponse struct {
	Pending   *model.Trip `json:"pending"`
	Emergency bool        `json:"emergency"`
}

// Assignment handles GET /api/v1/drivers/{driver_id}/assignment?declined=a,b
//
// Declines are held by the client and sent back on every call; the server
// keeps no per-driver state.
func (h *DriverHandler) Assignment(w http.ResponseWriter, r *http.Request) {
	declined := make(map[string]bool)
	for _, id := range strings.Split(r.URL.Query().Get("declined"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			declined[id] = true
		}
	}

	pending, err := h.assignment.PendingAssignment(r.Context(), declined)
	if err != nil {
		h.log.Error().Err(err).Msg("pending assignment error")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	resp := assignmentResponse{Pending: pending}
	if pending != nil {
		resp.Emergency = pending.IsEmergency()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /api/v1/drivers/{driver_id}/events
//
// Streams Server-Sent Events. Each `stale` event means the driver's trips or
// the unassigned pool changed and the client should refetch. Bursts of
// changes collapse into a single event.
func (h *DriverHandler) Events(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "")
		return
	}

	// Server read/write timeouts would otherwise end the stream mid-subscription.
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn().Err(err).Str("driver_id", driverID).Msg("clear read deadline")
	}
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn().Err(err).Str("driver_id", driverID).Msg("clear write deadline")
	}

	sub := h.hub.Subscribe(notifier.ForDriver(driverID), notifier.ForUnassigned())
	h.metrics.SubscriptionOpened()
	defer func() {
		sub.Close()
		h.metrics.SubscriptionClosed()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-sub.C():
			if !open {
				return
			}
			fmt.Fprint(w, "event: stale\ndata: {}\n\n")
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
