package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register mounts every API route on r.
func Register(r *mux.Router, ps *PricingSyncHandler, drivers *DriverHandler, trips *TripHandler) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// Pricing tool and dispatch integration
	sync := api.PathPrefix("/pricing-sync").Subrouter()
	sync.HandleFunc("/availability", ps.Availability).Methods(http.MethodGet)
	sync.HandleFunc("/book", ps.Book).Methods(http.MethodPost)
	sync.HandleFunc("/fleet-status", ps.FleetStatus).Methods(http.MethodGet)
	sync.HandleFunc("/fasttrack", ps.FastTrack).Methods(http.MethodPut)

	// Driver views
	api.HandleFunc("/drivers/{driver_id}/trips", drivers.Trips).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{driver_id}/assignment", drivers.Assignment).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{driver_id}/events", drivers.Events).Methods(http.MethodGet)

	// Driver actions
	api.HandleFunc("/trips/{trip_id}/accept", trips.Accept).Methods(http.MethodPost)
	api.HandleFunc("/trips/{trip_id}/status", trips.UpdateStatus).Methods(http.MethodPatch)
}
