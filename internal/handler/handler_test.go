package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/tripmatch/internal/middleware"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/notifier"
	"github.com/shiva/tripmatch/internal/repository/memstore"
	"github.com/shiva/tripmatch/internal/service"
)

var pickup = time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

type testAPI struct {
	router *mux.Router
	store  *memstore.Store
	hub    *notifier.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	hub := notifier.NewHub()
	store := memstore.New(memstore.WithChangeHook(hub.Publish))
	store.SeedDemo()

	availability := service.NewAvailabilityService(store, nil)
	booking := service.NewBookingService(store, availability, nil, nil, 0)
	fleet := service.NewFleetService(store, nil, nil)
	dispatch := service.NewDispatchService(store, nil)
	assignment := service.NewAssignmentService(store, nil, nil)
	lifecycle := service.NewLifecycleService(store)

	r := mux.NewRouter()
	Register(r,
		NewPricingSyncHandler(availability, booking, fleet, dispatch),
		NewDriverHandler(assignment, hub, nil),
		NewTripHandler(assignment, lifecycle),
	)
	t.Cleanup(hub.Close)
	return &testAPI{router: r, store: store, hub: hub}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func bookingBody(extra map[string]any) string {
	body := map[string]any{
		"serviceType":    "airport",
		"vehicleClass":   "sedan",
		"pickupDateTime": pickup.Format(time.RFC3339),
		"pickupLocation": "LGA Terminal B",
		"passengerCount": 3,
		"totalAmount":    95,
		"platform":       "groundspan",
	}
	for k, v := range extra {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	b, _ := json.Marshal(body)
	return string(b)
}

// ─── pricing-sync ───────────────────────────────────────────

func TestAvailability(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/pricing-sync/availability?datetime="+pickup.Format(time.RFC3339)+"&passengers=5&service_type=hourly", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[service.Availability](t, rec)
	assert.True(t, got.Available)
	assert.Equal(t, model.ClassSUV, got.VehicleClass)
	assert.Equal(t, "veh-003", *got.AssignedVehicleID)
}

func TestAvailability_MissingParams(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/pricing-sync/availability?passengers=2", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[errorBody](t, rec)
	assert.ElementsMatch(t, []string{"datetime", "service_type"}, body.MissingFields)

	rec = api.do(http.MethodGet, "/api/v1/pricing-sync/availability?datetime=tomorrow&service_type=hourly", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBook_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/pricing-sync/book", bookingBody(nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[bookResponse](t, rec)
	assert.True(t, resp.Success)

	trip, err := api.store.GetTrip(context.Background(), resp.TripID)
	require.NoError(t, err)
	assert.Equal(t, "Capital One Associate", trip.CustomerName)
	assert.Equal(t, "Capital One Corporate - Premium service standards", trip.SpecialInstructions)
	assert.Equal(t, model.TripScheduled, trip.Status)
}

func TestBook_MissingPickupLocation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/pricing-sync/book", bookingBody(map[string]any{"pickupLocation": nil}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Contains(t, body.MissingFields, "pickupLocation")
}

func TestBook_NoAvailability(t *testing.T) {
	api := newTestAPI(t)

	// The demo fleet has a single party bus.
	first := api.do(http.MethodPost, "/api/v1/pricing-sync/book", bookingBody(map[string]any{"vehicleClass": "party-bus", "passengerCount": 20}))
	require.Equal(t, http.StatusOK, first.Code)

	rec := api.do(http.MethodPost, "/api/v1/pricing-sync/book", bookingBody(map[string]any{"vehicleClass": "party-bus", "passengerCount": 20}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_availability", decode[errorBody](t, rec).Error)
}

func TestBook_MalformedJSON(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/pricing-sync/book", `{"serviceType":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decode[errorBody](t, rec).Error)
}

func TestFleetStatus(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/pricing-sync/fleet-status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	fs := decode[model.FleetStatus](t, rec)
	assert.Len(t, fs.Fleet, 6, "maintenance vehicle excluded")
	for _, v := range fs.Fleet {
		assert.True(t, v.IsAvailable)
	}
}

func TestFastTrack_MissingTripID(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPut, "/api/v1/pricing-sync/fasttrack", `{"status":"completed"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"tripId"}, decode[errorBody](t, rec).MissingFields)
}

func TestFastTrack_DropoffCompletes(t *testing.T) {
	api := newTestAPI(t)
	trip := api.store.AddTrip(model.Trip{PickupTime: pickup})

	body := `{"tripId":"` + trip.ID + `","driverId":"drv-001","actualDropoffTime":"` + pickup.Add(time.Hour).Format(time.RFC3339) + `","mileage":12.5}`
	rec := api.do(http.MethodPut, "/api/v1/pricing-sync/fasttrack", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[fastTrackResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, model.TripCompleted, resp.Trip.Status)
	assert.Equal(t, "drv-001", *resp.Trip.DriverID)
}

func TestFastTrack_UnknownTrip(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPut, "/api/v1/pricing-sync/fasttrack", `{"tripId":"nope","status":"confirmed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ─── driver views and actions ───────────────────────────────

func TestAccept_SecondDriverGetsConflict(t *testing.T) {
	api := newTestAPI(t)
	trip := api.store.AddTrip(model.Trip{PickupTime: pickup})

	rec := api.do(http.MethodPost, "/api/v1/trips/"+trip.ID+"/accept", `{"driverId":"drv-001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TripConfirmed, decode[model.Trip](t, rec).Status)

	rec = api.do(http.MethodPost, "/api/v1/trips/"+trip.ID+"/accept", `{"driverId":"drv-002"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_assigned", decode[errorBody](t, rec).Error)
}

func TestAccept_MissingDriver(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/trips/t1/accept", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"driverId"}, decode[errorBody](t, rec).MissingFields)
}

func TestAssignment_EmergencyFirstAndDeclines(t *testing.T) {
	api := newTestAPI(t)
	routine := api.store.AddTrip(model.Trip{PickupTime: pickup})
	organ := api.store.AddTrip(model.Trip{PickupTime: pickup.Add(5 * time.Hour), TripType: model.ServiceOrganTransport})

	rec := api.do(http.MethodGet, "/api/v1/drivers/drv-001/assignment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[assignmentResponse](t, rec)
	require.NotNil(t, resp.Pending)
	assert.Equal(t, organ.ID, resp.Pending.ID)
	assert.True(t, resp.Emergency)

	rec = api.do(http.MethodGet, "/api/v1/drivers/drv-001/assignment?declined="+organ.ID, "")
	resp = decode[assignmentResponse](t, rec)
	require.NotNil(t, resp.Pending)
	assert.Equal(t, routine.ID, resp.Pending.ID)
	assert.False(t, resp.Emergency)
}

func TestDriverTrips(t *testing.T) {
	api := newTestAPI(t)
	api.store.AddTrip(model.Trip{PickupTime: pickup})

	rec := api.do(http.MethodGet, "/api/v1/drivers/drv-001/trips", "")
	require.Equal(t, http.StatusOK, rec.Code)

	ws := decode[service.WorkingSet](t, rec)
	assert.Empty(t, ws.Today)
	assert.Len(t, ws.Unassigned, 1)
}

func TestUpdateStatus(t *testing.T) {
	api := newTestAPI(t)
	driver := "drv-002"
	trip := api.store.AddTrip(model.Trip{PickupTime: pickup, DriverID: &driver, Status: model.TripConfirmed})

	rec := api.do(http.MethodPatch, "/api/v1/trips/"+trip.ID+"/status", `{"status":"in-progress","driverId":"drv-002"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPatch, "/api/v1/trips/"+trip.ID+"/status", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPatch, "/api/v1/trips/"+trip.ID+"/status", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_StreamsStaleOnChange(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/drivers/drv-001/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	// Subscription is registered before the connected comment is flushed.
	api.store.AddTrip(model.Trip{PickupTime: pickup})

	for lines.Scan() {
		if lines.Text() == "event: stale" {
			return
		}
	}
	t.Fatal("no stale event received")
}

func TestEvents_OutlivesServerTimeouts(t *testing.T) {
	api := newTestAPI(t)
	api.router.Use(middleware.RequestLogger(zerolog.Nop()), middleware.Metrics(nil))

	srv := httptest.NewUnstartedServer(api.router)
	srv.Config.ReadTimeout = time.Second
	srv.Config.WriteTimeout = time.Second
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/drivers/drv-001/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	time.Sleep(1500 * time.Millisecond)
	api.store.AddTrip(model.Trip{PickupTime: pickup})

	for lines.Scan() {
		if lines.Text() == "event: stale" {
			return
		}
	}
	t.Fatalf("stream ended before stale event: %v", lines.Err())
}

func TestUnknownDriver_NotFound(t *testing.T) {
	api := newTestAPI(t)
	trip := api.store.AddTrip(model.Trip{PickupTime: pickup})

	rec := api.do(http.MethodPost, "/api/v1/trips/"+trip.ID+"/accept", `{"driverId":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "driver_not_found", decode[errorBody](t, rec).Error)

	rec = api.do(http.MethodPut, "/api/v1/pricing-sync/fasttrack", `{"tripId":"`+trip.ID+`","driverId":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "driver_not_found", decode[errorBody](t, rec).Error)
}
