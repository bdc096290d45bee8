package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository/memstore"
)

func newBookingService(store *memstore.Store, n DriverNotifier) *BookingService {
	return NewBookingService(store, NewAvailabilityService(store, nil), n, nil, 0)
}

func TestSyncBooking_CreatesScheduledTrip(t *testing.T) {
	store := newFleet()
	n := &MockNotifier{}
	n.On("NotifyTripOffered", mock.Anything, model.ClassSedan).Return(nil)
	svc := newBookingService(store, n)

	req := validBooking()
	req.Platform = model.PlatformGNET
	req.SpecialInstructions = "Meet at baggage claim"
	req.DropoffLocation = json.RawMessage(`{"address":"1 Main St"}`)

	id, err := svc.SyncBooking(context.Background(), req)
	require.NoError(t, err)
	svc.Wait()

	trip, err := store.GetTrip(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.TripScheduled, trip.Status)
	assert.Nil(t, trip.DriverID)
	assert.Equal(t, "v-sedan-1", *trip.VehicleID)
	assert.Equal(t, "GNET Customer", trip.CustomerName)
	assert.Equal(t, "JFK Terminal 4", trip.PickupLocation)
	assert.Equal(t, `{"address":"1 Main St"}`, *trip.DropoffLocation)
	assert.Equal(t, 180.5, trip.FareAmount)
	assert.Equal(t, "GNET Partner Booking - 12% commission tracking | Meet at baggage claim", trip.SpecialInstructions)
	assert.Equal(t, []string{id}, n.Offered())
	n.AssertExpectations(t)
}

func TestSyncBooking_MissingPickupLocation(t *testing.T) {
	svc := newBookingService(newFleet(), nil)

	req := validBooking()
	req.PickupLocation = nil

	_, err := svc.SyncBooking(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"pickupLocation"}, verr.MissingFields)
}

func TestSyncBooking_NullPickupLocationCountsAsMissing(t *testing.T) {
	svc := newBookingService(newFleet(), nil)

	req := validBooking()
	req.PickupLocation = json.RawMessage(`null`)

	_, err := svc.SyncBooking(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.MissingFields, "pickupLocation")
}

func TestSyncBooking_ReportsEveryMissingField(t *testing.T) {
	svc := newBookingService(newFleet(), nil)

	_, err := svc.SyncBooking(context.Background(), model.BookingRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"serviceType", "vehicleClass", "pickupDateTime", "pickupLocation", "passengerCount", "platform",
	}, verr.MissingFields)
}

func TestSyncBooking_InvalidPlatform(t *testing.T) {
	svc := newBookingService(newFleet(), nil)

	req := validBooking()
	req.Platform = "myspace"

	_, err := svc.SyncBooking(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, verr.MissingFields)
	assert.Equal(t, []string{"platform"}, verr.InvalidFields)
}

func TestSyncBooking_NoAvailability(t *testing.T) {
	store := newFleet()
	svc := newBookingService(store, nil)

	req := validBooking()
	req.VehicleClass = model.ClassPartyBus

	_, err := svc.SyncBooking(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoAvailability)
	assert.EqualError(t, err, "no vehicles or drivers available")
}

func TestSyncBooking_NotifyFailureDoesNotFailBooking(t *testing.T) {
	n := &MockNotifier{}
	n.On("NotifyTripOffered", mock.Anything, mock.Anything).Return(errors.New("kafka down"))
	svc := newBookingService(newFleet(), n)

	id, err := svc.SyncBooking(context.Background(), validBooking())
	require.NoError(t, err)
	svc.Wait()
	assert.NotEmpty(t, id)
	n.AssertExpectations(t)
}

func TestSyncBooking_ConcurrentBookingsNeverDoubleBookVehicle(t *testing.T) {
	store := newFleet()
	svc := newBookingService(store, nil)

	const n = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.SyncBooking(context.Background(), validBooking())
			if err != nil {
				assert.ErrorIs(t, err, ErrNoAvailability)
				return
			}
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Two sedans, so at most two bookings land in the same window.
	assert.LessOrEqual(t, len(ids), 2)
	assert.NotEmpty(t, ids)

	seen := map[string]bool{}
	for _, id := range ids {
		trip, err := store.GetTrip(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, seen[*trip.VehicleID], "vehicle %s booked twice", *trip.VehicleID)
		seen[*trip.VehicleID] = true
	}
}

func TestBuildSpecialInstructions(t *testing.T) {
	cases := []struct {
		platform model.Platform
		text     string
		want     string
	}{
		{model.PlatformStandard, "", ""},
		{model.PlatformStandard, "Child seat", "Child seat"},
		{model.PlatformGroundSpan, "", "Capital One Corporate - Premium service standards"},
		{model.PlatformCorporate, "Invoice monthly", "Corporate client - Volume discount applied | Invoice monthly"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildSpecialInstructions(tc.platform, tc.text))
	}
}

func TestBuildTrip_CustomerNamePerPlatform(t *testing.T) {
	req := validBooking()
	for platform, want := range map[model.Platform]string{
		model.PlatformGNET:       "GNET Customer",
		model.PlatformGroundSpan: "Capital One Associate",
		model.PlatformCorporate:  "Customer",
		model.PlatformStandard:   "Customer",
	} {
		req.Platform = platform
		assert.Equal(t, want, BuildTrip(req, "v1").CustomerName)
	}
}
