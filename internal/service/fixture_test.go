package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository/memstore"
)

var (
	now    = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	pickup = now.Add(48 * time.Hour)
)

func clock() time.Time { return now }

func strPtr(s string) *string { return &s }

// newFleet seeds two sedans, one SUV and two active drivers.
func newFleet() *memstore.Store {
	s := memstore.New(memstore.WithClock(clock))
	s.AddVehicle(model.Vehicle{ID: "v-sedan-2", Class: model.ClassSedan, Capacity: 4})
	s.AddVehicle(model.Vehicle{ID: "v-sedan-1", Class: model.ClassSedan, Capacity: 4})
	s.AddVehicle(model.Vehicle{ID: "v-suv-1", Class: model.ClassSUV, Capacity: 6})
	s.AddDriver(model.Driver{ID: "d1", Name: "Driver One"})
	s.AddDriver(model.Driver{ID: "d2", Name: "Driver Two"})
	return s
}

func validBooking() model.BookingRequest {
	at := pickup
	return model.BookingRequest{
		ServiceType:    model.ServiceAirport,
		VehicleClass:   model.ClassSedan,
		PickupDateTime: &at,
		PickupLocation: json.RawMessage(`"JFK Terminal 4"`),
		PassengerCount: 2,
		TotalAmount:    180.5,
		Platform:       model.PlatformStandard,
	}
}

// MockNotifier records offered trips.
type MockNotifier struct {
	mock.Mock
	mu      sync.Mutex
	offered []string
}

func (m *MockNotifier) NotifyTripOffered(ctx context.Context, trip model.Trip, class model.VehicleClass) error {
	m.mu.Lock()
	m.offered = append(m.offered, trip.ID)
	m.mu.Unlock()
	return m.Called(trip.ID, class).Error(0)
}

func (m *MockNotifier) Offered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.offered...)
}
