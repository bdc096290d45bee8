package repository

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/shiva/tripmatch/internal/model"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewTripRepository(pool))
	assert.NotNil(t, NewFleetRepository(pool))
}

func TestClassifyClaimMiss(t *testing.T) {
	d := "driver-1"
	assert.ErrorIs(t, classifyClaimMiss(&d, model.TripConfirmed), ErrAlreadyAssigned)
	assert.ErrorIs(t, classifyClaimMiss(nil, model.TripCancelled), ErrNotClaimable)
	assert.ErrorIs(t, classifyClaimMiss(nil, model.TripScheduled), ErrDriverBusy)
}

func TestApplyDispatch(t *testing.T) {
	base := model.Trip{ID: "t1", Status: model.TripScheduled}
	driver := "d1"
	inProgress := model.TripInProgress
	drop := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	miles := 42.5

	t.Run("driver confirms", func(t *testing.T) {
		got := ApplyDispatch(base, model.DispatchUpdate{DriverID: &driver})
		assert.Equal(t, model.TripConfirmed, got.Status)
		assert.Equal(t, "d1", *got.DriverID)
	})

	t.Run("explicit status after driver", func(t *testing.T) {
		got := ApplyDispatch(base, model.DispatchUpdate{DriverID: &driver, Status: &inProgress})
		assert.Equal(t, model.TripInProgress, got.Status)
	})

	t.Run("dropoff wins", func(t *testing.T) {
		got := ApplyDispatch(base, model.DispatchUpdate{Status: &inProgress, ActualDropoffTime: &drop, Mileage: &miles})
		assert.Equal(t, model.TripCompleted, got.Status)
		assert.Equal(t, drop, *got.ActualDropoffTime)
		assert.Equal(t, 42.5, *got.ActualMileage)
	})

	t.Run("input untouched", func(t *testing.T) {
		ApplyDispatch(base, model.DispatchUpdate{DriverID: &driver})
		assert.Nil(t, base.DriverID)
		assert.Equal(t, model.TripScheduled, base.Status)
	})
}

func TestIsUUID(t *testing.T) {
	assert.True(t, isUUID("5b8e7d2a-3f6c-4a8e-9b1d-2c4f6a8e0b13"))
	assert.False(t, isUUID("nope"))
	assert.False(t, isUUID(""))
}

func TestActiveStatuses(t *testing.T) {
	assert.Equal(t, []string{"scheduled", "confirmed", "in-progress"}, activeStatuses())
	for _, st := range model.ActiveTripStatuses {
		assert.True(t, st.IsActive(), st)
	}
}
