package notifier

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/tripmatch/internal/model"
)

func ptr(s string) *string { return &s }

func pending(s *Subscription) bool {
	select {
	case _, ok := <-s.C():
		return ok
	default:
		return false
	}
}

func TestFilter_Matches(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		change model.TripChange
		want   bool
	}{
		{"driver insert", ForDriver("d1"), model.TripChange{Op: model.ChangeInsert, TripID: "t", DriverID: ptr("d1")}, true},
		{"other driver", ForDriver("d1"), model.TripChange{Op: model.ChangeInsert, TripID: "t", DriverID: ptr("d2")}, false},
		{"reassigned away", ForDriver("d1"), model.TripChange{Op: model.ChangeUpdate, TripID: "t", DriverID: ptr("d2"), OldDriverID: ptr("d1")}, true},
		{"driver delete", ForDriver("d1"), model.TripChange{Op: model.ChangeDelete, TripID: "t", OldDriverID: ptr("d1")}, true},
		{"unassigned insert", ForUnassigned(), model.TripChange{Op: model.ChangeInsert, TripID: "t"}, true},
		{"claimed from pool", ForUnassigned(), model.TripChange{Op: model.ChangeUpdate, TripID: "t", DriverID: ptr("d1")}, true},
		{"assigned update", ForUnassigned(), model.TripChange{Op: model.ChangeUpdate, TripID: "t", DriverID: ptr("d1"), OldDriverID: ptr("d1")}, false},
		{"assigned delete", ForUnassigned(), model.TripChange{Op: model.ChangeDelete, TripID: "t", OldDriverID: ptr("d1")}, false},
		{"resync", ForDriver("d1"), model.TripChange{Op: model.ChangeUpdate}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(tc.change))
		})
	}
}

func TestHub_Coalesces(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(ForDriver("d1"))
	defer sub.Close()

	for i := 0; i < 10; i++ {
		h.Publish(model.TripChange{Op: model.ChangeUpdate, TripID: "t", DriverID: ptr("d1"), OldDriverID: ptr("d1")})
	}

	assert.True(t, pending(sub))
	assert.False(t, pending(sub), "ten changes must collapse into one signal")
}

func TestHub_FiltersOtherDrivers(t *testing.T) {
	h := NewHub()
	mine := h.Subscribe(ForDriver("d1"), ForUnassigned())
	other := h.Subscribe(ForDriver("d2"))

	h.Publish(model.TripChange{Op: model.ChangeInsert, TripID: "t"})

	assert.True(t, pending(mine))
	assert.False(t, pending(other))
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(ForUnassigned())
	require.Equal(t, 1, h.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Len())

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Publishing after close must not panic.
	h.Publish(model.TripChange{Op: model.ChangeInsert, TripID: "t"})
}

func TestHub_CloseClosesAll(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(ForUnassigned())
	b := h.Subscribe(ForDriver("d1"))
	h.Close()

	_, okA := <-a.C()
	_, okB := <-b.C()
	assert.False(t, okA)
	assert.False(t, okB)

	late := h.Subscribe(ForUnassigned())
	_, ok := <-late.C()
	assert.False(t, ok)
	a.Close()
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := h.Subscribe(ForUnassigned())
			s.Close()
		}()
		go func() {
			defer wg.Done()
			h.Publish(model.TripChange{Op: model.ChangeInsert, TripID: "t"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Len())
}
