package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiva/tripmatch/internal/model"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestProducer_NotifyTripOffered(t *testing.T) {
	w := &MockWriter{}
	p := &Producer{topic: "trips", writer: w, log: zerolog.Nop()}

	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil)

	trip := model.Trip{
		ID:             "trip-1",
		TripType:       model.ServiceOrganTransport,
		PickupTime:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		PlatformSource: model.PlatformGNET,
	}
	require.NoError(t, p.NotifyTripOffered(context.Background(), trip, model.ClassSedan))

	require.Len(t, sent, 1)
	assert.Equal(t, "trips", sent[0].Topic)
	assert.Equal(t, "trip-1", string(sent[0].Key))

	var ev TripEvent
	require.NoError(t, json.Unmarshal(sent[0].Value, &ev))
	assert.Equal(t, EventTripOffered, ev.Type)
	assert.True(t, ev.Emergency)
	assert.Equal(t, model.ClassSedan, ev.VehicleClass)
	w.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	w := &MockWriter{}
	p := &Producer{topic: "trips", writer: w, log: zerolog.Nop()}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.Publish(context.Background(), "k", map[string]string{"a": "b"})
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_Close(t *testing.T) {
	w := &MockWriter{}
	w.On("Close").Return(nil)
	p := &Producer{writer: w}
	assert.NoError(t, p.Close())
	w.AssertExpectations(t)
}
