// Package events publishes trip lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/shiva/tripmatch/internal/model"
)

// EventTripOffered announces a newly synchronized unassigned trip to eligible drivers.
const EventTripOffered = "trip_offered"

// TripEvent is the message body written to the trips topic.
type TripEvent struct {
	Type         string             `json:"type"`
	TripID       string             `json:"trip_id"`
	VehicleID    *string            `json:"vehicle_id,omitempty"`
	VehicleClass model.VehicleClass `json:"vehicle_class,omitempty"`
	TripType     model.ServiceType  `json:"trip_type"`
	PickupTime   time.Time          `json:"pickup_time"`
	Platform     model.Platform     `json:"platform"`
	Emergency    bool               `json:"emergency"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes trip events to a single topic.
type Producer struct {
	topic  string
	writer messageWriter
	log    zerolog.Logger
}

// NewProducer creates a producer for brokers and topic.
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{topic: topic, writer: writer, log: log}
}

// Publish marshals payload and writes it keyed by key.
func (p *Producer) Publish(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write to %s: %w", p.topic, err)
	}

	p.log.Debug().Str("topic", p.topic).Str("key", key).Msg("event published")
	return nil
}

// NotifyTripOffered publishes a trip_offered event for trip.
func (p *Producer) NotifyTripOffered(ctx context.Context, trip model.Trip, class model.VehicleClass) error {
	return p.Publish(ctx, trip.ID, TripEvent{
		Type:         EventTripOffered,
		TripID:       trip.ID,
		VehicleID:    trip.VehicleID,
		VehicleClass: class,
		TripType:     trip.TripType,
		PickupTime:   trip.PickupTime,
		Platform:     trip.PlatformSource,
		Emergency:    trip.IsEmergency(),
		OccurredAt:   time.Now().UTC(),
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// LogNotifier stands in for the producer when no brokers are configured.
type LogNotifier struct {
	Log zerolog.Logger
}

// NotifyTripOffered logs the offer.
func (n LogNotifier) NotifyTripOffered(_ context.Context, trip model.Trip, class model.VehicleClass) error {
	n.Log.Info().
		Str("trip_id", trip.ID).
		Str("vehicle_class", string(class)).
		Bool("emergency", trip.IsEmergency()).
		Msg("trip offered to eligible drivers")
	return nil
}
