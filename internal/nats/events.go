package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
)

const (
	// StreamName is the name of the appointments stream.
	StreamName = "APPOINTMENTS"

	// SubjectPrefix is the prefix for all booking subjects.
	SubjectPrefix = "appt"
)

// Publisher publishes terminal booking outcomes to JetStream.
type Publisher struct {
	client *Client
}

// NewPublisher creates a booking-event publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnsureStream ensures the appointments stream exists with proper configuration.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Booking and cancellation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a booking event.
func EventSubject(eventType model.BookingEventType, eventID string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, eventType, eventID)
}

// PublishBooking publishes a confirmed booking event.
func (p *Publisher) PublishBooking(ctx context.Context, ev *model.BookingEvent) error {
	return p.publish(ctx, ev)
}

// PublishCancellation publishes a cancellation event.
func (p *Publisher) PublishCancellation(ctx context.Context, ev *model.BookingEvent) error {
	return p.publish(ctx, ev)
}

func (p *Publisher) publish(ctx context.Context, ev *model.BookingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.client.JetStream().Publish(ctx, EventSubject(ev.Type, ev.ID), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
