package model

import (
	"time"
)

// BookingEventType represents the type of booking event.
type BookingEventType string

const (
	EventTypeBooked    BookingEventType = "booked"
	EventTypeCancelled BookingEventType = "cancelled"
)

// BookingEvent is published when a session reaches a terminal state.
type BookingEvent struct {
	ID         string            `json:"id"`
	SessionKey string            `json:"session_key"`
	Type       BookingEventType  `json:"type"`
	RecordID   string            `json:"record_id,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
