package model

import (
	"time"
)

// Appointment statuses and actions.
const (
	StatusBooked = "booked"

	ActionCreate = "create"
)

// Appointment is the final record produced by a confirmed booking.
// Immutable once inserted.
type Appointment struct {
	ID         string            `json:"id" bson:"_id"`
	SessionKey string            `json:"session_key" bson:"session_key"`
	Fields     map[string]string `json:"fields" bson:"fields"`
	Status     string            `json:"status" bson:"status"`
	Action     string            `json:"action" bson:"action"`
	CreatedAt  time.Time         `json:"created_at" bson:"created_at"`
}

// ListAppointmentsResponse is the response for listing appointments.
type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
	Total        int           `json:"total"`
}
