// Package model defines data structures for the booking assistant.
package model

import (
	"time"
)

// Session holds the slot-filling state for one conversation.
type Session struct {
	Key        string            `json:"key"`
	Collected  map[string]string `json:"collected"`
	CreatedAt  time.Time         `json:"created_at"`
	LastActive time.Time         `json:"last_active"`
}

// NewSession creates an empty session for the given key.
func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:        key,
		Collected:  make(map[string]string),
		CreatedAt:  now,
		LastActive: now,
	}
}

// Missing returns the required fields not yet collected, in required order.
func (s *Session) Missing(required []string) []string {
	var missing []string
	for _, f := range required {
		if v, ok := s.Collected[f]; !ok || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Merge applies extracted field values, last write wins per field.
func (s *Session) Merge(fields map[string]string) {
	for k, v := range fields {
		if v != "" {
			s.Collected[k] = v
		}
	}
}
