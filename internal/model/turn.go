package model

import (
	"time"
)

// Role represents the role of a turn's author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted conversation turn.
type Turn struct {
	ID         string    `json:"id" bson:"_id"`
	SessionKey string    `json:"session_key" bson:"session_key"`
	Role       Role      `json:"role" bson:"role"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	SessionKey string `json:"session_key"`
	Message    string `json:"message"`
}

// ChatResponse is the response body for a chat turn.
type ChatResponse struct {
	Reply      string       `json:"reply"`
	Step       int          `json:"step"`
	TotalSteps int          `json:"total_steps"`
	Done       bool         `json:"done"`
	Record     *Appointment `json:"record,omitempty"`
}
