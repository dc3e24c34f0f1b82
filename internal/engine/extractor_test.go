package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicdesk-ai/booking-assistant/internal/config"
)

func TestRuleExtractor(t *testing.T) {
	x := NewRuleExtractor(config.DefaultRequiredFields)

	cases := []struct {
		name    string
		message string
		want    map[string]string
	}{
		{
			name:    "name after introduction",
			message: "Hi, my name is Jane Doe.",
			want:    map[string]string{"name": "Jane Doe"},
		},
		{
			name:    "name after call me",
			message: "call me Bob",
			want:    map[string]string{"name": "Bob"},
		},
		{
			name:    "email anywhere",
			message: "reach me via jane.doe+test@example.co.uk thanks",
			want:    map[string]string{"email": "jane.doe+test@example.co.uk"},
		},
		{
			name:    "phone with separators",
			message: "my number is (555) 123-4567",
			want:    map[string]string{"phoneNumber": "(555) 123-4567"},
		},
		{
			name:    "doctor by title",
			message: "I want to see Dr. Smith please",
			want:    map[string]string{"doctor": "Smith"},
		},
		{
			name:    "service keyword",
			message: "just a regular checkup",
			want:    map[string]string{"service": "checkup"},
		},
		{
			name:    "weekday date",
			message: "book me in on next Friday",
			want:    map[string]string{"date": "next Friday"},
		},
		{
			name:    "numeric date",
			message: "put it down for 3/14",
			want:    map[string]string{"date": "3/14"},
		},
		{
			name:    "clock time with meridiem",
			message: "around 3:30 pm works",
			want:    map[string]string{"time": "3:30 pm"},
		},
		{
			name:    "bare hour with meridiem",
			message: "how about 9am",
			want:    map[string]string{"time": "9am"},
		},
		{
			name:    "several fields at once",
			message: "I'm Jane Doe, email jane@example.com, on Monday at 10:00",
			want: map[string]string{
				"name":  "Jane Doe",
				"email": "jane@example.com",
				"date":  "Monday",
				"time":  "10:00",
			},
		},
		{
			name:    "nothing recognized",
			message: "hello there",
			want:    map[string]string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := x.Extract(context.Background(), nil, tc.message, nil)
			assert.Equal(t, tc.want, got.Fields)
			assert.Empty(t, got.NextPrompt)
		})
	}
}

func TestRuleExtractorOnlyFillsConfiguredFields(t *testing.T) {
	x := NewRuleExtractor([]string{"email"})

	got := x.Extract(context.Background(), nil,
		"I'm Jane Doe, email jane@example.com, phone 555-123-4567", nil)

	assert.Equal(t, map[string]string{"email": "jane@example.com"}, got.Fields)
}
