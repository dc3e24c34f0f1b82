package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
)

var (
	affirmative = regexp.MustCompile(`(?i)yes`)
	negative    = regexp.MustCompile(`(?i)no`)
)

const (
	genericClarification = "Sorry, I didn't catch that. Could you share a few more details so I can book your appointment?"
	cancellationText     = "No problem, I've cancelled this booking request. Message me again any time to start over."
)

var fieldPrompts = map[string]string{
	"name":        "May I have your full name?",
	"patientName": "May I have your full name?",
	"email":       "What's the best email address for you?",
	"phone":       "What phone number can we reach you at?",
	"phoneNumber": "What phone number can we reach you at?",
	"doctor":      "Which doctor would you like to see?",
	"service":     "What service are you booking? For example a checkup, cleaning or consultation.",
	"date":        "What day works best for you?",
	"time":        "What time would you like to come in?",
	"dob":         "What is your date of birth?",
}

func promptFor(field string) string {
	if p, ok := fieldPrompts[field]; ok {
		return p
	}
	return fmt.Sprintf("Could you share your %s?", field)
}

// confirmQuestion summarizes the collected fields and asks for a yes/no.
func confirmQuestion(collected map[string]string, required []string) string {
	var b strings.Builder
	b.WriteString("Here's what I have for your appointment:\n")
	for _, f := range required {
		fmt.Fprintf(&b, "- %s: %s\n", f, collected[f])
	}
	b.WriteString("Shall I book it? (yes/no)")
	return b.String()
}

// Confirm renders the booking confirmation. Every collected field value
// appears verbatim.
func Confirm(a *model.Appointment, required []string) string {
	var b strings.Builder
	b.WriteString("Your appointment is booked!\n")
	for _, f := range required {
		fmt.Fprintf(&b, "- %s: %s\n", f, a.Fields[f])
	}
	b.WriteString("See you then!")
	return b.String()
}
