package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccumulatesAllViolations(t *testing.T) {
	errs := Validate(map[string]string{
		"name":  "A",
		"email": "bad",
		"phone": "123",
	})

	assert.Len(t, errs, 3)

	fields := make([]string, len(errs))
	for i, fe := range errs {
		fields[i] = fe.Field
	}
	assert.ElementsMatch(t, []string{"name", "email", "phone"}, fields)
}

func TestValidateAcceptsGoodValues(t *testing.T) {
	errs := Validate(map[string]string{
		"name":        "Jane Doe",
		"email":       "jane@example.com",
		"phoneNumber": "(555) 123-4567",
		"doctor":      "Smith",
		"service":     "checkup",
		"date":        "Friday",
		"time":        "3:00 pm",
	})

	assert.Empty(t, errs)
}

func TestValidateFieldAliases(t *testing.T) {
	// phoneNumber follows the phone rule, patientName the name rule.
	errs := Validate(map[string]string{
		"phoneNumber": "12",
		"patientName": "J",
	})
	assert.Len(t, errs, 2)
}

func TestValidateUnknownFieldPresenceOnly(t *testing.T) {
	assert.Empty(t, Validate(map[string]string{"chiefComplaint": "headache"}))
	assert.Len(t, Validate(map[string]string{"chiefComplaint": "   "}), 1)
}
