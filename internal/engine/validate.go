package engine

import (
	"regexp"
	"sort"
	"strings"
)

// FieldError is one violated validation rule.
type FieldError struct {
	Field  string
	Reason string
}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

// Validate checks every collected value against its field's rule and
// accumulates all violations rather than stopping at the first.
func Validate(collected map[string]string) []FieldError {
	var errs []FieldError
	for field, value := range collected {
		switch kindOf(field) {
		case kindName:
			if len(strings.TrimSpace(value)) < 2 {
				errs = append(errs, FieldError{field, "name must be at least 2 characters"})
			}
		case kindEmail:
			if !emailShape.MatchString(value) {
				errs = append(errs, FieldError{field, "email must look like name@example.com"})
			}
		case kindPhone:
			if len(digitsOnly(value)) < 10 {
				errs = append(errs, FieldError{field, "phone number must have at least 10 digits"})
			}
		default:
			if strings.TrimSpace(value) == "" {
				errs = append(errs, FieldError{field, field + " must not be empty"})
			}
		}
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
