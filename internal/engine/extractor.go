package engine

import (
	"context"
	"regexp"
	"strings"
)

// Extraction is the result of one extraction pass: newly recognized field
// values plus an optional follow-up prompt.
type Extraction struct {
	Fields     map[string]string
	NextPrompt string
}

// Extractor maps free text plus already-collected fields to newly recognized
// field values. Implementations never fail; any internal error degrades to
// an empty extraction with a clarification prompt.
type Extractor interface {
	Extract(ctx context.Context, collected map[string]string, message string, contextSnippets []string) Extraction
}

type fieldKind int

const (
	kindOther fieldKind = iota
	kindName
	kindEmail
	kindPhone
	kindDoctor
	kindService
	kindDate
	kindTime
)

// kindOf maps a configured field name to its extraction/validation rule.
// Unknown names fall through to presence-only handling.
func kindOf(field string) fieldKind {
	switch strings.ToLower(field) {
	case "name", "patientname":
		return kindName
	case "email":
		return kindEmail
	case "phone", "phonenumber":
		return kindPhone
	case "doctor":
		return kindDoctor
	case "service":
		return kindService
	case "date":
		return kindDate
	case "time":
		return kindTime
	default:
		return kindOther
	}
}

var (
	nameRe   = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|call me)\s+([a-zA-Z][a-zA-Z .'-]*)`)
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe  = regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}`)
	doctorRe = regexp.MustCompile(`\b(?:[Dd]r\.?|[Dd]octor)\s+([A-Za-z][a-zA-Z'-]*(?:\s+[A-Z][a-zA-Z'-]*)?)`)
	dateRe   = regexp.MustCompile(`(?i)\b(?:on|for|at)\s+((?:(?:next|this)\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|tomorrow|today|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:january|february|march|april|june|july|august|september|october|november|december|jan|feb|mar|apr|may|jun|jul|aug|sept?|oct|nov|dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?)\b`)
	timeRe   = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))\b`)
)

var serviceKeywords = []string{
	"consultation", "checkup", "check-up", "cleaning", "follow-up", "followup",
	"vaccination", "x-ray", "xray", "physical", "screening", "therapy", "whitening",
}

// RuleExtractor applies independent per-field regex rules. Rules are
// order-free and each fills at most one value per call.
type RuleExtractor struct {
	required []string
}

// NewRuleExtractor creates a rule-based extractor for the given field set.
func NewRuleExtractor(required []string) *RuleExtractor {
	return &RuleExtractor{required: required}
}

// Extract runs every field's rule against the message. The follow-up prompt
// is left empty; the engine asks for the next missing field.
func (x *RuleExtractor) Extract(_ context.Context, _ map[string]string, message string, _ []string) Extraction {
	fields := make(map[string]string)
	for _, f := range x.required {
		if v := extractByKind(kindOf(f), message); v != "" {
			fields[f] = v
		}
	}
	return Extraction{Fields: fields}
}

func extractByKind(kind fieldKind, message string) string {
	switch kind {
	case kindName:
		if m := nameRe.FindStringSubmatch(message); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), " .")
		}
	case kindEmail:
		return emailRe.FindString(message)
	case kindPhone:
		return phoneRe.FindString(message)
	case kindDoctor:
		if m := doctorRe.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1])
		}
	case kindService:
		lower := strings.ToLower(message)
		for _, kw := range serviceKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	case kindDate:
		if m := dateRe.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1])
		}
	case kindTime:
		if m := timeRe.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
