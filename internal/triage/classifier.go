// Package triage maps free-text symptom descriptions to an urgency level,
// a suggested specialty and guidance text using fixed keyword tables. It is
// deterministic and never fails: unmatched input degrades to a routine
// General Practice outcome.
package triage

import (
	"fmt"
	"strings"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

const DefaultSpecialty = "General Practice"

// Confidence is a fixed policy placeholder, not a statistical measure.
const Confidence = 0.85

type Result struct {
	Urgency         Urgency
	Specialty       string
	Recommendations []string
	Confidence      float64
}

// The emergency table is evaluated before the urgent one; the literal word
// "emergency" stays in the urgent tier, so on its own it classifies as
// urgent while the phrases below always win.
var emergencyKeywords = []string{
	"unconscious",
	"not breathing",
	"stroke",
	"overdose",
}

var urgentKeywords = []string{
	"chest pain",
	"severe pain",
	"difficulty breathing",
	"blood",
	"emergency",
	"heart attack",
}

type specialtyRule struct {
	keyword   string
	specialty string
}

// First matching keyword in table order wins.
var specialtyRules = []specialtyRule{
	{"heart", "Cardiology"},
	{"chest", "Cardiology"},
	{"cardiac", "Cardiology"},
	{"skin", "Dermatology"},
	{"rash", "Dermatology"},
	{"acne", "Dermatology"},
	{"bone", "Orthopedics"},
	{"joint", "Orthopedics"},
	{"fracture", "Orthopedics"},
	{"mental", "Psychiatry"},
	{"anxiety", "Psychiatry"},
	{"depression", "Psychiatry"},
	{"eye", "Ophthalmology"},
	{"vision", "Ophthalmology"},
	{"ear", "ENT"},
	{"throat", "ENT"},
	{"nose", "ENT"},
}

// Classify runs case-insensitive substring matching over the keyword tables.
func Classify(symptoms string) Result {
	text := strings.ToLower(symptoms)

	urgency := UrgencyRoutine
	switch {
	case matchesAny(text, emergencyKeywords):
		urgency = UrgencyEmergency
	case matchesAny(text, urgentKeywords):
		urgency = UrgencyUrgent
	}

	specialty := DefaultSpecialty
	for _, rule := range specialtyRules {
		if strings.Contains(text, rule.keyword) {
			specialty = rule.specialty
			break
		}
	}

	return Result{
		Urgency:         urgency,
		Specialty:       specialty,
		Recommendations: recommendations(urgency, specialty),
		Confidence:      Confidence,
	}
}

func recommendations(urgency Urgency, specialty string) []string {
	switch urgency {
	case UrgencyEmergency:
		return []string{
			"This appears to be an emergency case - please seek immediate medical attention",
			"Consider visiting the emergency room or calling emergency services",
			"If available, I'll help you find urgent care options",
		}
	case UrgencyUrgent:
		return []string{
			"Based on your symptoms, this appears to be an urgent case",
			fmt.Sprintf("I recommend consulting with a %s specialist as soon as possible", specialty),
			"I'll help you find the earliest available appointments",
		}
	default:
		return []string{
			"Based on your symptoms, this appears to be a routine consultation",
			fmt.Sprintf("I recommend consulting with a %s specialist", specialty),
			"I'll help you find convenient appointment times",
		}
	}
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
