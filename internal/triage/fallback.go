package triage

import (
	"strings"

	"github.com/triage-edge-server/internal/domain"
)

// keywordRule routes a symptom description to a specialty when its keyword
// groups match. Every group must contribute at least one keyword for the
// rule to fire. Rules are evaluated in order; the first match wins.
type keywordRule struct {
	groups     [][]string
	specialty  string
	confidence float64
}

var fallbackRules = []keywordRule{
	{
		groups:     [][]string{{"burn"}, {"pee", "urin"}},
		specialty:  "Urology",
		confidence: 0.85,
	},
	{
		groups:     [][]string{{"chest"}, {"eat", "food", "meal"}},
		specialty:  "Gastroenterology",
		confidence: 0.82,
	},
	{
		groups:     [][]string{{"sad", "depress", "anxious", "panic"}},
		specialty:  "Behavioral Health",
		confidence: 0.80,
	},
	{
		groups:     [][]string{{"mole", "rash", "skin", "itch", "acne"}},
		specialty:  "Dermatology",
		confidence: 0.78,
	},
	{
		groups:     [][]string{{"heart", "chest pain", "palpitation"}},
		specialty:  "Cardiology",
		confidence: 0.75,
	},
	{
		groups:     [][]string{{"headache", "migraine", "numbness", "tingling", "confusion"}},
		specialty:  "Neurology",
		confidence: 0.75,
	},
	{
		groups:     [][]string{{"back pain", "knee", "shoulder", "joint"}},
		specialty:  "Orthopedic Surgery",
		confidence: 0.75,
	},
	{
		groups:     [][]string{{"breath", "cough", "wheez"}},
		specialty:  "Pulmonology",
		confidence: 0.75,
	},
	{
		groups:     [][]string{{"period", "menstrua", "pelvic", "hot flash"}},
		specialty:  "Women's Health",
		confidence: 0.75,
	},
	{
		groups:     [][]string{{"swallow", "stomach", "diarrhea", "abdominal", "stool"}},
		specialty:  "Gastroenterology",
		confidence: 0.75,
	},
}

const defaultFallbackConfidence = 0.50

// ClassifyByKeywords routes a symptom description with ordered keyword
// rules. It always succeeds; unmatched input routes to the default
// specialty at low confidence.
func ClassifyByKeywords(symptoms string) (string, float64) {
	lower := strings.ToLower(symptoms)
	for _, rule := range fallbackRules {
		if rule.matches(lower) {
			return rule.specialty, rule.confidence
		}
	}
	return domain.DefaultSpecialty, defaultFallbackConfidence
}

func (r keywordRule) matches(lower string) bool {
	for _, group := range r.groups {
		found := false
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
