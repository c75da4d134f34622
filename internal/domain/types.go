// Package domain contains the core business entities for on-device symptom
// triage: classification results, triage records, and the emergency protocol
// and drug catalogs. All catalog entities are read-only for the process
// lifetime; all result entities are created per request and owned by the
// caller.
package domain

import (
	"errors"
	"strings"
)

// Urgency represents how quickly a patient should be seen.
type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyRoutine   Urgency = "routine"
)

// IsValid reports whether the urgency is one of the three supported levels.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencyRoutine:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency.
func (u Urgency) String() string {
	return string(u)
}

// Tier identifies which stage of the classification cascade produced a result.
type Tier string

const (
	TierEmbedding  Tier = "embedding"
	TierGenerative Tier = "generative"
	TierFallback   Tier = "fallback"
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// Specialties is the fixed set of clinical specialties the pipeline routes to.
// Order matters: it is the class-index order of the embedding classifier head.
var Specialties = []string{
	"Behavioral Health",
	"Cardiology",
	"Dermatology",
	"Gastroenterology",
	"Neurology",
	"Oncology",
	"Orthopedic Surgery",
	"Pain Management",
	"Primary Care",
	"Pulmonology",
	"Rheumatology",
	"Sports Medicine",
	"Urology",
	"Vascular Medicine",
	"Women's Health",
}

// DefaultSpecialty is the routing target when no tier produces a confident match.
const DefaultSpecialty = "Primary Care"

// IsKnownSpecialty reports whether name matches a supported specialty,
// case-insensitively.
func IsKnownSpecialty(name string) bool {
	for _, s := range Specialties {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// ClassificationResult is a single ranked label with its confidence,
// the time the inference took, and the tier that produced it.
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Tier       Tier    `json:"tier"`
}

// TriageRecord aggregates everything the pipeline knows about one symptom
// query. The specialty and condition set established by the first successful
// tier are authoritative; later enrichment refines urgency, red flags,
// timeframe and follow-up questions in place but never the classification.
type TriageRecord struct {
	RequestID           string                 `json:"request_id"`
	Specialty           string                 `json:"specialty"`
	SpecialtyConfidence float64                `json:"specialty_confidence"`
	Conditions          []ClassificationResult `json:"conditions,omitempty"`
	Urgency             Urgency                `json:"urgency"`
	BodySystem          string                 `json:"body_system,omitempty"`
	RedFlags            []string               `json:"red_flags,omitempty"`
	FollowUpTimeframe   string                 `json:"follow_up_timeframe,omitempty"`
	FollowUpQuestions   []string               `json:"follow_up_questions,omitempty"`
	Tier                Tier                   `json:"tier"`
	Enriching           bool                   `json:"enriching"`
	ElapsedMs           int64                  `json:"elapsed_ms"`
}

// Clone returns a deep copy so cached records cannot be mutated by callers.
func (r *TriageRecord) Clone() *TriageRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Conditions = append([]ClassificationResult(nil), r.Conditions...)
	out.RedFlags = append([]string(nil), r.RedFlags...)
	out.FollowUpQuestions = append([]string(nil), r.FollowUpQuestions...)
	return &out
}

// PatientInfo carries the patient attributes the protocol and drug safety
// engine evaluates against. WeightKg of zero means unknown.
type PatientInfo struct {
	Age                int      `json:"age,omitempty"`
	WeightKg           float64  `json:"weight_kg,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	SystolicBP         int      `json:"systolic_bp,omitempty"`
	HeartRate          int      `json:"heart_rate,omitempty"`
}

// IsPediatric reports whether pediatric dosing applies.
func (p *PatientInfo) IsPediatric() bool {
	return p.Age > 0 && p.Age < 18
}

// Validation errors shared across the pipeline.
var (
	ErrEmptyInput = errors.New("symptom or observation text is empty")
)

// ValidateQueryText rejects input before it enters the pipeline. Whitespace-only
// text counts as empty.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	return nil
}
