package domain

import (
	"testing"
)

func TestUrgencyIsValid(t *testing.T) {
	tests := []struct {
		name    string
		urgency Urgency
		valid   bool
	}{
		{"Emergency", UrgencyEmergency, true},
		{"Urgent", UrgencyUrgent, true},
		{"Routine", UrgencyRoutine, true},
		{"Empty", Urgency(""), false},
		{"Unknown", Urgency("critical"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.urgency.IsValid(); got != tt.valid {
				t.Errorf("Expected IsValid()=%v for %q, got %v", tt.valid, tt.urgency, got)
			}
		})
	}
}

func TestSpecialtiesAreKnown(t *testing.T) {
	if len(Specialties) != 15 {
		t.Fatalf("Expected 15 specialties, got %d", len(Specialties))
	}
	for _, s := range Specialties {
		if !IsKnownSpecialty(s) {
			t.Errorf("Specialty %q should be known", s)
		}
	}
	if IsKnownSpecialty("Podiatry") {
		t.Error("Unlisted specialty should not be known")
	}
	if !IsKnownSpecialty(DefaultSpecialty) {
		t.Errorf("Default specialty %q must be in the list", DefaultSpecialty)
	}
}

func TestTriageRecordClone(t *testing.T) {
	original := &TriageRecord{
		RequestID:         "r1",
		Specialty:         "Cardiology",
		Conditions:        []ClassificationResult{{Label: "angina", Confidence: 0.6}},
		RedFlags:          []string{"diaphoresis"},
		FollowUpQuestions: []string{"Does the pain radiate?"},
	}

	clone := original.Clone()
	clone.Conditions[0].Label = "changed"
	clone.RedFlags[0] = "changed"
	clone.FollowUpQuestions[0] = "changed"

	if original.Conditions[0].Label != "angina" {
		t.Error("Clone should not share the conditions slice")
	}
	if original.RedFlags[0] != "diaphoresis" {
		t.Error("Clone should not share the red flags slice")
	}
	if original.FollowUpQuestions[0] != "Does the pain radiate?" {
		t.Error("Clone should not share the questions slice")
	}

	var nilRecord *TriageRecord
	if nilRecord.Clone() != nil {
		t.Error("Cloning nil should return nil")
	}
}

func TestPatientInfoIsPediatric(t *testing.T) {
	tests := []struct {
		name      string
		age       int
		pediatric bool
	}{
		{"Infant", 1, true},
		{"Teen", 17, true},
		{"Adult", 18, false},
		{"Elderly", 80, false},
		{"UnknownAge", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PatientInfo{Age: tt.age}
			if got := p.IsPediatric(); got != tt.pediatric {
				t.Errorf("Expected IsPediatric()=%v for age %d, got %v", tt.pediatric, tt.age, got)
			}
		})
	}
}

func TestValidateQueryText(t *testing.T) {
	if err := ValidateQueryText("chest pain"); err != nil {
		t.Errorf("Expected valid text, got %v", err)
	}
	if err := ValidateQueryText(""); err == nil {
		t.Error("Expected error for empty text")
	}
	if err := ValidateQueryText("   \t\n "); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}
