package domain

import (
	"testing"
)

func TestModelArtifactIsComplete(t *testing.T) {
	artifact := &ModelArtifact{ID: "m", ExpectedBytes: 1000}

	tests := []struct {
		name     string
		onDisk   int64
		complete bool
	}{
		{"Exact", 1000, true},
		{"Over", 1100, true},
		{"AtThreshold", 990, true},
		{"JustUnder", 989, false},
		{"Half", 500, false},
		{"Zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := artifact.IsComplete(tt.onDisk); got != tt.complete {
				t.Errorf("Expected IsComplete(%d)=%v, got %v", tt.onDisk, tt.complete, got)
			}
		})
	}
}

func TestModelArtifactIsCompleteUnknownSize(t *testing.T) {
	artifact := &ModelArtifact{ID: "m"}
	if artifact.IsComplete(0) {
		t.Error("Zero bytes should never count as complete")
	}
	if !artifact.IsComplete(1) {
		t.Error("Any bytes should count as complete when expected size is unknown")
	}
}

func TestDrugMatchesName(t *testing.T) {
	drug := &Drug{
		Name:       "Aspirin",
		BrandNames: []string{"Bayer", "Ecotrin"},
	}

	tests := []struct {
		name    string
		query   string
		matches bool
	}{
		{"CanonicalLower", "aspirin", true},
		{"Brand", "bayer", true},
		{"QueryContainsName", "baby aspirin 81mg", true},
		{"NameContainsQuery", "aspir", true},
		{"Unrelated", "ibuprofen", false},
		{"Empty", "", false},
		{"Whitespace", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := drug.MatchesName(tt.query); got != tt.matches {
				t.Errorf("Expected MatchesName(%q)=%v, got %v", tt.query, tt.matches, got)
			}
		})
	}
}
