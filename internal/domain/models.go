package domain

import (
	"strings"
	"time"
)

// ModelArtifact identifies a downloadable model asset. Immutable once
// defined; on-disk existence and size are checked against local storage on
// demand, never cached in memory beyond a single check.
type ModelArtifact struct {
	ID            string `json:"id"`
	RemoteURL     string `json:"remote_url"`
	LocalPath     string `json:"local_path"`
	ExpectedBytes int64  `json:"expected_bytes"`
}

// CompletionThreshold is the fraction of ExpectedBytes that counts as a
// finished transfer. Remote stores may apply transparent compression or
// rounding, so the on-disk size can land slightly under the advertised size.
const CompletionThreshold = 0.99

// IsComplete reports whether bytesOnDisk satisfies the completion threshold.
func (a *ModelArtifact) IsComplete(bytesOnDisk int64) bool {
	if a.ExpectedBytes <= 0 {
		return bytesOnDisk > 0
	}
	return float64(bytesOnDisk) >= float64(a.ExpectedBytes)*CompletionThreshold
}

// ArtifactStatus is the result of a local storage check for an artifact.
type ArtifactStatus struct {
	Exists      bool  `json:"exists"`
	BytesOnDisk int64 `json:"bytes_on_disk"`
}

// TransferState is the resumable cursor for one in-flight acquisition. It is
// owned exclusively by the acquisition manager, persisted on pause and
// cleared on successful completion.
type TransferState struct {
	ArtifactID    string    `json:"artifact_id"`
	RemoteURL     string    `json:"remote_url"`
	LocalPath     string    `json:"local_path"`
	BytesReceived int64     `json:"bytes_received"`
	BytesExpected int64     `json:"bytes_expected"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransportPriority is how urgently a protocol patient must be transported.
type TransportPriority string

const (
	TransportImmediate TransportPriority = "immediate"
	TransportUrgent    TransportPriority = "urgent"
	TransportRoutine   TransportPriority = "routine"
)

// ProtocolStep is one ordered action within a protocol.
type ProtocolStep struct {
	Instruction string `json:"instruction"`
	Critical    bool   `json:"critical"`
}

// MedicationDose names a drug and its protocol-specified dose and route.
type MedicationDose struct {
	Drug  string `json:"drug"`
	Dose  string `json:"dose"`
	Route string `json:"route"`
}

// Protocol is one emergency field protocol from the versioned catalog.
// Loaded once at startup and immutable at runtime.
type Protocol struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Category          string            `json:"category"`
	Keywords          []string          `json:"keywords"`
	Indications       []string          `json:"indications"`
	Contraindications []string          `json:"contraindications,omitempty"`
	Steps             []ProtocolStep    `json:"steps"`
	Medications       []MedicationDose  `json:"medications,omitempty"`
	RedFlags          []string          `json:"red_flags,omitempty"`
	TransportPriority TransportPriority `json:"transport_priority"`
}

// DrugInteraction is one named drug-drug interaction with its severity.
type DrugInteraction struct {
	Drug     string   `json:"drug"`
	Severity Severity `json:"severity"`
	Effect   string   `json:"effect"`
}

// DoseEntry is the dosing for one indication: an adult formula and a
// pediatric per-kilogram formula.
type DoseEntry struct {
	Indication string `json:"indication"`
	Adult      string `json:"adult"`
	Pediatric  string `json:"pediatric"`
}

// Drug is one entry in the versioned drug catalog. Immutable after load.
type Drug struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	BrandNames        []string          `json:"brand_names,omitempty"`
	Class             string            `json:"class"`
	Indications       []string          `json:"indications,omitempty"`
	Contraindications []string          `json:"contraindications,omitempty"`
	Interactions      []DrugInteraction `json:"interactions,omitempty"`
	Dosing            []DoseEntry       `json:"dosing,omitempty"`
	Routes            []string          `json:"routes,omitempty"`
	MaxDose           string            `json:"max_dose,omitempty"`
	Allergens         []string          `json:"allergens,omitempty"`
}

// MatchesName reports whether the given free-text name refers to this drug,
// checking the canonical name and brand aliases by substring either way.
func (d *Drug) MatchesName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	candidates := append([]string{d.Name}, d.BrandNames...)
	for _, c := range candidates {
		c = strings.ToLower(c)
		if strings.Contains(c, n) || strings.Contains(n, c) {
			return true
		}
	}
	return false
}

// Severity grades an interaction warning.
type Severity string

const (
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
	SeverityMild     Severity = "mild"
)

// WarningCategory classifies what kind of safety finding a warning is.
type WarningCategory string

const (
	WarningAllergy          WarningCategory = "allergy"
	WarningDrugDrug         WarningCategory = "drug-drug"
	WarningContraindication WarningCategory = "contraindication"
)

// InteractionWarning is one safety finding for a medication in a protocol.
// Produced fresh per query, never persisted.
type InteractionWarning struct {
	Drug     string          `json:"drug"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Category WarningCategory `json:"category"`
}

// ProtocolMatch is the result of scoring the protocol catalog against a
// field observation.
type ProtocolMatch struct {
	Protocol        *Protocol            `json:"protocol"`
	Confidence      float64              `json:"confidence"`
	Score           int                  `json:"score"`
	MatchedKeywords []string             `json:"matched_keywords,omitempty"`
	DrugWarnings    []InteractionWarning `json:"drug_warnings,omitempty"`
}
