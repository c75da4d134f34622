package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-edge-server/internal/domain"
)

func TestCheckInteractionsDirectAllergy(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Allergies: []string{"aspirin"}}

	warnings := e.CheckInteractions("Aspirin", patient)

	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.SeveritySevere, warnings[0].Severity)
	assert.Equal(t, domain.WarningAllergy, warnings[0].Category)
	assert.Contains(t, warnings[0].Message, "do not administer")
}

func TestCheckInteractionsBrandNameAllergy(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Allergies: []string{"Bayer"}}

	warnings := e.CheckInteractions("Aspirin", patient)

	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.SeveritySevere, warnings[0].Severity)
}

func TestCheckInteractionsAllergenList(t *testing.T) {
	e := newTestEngine(t)
	// Aspirin's documented allergens include the NSAID family.
	patient := &domain.PatientInfo{Allergies: []string{"nsaid"}}

	warnings := e.CheckInteractions("Aspirin", patient)

	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.SeveritySevere, warnings[0].Severity)
	assert.Equal(t, domain.WarningAllergy, warnings[0].Category)
}

func TestCheckInteractionsCrossReaction(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Allergies: []string{"codeine allergy"}}

	warnings := e.CheckInteractions("Morphine", patient)

	require.NotEmpty(t, warnings)
	severe := false
	for _, w := range warnings {
		assert.Equal(t, domain.WarningAllergy, w.Category)
		if w.Severity == domain.SeveritySevere {
			severe = true
		}
	}
	// Morphine lists codeine as an allergen, so the direct path fires severe.
	assert.True(t, severe)
}

func TestAllergyWarningsCrossReactionFamily(t *testing.T) {
	// The drug entry itself does not list penicillin as an allergen; only
	// the cross-reaction family table connects them, at moderate severity.
	entry := &domain.Drug{Name: "Cephalexin", Class: "cephalosporin"}
	patient := &domain.PatientInfo{Allergies: []string{"penicillin"}}

	warnings := allergyWarnings("Cephalexin", entry, patient)

	require.Len(t, warnings, 1)
	assert.Equal(t, domain.SeverityModerate, warnings[0].Severity)
	assert.Equal(t, domain.WarningAllergy, warnings[0].Category)
	assert.Contains(t, warnings[0].Message, "cross-react")
}

func TestCheckInteractionsDrugDrug(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{CurrentMedications: []string{"warfarin 5mg daily"}}

	warnings := e.CheckInteractions("Aspirin", patient)

	require.NotEmpty(t, warnings)
	found := false
	for _, w := range warnings {
		if w.Category == domain.WarningDrugDrug {
			found = true
			assert.Equal(t, domain.SeveritySevere, w.Severity)
			assert.Contains(t, w.Message, "bleeding")
		}
	}
	assert.True(t, found, "warfarin plus aspirin must warn")
}

func TestCheckInteractionsNitrateBloodPressure(t *testing.T) {
	e := newTestEngine(t)

	low := &domain.PatientInfo{SystolicBP: 85}
	warnings := e.CheckInteractions("Nitroglycerin", low)
	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.WarningContraindication, warnings[0].Category)
	assert.Equal(t, domain.SeveritySevere, warnings[0].Severity)
	assert.Contains(t, warnings[0].Message, "Hold")

	ok := &domain.PatientInfo{SystolicBP: 120}
	assert.Empty(t, e.CheckInteractions("Nitroglycerin", ok))

	unknown := &domain.PatientInfo{}
	assert.Empty(t, e.CheckInteractions("Nitroglycerin", unknown),
		"unknown vitals must not trigger the hold")
}

func TestCheckInteractionsNoFindings(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{
		Allergies:          []string{"peanuts"},
		CurrentMedications: []string{"vitamin d"},
		SystolicBP:         130,
	}

	assert.Empty(t, e.CheckInteractions("Aspirin", patient))
}

func TestCheckInteractionsNilPatient(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.CheckInteractions("Aspirin", nil))
}

func TestCheckProtocolMedications(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Allergies: []string{"aspirin"}, SystolicBP: 85}

	var acs *domain.Protocol
	for i := range e.catalog.Protocols {
		if e.catalog.Protocols[i].ID == "acs" {
			acs = &e.catalog.Protocols[i]
		}
	}
	require.NotNil(t, acs)

	warnings := e.CheckProtocolMedications(acs, patient)

	categories := make(map[domain.WarningCategory]bool)
	for _, w := range warnings {
		categories[w.Category] = true
	}
	assert.True(t, categories[domain.WarningAllergy], "aspirin allergy must surface")
	assert.True(t, categories[domain.WarningContraindication], "low BP nitrate hold must surface")
}
