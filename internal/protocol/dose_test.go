package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-edge-server/internal/domain"
)

func TestComputePediatricDose(t *testing.T) {
	tests := []struct {
		name     string
		formula  string
		weightKg float64
		want     string
	}{
		{
			name:     "MgPerKgWithMax",
			formula:  "0.1mg/kg max 5mg",
			weightKg: 20,
			want:     "2.00mg (0.1mg/kg max 5mg) - MAX 5mg",
		},
		{
			name:     "MaxClampApplied",
			formula:  "0.1mg/kg max 5mg",
			weightKg: 80,
			want:     "5.00mg (0.1mg/kg max 5mg) - MAX 5mg",
		},
		{
			name:     "NoMax",
			formula:  "0.5g/kg",
			weightKg: 10,
			want:     "0.5g/kg",
		},
		{
			name:     "McgUnit",
			formula:  "2mcg/kg",
			weightKg: 15,
			want:     "30.00mcg (2mcg/kg)",
		},
		{
			name:     "MlUnit",
			formula:  "0.2mL/kg max 10mL",
			weightKg: 25,
			want:     "5.00mL (0.2mL/kg max 10mL) - MAX 10mL",
		},
		{
			name:     "UnparseableVerbatim",
			formula:  "titrate to effect",
			weightKg: 20,
			want:     "titrate to effect",
		},
		{
			name:     "UnknownWeightVerbatim",
			formula:  "0.1mg/kg max 5mg",
			weightKg: 0,
			want:     "0.1mg/kg max 5mg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePediatricDose(tt.formula, tt.weightKg))
		})
	}
}

func TestCalculateDoseAdult(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Age: 45, WeightKg: 80}

	result, err := e.CalculateDose("Midazolam", "active seizure", patient)
	require.NoError(t, err)

	assert.Equal(t, "Midazolam", result.Drug)
	assert.Equal(t, "5mg IM", result.Dose)
	assert.False(t, result.Pediatric)
	assert.Equal(t, "IM", result.Route)
}

func TestCalculateDosePediatric(t *testing.T) {
	e := newTestEngine(t)
	patient := &domain.PatientInfo{Age: 6, WeightKg: 20}

	result, err := e.CalculateDose("Midazolam", "active seizure", patient)
	require.NoError(t, err)

	assert.True(t, result.Pediatric)
	assert.Equal(t, "2.00mg (0.1mg/kg max 5mg) - MAX 5mg", result.Dose)
}

func TestCalculateDosePediatricWithoutFormulaUsesAdult(t *testing.T) {
	e := newTestEngine(t)
	// Aspirin has no pediatric formula in the catalog.
	patient := &domain.PatientInfo{Age: 10, WeightKg: 30}

	result, err := e.CalculateDose("Aspirin", "acute coronary syndrome", patient)
	require.NoError(t, err)

	assert.False(t, result.Pediatric)
	assert.Equal(t, "324mg chewed once", result.Dose)
}

func TestCalculateDoseIndicationFuzzyMatch(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.CalculateDose("Epinephrine", "anaphylaxis", nil)
	require.NoError(t, err)
	assert.Equal(t, "0.3mg IM", result.Dose)
}

func TestCalculateDoseUnknownDrug(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CalculateDose("unobtanium", "pain", nil)
	require.Error(t, err)
}

func TestCalculateDoseUnknownIndication(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CalculateDose("Aspirin", "toothache", nil)
	require.Error(t, err)
}
