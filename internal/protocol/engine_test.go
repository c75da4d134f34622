package protocol

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-edge-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	catalog, err := LoadCatalog(testLogger(), t.TempDir())
	require.NoError(t, err)
	return NewEngine(testLogger(), catalog)
}

func TestLoadCatalogEmbeddedDefaults(t *testing.T) {
	catalog, err := LoadCatalog(testLogger(), t.TempDir())
	require.NoError(t, err)

	assert.NotEmpty(t, catalog.Protocols)
	assert.NotEmpty(t, catalog.Drugs)
	require.NotNil(t, catalog.DefaultProtocol())
	assert.Equal(t, "general-assessment", catalog.DefaultProtocol().ID)
}

func TestCatalogFindDrug(t *testing.T) {
	catalog, err := LoadCatalog(testLogger(), t.TempDir())
	require.NoError(t, err)

	assert.NotNil(t, catalog.FindDrug("Aspirin"))
	assert.NotNil(t, catalog.FindDrug("aspirin"))
	assert.NotNil(t, catalog.FindDrug("Bayer"), "brand names must resolve")
	assert.Nil(t, catalog.FindDrug("unobtanium"))
}

func TestMatchCardiacOverDermatology(t *testing.T) {
	e := newTestEngine(t)

	match, err := e.Match("crushing chest pain, diaphoretic, pale", nil)
	require.NoError(t, err)

	require.NotNil(t, match.Protocol)
	assert.Equal(t, "cardiac", match.Protocol.Category)
	assert.Greater(t, match.Score, 0)
	assert.NotEmpty(t, match.MatchedKeywords)
}

func TestMatchDefaultProtocolOnZeroScore(t *testing.T) {
	e := newTestEngine(t)

	match, err := e.Match("feeling slightly odd today", nil)
	require.NoError(t, err)

	assert.Equal(t, e.catalog.DefaultProtocol().ID, match.Protocol.ID)
	assert.InDelta(t, 0.3, match.Confidence, 1e-9)
	assert.Zero(t, match.Score)
}

func TestMatchConfidenceCappedAtOne(t *testing.T) {
	e := newTestEngine(t)

	// Pile on cardiac keywords so the raw score exceeds the divisor.
	match, err := e.Match("crushing chest pain with pressure radiating to jaw pain and left arm, diaphoretic", nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, match.Score, 5)
	assert.InDelta(t, 1.0, match.Confidence, 1e-9)
}

func TestMatchScoreMonotonic(t *testing.T) {
	e := newTestEngine(t)

	base, err := e.Match("chest pain", nil)
	require.NoError(t, err)
	more, err := e.Match("crushing chest pain", nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, more.Score, base.Score,
		"adding a matched keyword must never decrease the score")
}

func TestMatchEmergencyBonusOnlyForImmediatePriority(t *testing.T) {
	e := newTestEngine(t)

	// "unresponsive" is an emergency term; the skin protocol is routine
	// priority so its score must come only from keywords.
	withTerm, err := e.Match("unresponsive to treatment, spreading rash", nil)
	require.NoError(t, err)
	plain, err := e.Match("spreading rash", nil)
	require.NoError(t, err)

	if withTerm.Protocol.ID == "skin-infection" && plain.Protocol.ID == "skin-infection" {
		assert.Equal(t, plain.Score, withTerm.Score,
			"routine-priority protocols must not receive the emergency bonus")
	}
}

func TestMatchEmptyObservation(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Match("  ", nil)
	require.Error(t, err)
}

func TestMatchAttachesDrugWarningsForPatient(t *testing.T) {
	e := newTestEngine(t)

	patient := &domain.PatientInfo{Age: 55, Allergies: []string{"aspirin"}}
	match, err := e.Match("crushing chest pain, diaphoretic", patient)
	require.NoError(t, err)

	require.NotEmpty(t, match.DrugWarnings, "an aspirin-allergic cardiac patient must get a warning")
	found := false
	for _, w := range match.DrugWarnings {
		if w.Drug == "Aspirin" && w.Severity == domain.SeveritySevere {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIndicationWordHits(t *testing.T) {
	obs := []string{"crushing", "substernal", "chest", "pain"}

	// Three long words of the indication match; short words are skipped.
	hits := indicationWordHits("crushing substernal chest pain with diaphoresis", obs)
	assert.GreaterOrEqual(t, hits, 3)

	assert.Zero(t, indicationWordHits("a of to in", obs), "short words never score")
	assert.Zero(t, indicationWordHits("unrelated phrase entirely", []string{"rash"}))
}
