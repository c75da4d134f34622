package protocol

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/domain"
)

const (
	keywordPoints          = 2
	emergencyBonus         = 1
	minIndicationWordHits  = 2
	confidenceDivisor      = 5.0
	defaultMatchConfidence = 0.3
)

// Terms that mark an observation as an emergency for scoring purposes. The
// bonus applies only to protocols with immediate transport priority.
var emergencyTerms = []string{
	"unresponsive",
	"unconscious",
	"not breathing",
	"no pulse",
	"severe bleeding",
	"crushing",
	"anaphyla",
	"seizing",
}

// Engine ranks the protocol catalog against field observations.
type Engine struct {
	logger  *logrus.Logger
	catalog *Catalog
}

// NewEngine creates a protocol engine over a loaded catalog.
func NewEngine(logger *logrus.Logger, catalog *Catalog) *Engine {
	return &Engine{logger: logger, catalog: catalog}
}

// Match scores every protocol against the observation and returns the best
// one. Patient may be nil; when present, the winning protocol's medications
// are screened and warnings attached. A zero-score observation routes to
// the default protocol at fixed low confidence.
func (e *Engine) Match(observation string, patient *domain.PatientInfo) (*domain.ProtocolMatch, error) {
	if err := domain.ValidateQueryText(observation); err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}

	lower := strings.ToLower(observation)
	obsWords := strings.Fields(lower)

	type scored struct {
		protocol *domain.Protocol
		score    int
		keywords []string
	}
	results := make([]scored, 0, len(e.catalog.Protocols))

	for i := range e.catalog.Protocols {
		p := &e.catalog.Protocols[i]
		score := 0
		var matched []string

		for _, kw := range p.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += keywordPoints
				matched = append(matched, kw)
			}
		}

		for _, indication := range p.Indications {
			hits := indicationWordHits(indication, obsWords)
			if hits >= minIndicationWordHits {
				score += hits
			}
		}

		if score > 0 && p.TransportPriority == domain.TransportImmediate && containsEmergencyTerm(lower) {
			score += emergencyBonus
		}

		if score > 0 {
			results = append(results, scored{protocol: p, score: score, keywords: matched})
		}
	}

	if len(results) == 0 {
		return &domain.ProtocolMatch{
			Protocol:   e.catalog.DefaultProtocol(),
			Confidence: defaultMatchConfidence,
		}, nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	best := results[0]

	confidence := float64(best.score) / confidenceDivisor
	if confidence > 1 {
		confidence = 1
	}

	match := &domain.ProtocolMatch{
		Protocol:        best.protocol,
		Confidence:      confidence,
		Score:           best.score,
		MatchedKeywords: best.keywords,
	}
	if patient != nil {
		match.DrugWarnings = e.CheckProtocolMedications(best.protocol, patient)
	}

	e.logger.WithFields(logrus.Fields{
		"protocol":   best.protocol.ID,
		"score":      best.score,
		"confidence": confidence,
	}).Debug("Matched protocol")

	return match, nil
}

// indicationWordHits counts indication-phrase words that fuzzy-match an
// observation word by substring in either direction. Short words are
// skipped so articles and prepositions never score.
func indicationWordHits(indication string, obsWords []string) int {
	hits := 0
	for _, iw := range strings.Fields(strings.ToLower(indication)) {
		if len(iw) < 4 {
			continue
		}
		for _, ow := range obsWords {
			if len(ow) < 4 {
				continue
			}
			if strings.Contains(ow, iw) || strings.Contains(iw, ow) {
				hits++
				break
			}
		}
	}
	return hits
}

func containsEmergencyTerm(lower string) bool {
	for _, term := range emergencyTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
