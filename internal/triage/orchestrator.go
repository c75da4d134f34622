package triage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/triage-edge-server/internal/domain"
	"github.com/triage-edge-server/internal/embed"
	"github.com/triage-edge-server/internal/llm"
)

// FastClassifier is the embedding tier as the orchestrator sees it.
type FastClassifier interface {
	IsReady() bool
	Classify(text string) (*embed.Result, error)
}

// GenerativeEngine is the language-model tier as the orchestrator sees it.
type GenerativeEngine interface {
	IsReady() bool
	Complete(ctx context.Context, prompt string, params llm.SamplingParams) (string, error)
}

// Recorder receives pipeline observations. The metrics package implements
// it; a nil recorder disables recording.
type Recorder interface {
	ObserveClassification(tier domain.Tier, elapsed time.Duration)
	ObserveCacheHit()
}

const (
	cacheDefaultSize     = 256
	extractionMaxTokens  = 192
	enrichmentMaxTokens  = 128
	generativeTimeout    = 45 * time.Second
	breakerOpenThreshold = 3
)

// Orchestrator runs the tiered classification cascade: embedding model
// first, generative model second, keyword routing last. It always produces
// a record for non-empty input.
type Orchestrator struct {
	logger     *logrus.Logger
	classifier FastClassifier
	engine     GenerativeEngine
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache
	recorder   Recorder
	sampling   llm.Sampling
}

// NewOrchestrator wires the cascade. cacheSize <= 0 selects the default;
// a zero-valued sampling selects the built-in presets.
func NewOrchestrator(logger *logrus.Logger, classifier FastClassifier, engine GenerativeEngine, recorder Recorder, cacheSize int, sampling llm.Sampling) (*Orchestrator, error) {
	if cacheSize <= 0 {
		cacheSize = cacheDefaultSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "generative-tier",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerOpenThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Orchestrator{
		logger:     logger,
		classifier: classifier,
		engine:     engine,
		breaker:    breaker,
		cache:      cache,
		recorder:   recorder,
		sampling:   sampling,
	}, nil
}

// ProvisionalFunc receives the record established by the fast tier before
// generative enrichment runs. The record passed in is a private copy.
type ProvisionalFunc func(record *domain.TriageRecord)

// Triage classifies a symptom description through the tier cascade and
// enriches the result with urgency detail when the generative engine is
// available. It fails only for empty input.
func (o *Orchestrator) Triage(ctx context.Context, symptoms string, onProvisional ProvisionalFunc) (*domain.TriageRecord, error) {
	if err := domain.ValidateQueryText(symptoms); err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}

	key := normalizeKey(symptoms)
	if cached, ok := o.cache.Get(key); ok {
		if o.recorder != nil {
			o.recorder.ObserveCacheHit()
		}
		return cached.(*domain.TriageRecord).Clone(), nil
	}

	start := time.Now()
	record := o.classify(ctx, symptoms)
	record.RequestID = uuid.New().String()

	body, timeframe, questions := DefaultsFor(record.Specialty)
	if record.BodySystem == "" {
		record.BodySystem = body
	}
	if record.FollowUpTimeframe == "" {
		record.FollowUpTimeframe = timeframe
	}
	if len(record.FollowUpQuestions) == 0 {
		record.FollowUpQuestions = questions
	}
	if record.Urgency == "" {
		record.Urgency = domain.UrgencyRoutine
	}
	if IsEmergency(symptoms) {
		record.Urgency = domain.UrgencyEmergency
	}

	// Only embedding-tier results get a second, enriching pass. A fallback
	// record means the generative tier already had its chance (or the fast
	// tier never ran), so the cascade is done.
	needsEnrichment := record.Tier == domain.TierEmbedding && o.engine.IsReady()
	record.Enriching = needsEnrichment
	if onProvisional != nil {
		onProvisional(record.Clone())
	}

	if needsEnrichment {
		o.enrich(ctx, symptoms, record)
	}
	record.Enriching = false

	if IsEmergency(symptoms) {
		record.Urgency = domain.UrgencyEmergency
	}
	record.ElapsedMs = time.Since(start).Milliseconds()
	if o.recorder != nil {
		o.recorder.ObserveClassification(record.Tier, time.Since(start))
	}

	o.cache.Add(key, record.Clone())
	return record, nil
}

// classify runs the cascade and returns the first tier that answered. The
// keyword tier cannot fail, so a record always comes back.
func (o *Orchestrator) classify(ctx context.Context, symptoms string) *domain.TriageRecord {
	if o.classifier.IsReady() {
		result, err := o.classifier.Classify(symptoms)
		if err == nil {
			return &domain.TriageRecord{
				Specialty:           result.Specialty,
				SpecialtyConfidence: result.SpecialtyConfidence,
				Conditions:          result.Conditions,
				Tier:                domain.TierEmbedding,
			}
		}
		o.logger.WithError(err).Warn("Embedding tier failed, falling through")
	}

	if o.engine.IsReady() {
		record, err := o.generativeTriage(ctx, symptoms)
		if err == nil {
			return record
		}
		o.logger.WithError(err).Warn("Generative tier failed, falling through")
	}

	specialty, confidence := ClassifyByKeywords(symptoms)
	return &domain.TriageRecord{
		Specialty:           specialty,
		SpecialtyConfidence: confidence,
		Tier:                domain.TierFallback,
	}
}

// generativeTriage asks the language model for a full triage and parses its
// labeled-line response. All calls pass through the circuit breaker.
func (o *Orchestrator) generativeTriage(ctx context.Context, symptoms string) (*domain.TriageRecord, error) {
	text, err := o.complete(ctx, llm.BuildTriagePrompt(symptoms), o.sampling.Extraction(extractionMaxTokens))
	if err != nil {
		return nil, err
	}

	fields := llm.ParseTriageResponse(text, llm.TriageFields{
		Urgency: domain.UrgencyRoutine,
	})

	specialty := fields.Specialty
	if !domain.IsKnownSpecialty(specialty) {
		specialty = llm.FindSpecialty(specialty + " " + text)
	}

	record := &domain.TriageRecord{
		Specialty:           specialty,
		SpecialtyConfidence: 0.70,
		Urgency:             fields.Urgency,
		RedFlags:            fields.RedFlags,
		FollowUpTimeframe:   fields.Timeframe,
		FollowUpQuestions:   fields.Questions,
		Tier:                domain.TierGenerative,
	}
	for _, c := range fields.Conditions {
		record.Conditions = append(record.Conditions, domain.ClassificationResult{
			Label: c,
			Tier:  domain.TierGenerative,
		})
	}
	return record, nil
}

// enrich refines urgency, red flags, timeframe and follow-up questions on
// a record whose classification is already fixed. Failures leave the
// provisional values in place.
func (o *Orchestrator) enrich(ctx context.Context, symptoms string, record *domain.TriageRecord) {
	conditions := make([]string, 0, len(record.Conditions))
	for _, c := range record.Conditions {
		conditions = append(conditions, c.Label)
	}

	text, err := o.complete(ctx, llm.BuildEnrichmentPrompt(symptoms, record.Specialty, conditions), o.sampling.Extraction(enrichmentMaxTokens))
	if err != nil {
		o.logger.WithError(err).Debug("Enrichment skipped")
		return
	}

	fields := llm.ParseTriageResponse(text, llm.TriageFields{
		Urgency:   record.Urgency,
		RedFlags:  record.RedFlags,
		Timeframe: record.FollowUpTimeframe,
		Questions: record.FollowUpQuestions,
	})
	record.Urgency = fields.Urgency
	record.RedFlags = fields.RedFlags
	record.FollowUpTimeframe = fields.Timeframe
	record.FollowUpQuestions = fields.Questions
}

func (o *Orchestrator) complete(ctx context.Context, prompt string, params llm.SamplingParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generativeTimeout)
	defer cancel()

	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.engine.Complete(ctx, prompt, params)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Classify answers the single-label fast path without enrichment: embedding
// tier when ready, keyword routing otherwise.
func (o *Orchestrator) Classify(symptoms string) (*domain.ClassificationResult, error) {
	if err := domain.ValidateQueryText(symptoms); err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}

	start := time.Now()
	if o.classifier.IsReady() {
		result, err := o.classifier.Classify(symptoms)
		if err == nil {
			return &domain.ClassificationResult{
				Label:      result.Specialty,
				Confidence: result.SpecialtyConfidence,
				ElapsedMs:  time.Since(start).Milliseconds(),
				Tier:       domain.TierEmbedding,
			}, nil
		}
		o.logger.WithError(err).Warn("Embedding tier failed, falling through")
	}

	specialty, confidence := ClassifyByKeywords(symptoms)
	return &domain.ClassificationResult{
		Label:      specialty,
		Confidence: confidence,
		ElapsedMs:  time.Since(start).Milliseconds(),
		Tier:       domain.TierFallback,
	}, nil
}

func normalizeKey(symptoms string) string {
	return strings.Join(strings.Fields(strings.ToLower(symptoms)), " ")
}
