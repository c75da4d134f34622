package embed

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/domain"
)

// HiddenSize is the encoder's embedding width.
const HiddenSize = 384

// topConditions is how many ranked conditions a classification returns.
const topConditions = 3

// Result is one embedding-tier classification: a single top specialty and
// the top-ranked conditions, each with softmax confidences.
type Result struct {
	Specialty           string
	SpecialtyConfidence float64
	Conditions          []domain.ClassificationResult
	ElapsedMs           int64
}

// Classifier is the fast tier: tokenizer + encoder + two classification
// heads. A process holds a single instance; initialization is lazy and
// guarded so concurrent callers share one load.
type Classifier struct {
	logger *logrus.Logger
	rt     *Runtime
	seqLen int

	mu            sync.Mutex
	ready         bool
	tokenizer     *Tokenizer
	encoder       EncoderSession
	specialtyHead HeadSession
	conditionHead HeadSession

	specialtyLabels []string
	conditionLabels []string
}

// NewClassifier creates an uninitialized classifier bound to the detected
// runtime.
func NewClassifier(logger *logrus.Logger, rt *Runtime, seqLen int) *Classifier {
	return &Classifier{
		logger:          logger,
		rt:              rt,
		seqLen:          seqLen,
		specialtyLabels: domain.Specialties,
		conditionLabels: ConditionLabels,
	}
}

// Initialize loads the vocabulary, encoder, and the specialty and condition
// heads. It returns true when the classifier is ready and false when the
// runtime or any artifact is missing - an expected condition that callers
// fall through from, never an error.
func (c *Classifier) Initialize(vocab, encoder, specialtyHead, conditionHead domain.ModelArtifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return true
	}
	if !c.rt.Available() {
		c.logger.WithField("reason", c.rt.Reason()).Info("Embedding classifier unavailable")
		return false
	}
	for _, a := range []domain.ModelArtifact{vocab, encoder, specialtyHead, conditionHead} {
		if info, err := os.Stat(a.LocalPath); err != nil || !a.IsComplete(info.Size()) {
			c.logger.WithField("artifact", a.ID).Info("Embedding classifier artifact missing")
			return false
		}
	}

	tokenizer, err := NewTokenizer(vocab.LocalPath, c.seqLen)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load vocabulary")
		return false
	}

	enc, err := c.rt.NewEncoder(encoder.LocalPath, c.seqLen, HiddenSize)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to open encoder session")
		return false
	}
	spec, err := c.rt.NewHead(specialtyHead.LocalPath, HiddenSize, len(c.specialtyLabels))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to open specialty head session")
		enc.Close()
		return false
	}
	cond, err := c.rt.NewHead(conditionHead.LocalPath, HiddenSize, len(c.conditionLabels))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to open condition head session")
		enc.Close()
		spec.Close()
		return false
	}

	c.tokenizer = tokenizer
	c.encoder = enc
	c.specialtyHead = spec
	c.conditionHead = cond
	c.ready = true

	c.logger.WithFields(logrus.Fields{
		"specialties": len(c.specialtyLabels),
		"conditions":  len(c.conditionLabels),
	}).Info("Embedding classifier ready")
	return true
}

// IsReady reports whether Initialize has succeeded.
func (c *Classifier) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Classify tokenizes, encodes, mean-pools and classifies text.
func (c *Classifier) Classify(text string) (*Result, error) {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return nil, domain.ErrUnavailable
	}
	encoder, specHead, condHead := c.encoder, c.specialtyHead, c.conditionHead
	c.mu.Unlock()

	start := time.Now()

	enc := c.tokenizer.Encode(text)
	hidden, err := encoder.Encode(enc)
	if err != nil {
		return nil, fmt.Errorf("encoder failed: %w", err)
	}
	pooled := MeanPool(hidden, enc.AttentionMask)

	specLogits, err := specHead.Predict(pooled)
	if err != nil {
		return nil, fmt.Errorf("specialty head failed: %w", err)
	}
	condLogits, err := condHead.Predict(pooled)
	if err != nil {
		return nil, fmt.Errorf("condition head failed: %w", err)
	}

	elapsed := time.Since(start).Milliseconds()

	specProbs := Softmax(specLogits)
	top := Argmax(specLogits)

	condProbs := Softmax(condLogits)
	conditions := make([]domain.ClassificationResult, 0, topConditions)
	for _, idx := range TopK(condLogits, topConditions) {
		conditions = append(conditions, domain.ClassificationResult{
			Label:      c.conditionLabels[idx],
			Confidence: condProbs[idx],
			ElapsedMs:  elapsed,
			Tier:       domain.TierEmbedding,
		})
	}

	return &Result{
		Specialty:           c.specialtyLabels[top],
		SpecialtyConfidence: specProbs[top],
		Conditions:          conditions,
		ElapsedMs:           elapsed,
	}, nil
}

// Release closes all sessions. Safe to call when never initialized.
func (c *Classifier) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return
	}
	c.encoder.Close()
	c.specialtyHead.Close()
	c.conditionHead.Close()
	c.ready = false
}

// MeanPool averages per-token embedding vectors over positions the attention
// mask marks as real; padding positions contribute nothing.
func MeanPool(hidden [][]float32, mask []int64) []float32 {
	if len(hidden) == 0 {
		return nil
	}
	width := len(hidden[0])
	sum := make([]float64, width)
	var count float64

	for i, row := range hidden {
		if i >= len(mask) || mask[i] == 0 {
			continue
		}
		count++
		for j, v := range row {
			sum[j] += float64(v)
		}
	}

	pooled := make([]float32, width)
	if count == 0 {
		return pooled
	}
	for j := range sum {
		pooled[j] = float32(sum[j] / count)
	}
	return pooled
}

// Softmax normalizes logits to probabilities over the full vector.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > max {
			max = float64(v)
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest logit; ties resolve to the lowest
// index.
func Argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

// TopK returns the indexes of the k largest logits, descending; equal logits
// keep index order.
func TopK(logits []float32, k int) []int {
	idx := make([]int, len(logits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return logits[idx[a]] > logits[idx[b]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
