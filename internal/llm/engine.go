// Package llm wraps the on-device generative model: lazy single-flight
// initialization, blocking and token-streaming completion, role-tagged
// prompt construction and a tolerant structured-output parser.
package llm

import (
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/domain"
)

// State is the engine lifecycle. Initialization collapses concurrent
// callers into one load; late callers block on the in-flight attempt.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SamplingParams configures one completion.
type SamplingParams struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	StopWords   []string
}

// BackendConfig configures the model load.
type BackendConfig struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// TokenFunc receives streamed tokens. Returning false stops generation.
type TokenFunc func(token string) bool

// Backend is a loaded generative model. Implementations are not safe for
// concurrent prediction; the engine serializes calls.
type Backend interface {
	Predict(prompt string, params SamplingParams, onToken TokenFunc) (string, error)
	Free()
}

// BackendFactory loads a model file into a Backend.
type BackendFactory func(modelPath string, cfg BackendConfig) (Backend, error)

// Engine owns the process-wide generative model instance.
type Engine struct {
	logger  *logrus.Logger
	cfg     BackendConfig
	factory BackendFactory

	mu      sync.Mutex
	state   State
	waitCh  chan struct{}
	backend Backend

	// genMu serializes predictions; a single model context cannot run
	// overlapping generations.
	genMu sync.Mutex
}

// NewEngine creates an engine that loads models with the given factory.
// Passing nil uses the llama.cpp backend.
func NewEngine(logger *logrus.Logger, cfg BackendConfig, factory BackendFactory) *Engine {
	if factory == nil {
		factory = newLlamaBackend
	}
	return &Engine{logger: logger, cfg: cfg, factory: factory}
}

// Initialize loads the model artifact. Idempotent and re-entrant: concurrent
// callers await the same in-flight load. Returns StateReady on success and
// StateFailed when the artifact is missing or the load fails - an expected
// condition for callers, not an error.
func (e *Engine) Initialize(artifact domain.ModelArtifact) State {
	for {
		e.mu.Lock()
		switch e.state {
		case StateReady, StateFailed:
			s := e.state
			e.mu.Unlock()
			return s
		case StateInitializing:
			ch := e.waitCh
			e.mu.Unlock()
			<-ch
			continue
		}

		// Uninitialized: this caller performs the load.
		e.state = StateInitializing
		e.waitCh = make(chan struct{})
		ch := e.waitCh
		e.mu.Unlock()

		backend, ok := e.load(artifact)

		e.mu.Lock()
		if ok {
			e.backend = backend
			e.state = StateReady
		} else {
			e.state = StateFailed
		}
		s := e.state
		close(ch)
		e.mu.Unlock()
		return s
	}
}

// load opens the model file. Failures are logged, never thrown.
func (e *Engine) load(artifact domain.ModelArtifact) (Backend, bool) {
	info, err := os.Stat(artifact.LocalPath)
	if err != nil || !artifact.IsComplete(info.Size()) {
		e.logger.WithField("artifact", artifact.ID).Info("Generative model artifact missing")
		return nil, false
	}

	e.logger.WithFields(logrus.Fields{
		"artifact":     artifact.ID,
		"context_size": e.cfg.ContextSize,
		"gpu_layers":   e.cfg.GPULayers,
	}).Info("Loading generative model")

	backend, err := e.factory(artifact.LocalPath, e.cfg)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to load generative model")
		return nil, false
	}
	return backend, true
}

// CurrentState returns the engine state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsReady reports whether completions can be served.
func (e *Engine) IsReady() bool {
	return e.CurrentState() == StateReady
}

// Complete runs a blocking completion. Returns domain.ErrUnavailable when the
// model is not loaded.
func (e *Engine) Complete(ctx context.Context, prompt string, params SamplingParams) (string, error) {
	return e.CompleteStreaming(ctx, prompt, params, nil)
}

// CompleteStreaming runs a completion, emitting tokens through onToken as
// they are produced. The callback fires from the inference goroutine and
// must not block. Context cancellation stops generation at the next token
// boundary.
func (e *Engine) CompleteStreaming(ctx context.Context, prompt string, params SamplingParams, onToken func(string)) (string, error) {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return "", domain.ErrUnavailable
	}
	backend := e.backend
	e.mu.Unlock()

	e.genMu.Lock()
	defer e.genMu.Unlock()

	cb := func(token string) bool {
		if ctx.Err() != nil {
			return false
		}
		if onToken != nil {
			onToken(token)
		}
		return true
	}

	text, err := backend.Predict(prompt, params, cb)
	if err != nil {
		return "", domain.NewTransientIOError("generation failed", err)
	}
	if ctx.Err() != nil {
		return text, ctx.Err()
	}
	return text, nil
}

// Release frees the loaded model and returns the engine to Uninitialized so
// a later Initialize can reload it.
func (e *Engine) Release() {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend != nil {
		e.backend.Free()
		e.backend = nil
	}
	e.state = StateUninitialized
	e.logger.Info("Generative model released")
}
