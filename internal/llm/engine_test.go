package llm

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
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

// fakeBackend emits a fixed token sequence.
type fakeBackend struct {
	tokens []string
	err    error
	freed  bool
}

func (f *fakeBackend) Predict(prompt string, params SamplingParams, onToken TokenFunc) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var b strings.Builder
	for _, tok := range f.tokens {
		if onToken != nil && !onToken(tok) {
			break
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}

func (f *fakeBackend) Free() { f.freed = true }

func writeModelFile(t *testing.T) domain.ModelArtifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	content := make([]byte, 1000)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return domain.ModelArtifact{ID: "generative", LocalPath: path, ExpectedBytes: 1000}
}

func TestEngineInitializeSuccess(t *testing.T) {
	backend := &fakeBackend{tokens: []string{"ok"}}
	engine := NewEngine(testLogger(), BackendConfig{}, func(path string, cfg BackendConfig) (Backend, error) {
		return backend, nil
	})
	artifact := writeModelFile(t)

	assert.Equal(t, StateUninitialized, engine.CurrentState())
	assert.Equal(t, StateReady, engine.Initialize(artifact))
	assert.True(t, engine.IsReady())

	// Idempotent: a second call does not reload.
	assert.Equal(t, StateReady, engine.Initialize(artifact))
}

func TestEngineInitializeMissingArtifact(t *testing.T) {
	loads := 0
	engine := NewEngine(testLogger(), BackendConfig{}, func(path string, cfg BackendConfig) (Backend, error) {
		loads++
		return &fakeBackend{}, nil
	})
	artifact := domain.ModelArtifact{ID: "generative", LocalPath: "/nonexistent/model.gguf", ExpectedBytes: 1000}

	assert.Equal(t, StateFailed, engine.Initialize(artifact))
	assert.False(t, engine.IsReady())
	assert.Zero(t, loads, "the factory must not run without a complete artifact")
}

func TestEngineInitializeIncompleteArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))
	artifact := domain.ModelArtifact{ID: "generative", LocalPath: path, ExpectedBytes: 1000}

	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{}, nil
	})
	assert.Equal(t, StateFailed, engine.Initialize(artifact))
}

func TestEngineInitializeFactoryError(t *testing.T) {
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return nil, errors.New("load failed")
	})
	assert.Equal(t, StateFailed, engine.Initialize(writeModelFile(t)))
}

func TestEngineInitializeSingleFlight(t *testing.T) {
	var loads int32
	block := make(chan struct{})
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		atomic.AddInt32(&loads, 1)
		<-block
		return &fakeBackend{}, nil
	})
	artifact := writeModelFile(t)

	const callers = 8
	var wg sync.WaitGroup
	states := make([]State, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = engine.Initialize(artifact)
		}(i)
	}
	close(block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "concurrent callers must share one load")
	for _, s := range states {
		assert.Equal(t, StateReady, s)
	}
}

func TestCompleteNotReady(t *testing.T) {
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{}, nil
	})

	_, err := engine.Complete(context.Background(), "prompt", SamplingParams{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCompleteReturnsText(t *testing.T) {
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{tokens: []string{"URGENCY: ", "routine"}}, nil
	})
	require.Equal(t, StateReady, engine.Initialize(writeModelFile(t)))

	text, err := engine.Complete(context.Background(), "prompt", SamplingParams{})
	require.NoError(t, err)
	assert.Equal(t, "URGENCY: routine", text)
}

func TestCompleteStreamingEmitsTokens(t *testing.T) {
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{tokens: []string{"a", "b", "c"}}, nil
	})
	require.Equal(t, StateReady, engine.Initialize(writeModelFile(t)))

	var streamed []string
	text, err := engine.CompleteStreaming(context.Background(), "prompt", SamplingParams{}, func(token string) {
		streamed = append(streamed, token)
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
	assert.Equal(t, []string{"a", "b", "c"}, streamed)
}

func TestCompleteStreamingCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{tokens: []string{"a", "b", "c", "d"}}, nil
	})
	require.Equal(t, StateReady, engine.Initialize(writeModelFile(t)))

	var count int
	_, err := engine.CompleteStreaming(ctx, "prompt", SamplingParams{}, func(token string) {
		count++
		if count == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, count, "generation must stop at the token boundary after cancellation")
}

func TestCompleteBackendError(t *testing.T) {
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return &fakeBackend{err: errors.New("inference blew up")}, nil
	})
	require.Equal(t, StateReady, engine.Initialize(writeModelFile(t)))

	_, err := engine.Complete(context.Background(), "prompt", SamplingParams{})
	require.Error(t, err)
	var perr *domain.PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, domain.ErrCodeTransientIO, perr.Code)
}

func TestReleaseFreesBackendAndAllowsReload(t *testing.T) {
	backend := &fakeBackend{tokens: []string{"x"}}
	engine := NewEngine(testLogger(), BackendConfig{}, func(string, BackendConfig) (Backend, error) {
		return backend, nil
	})
	artifact := writeModelFile(t)
	require.Equal(t, StateReady, engine.Initialize(artifact))

	engine.Release()
	assert.True(t, backend.freed)
	assert.Equal(t, StateUninitialized, engine.CurrentState())

	assert.Equal(t, StateReady, engine.Initialize(artifact))
}
