package llm

import (
	"fmt"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBackend binds the engine to llama.cpp for GGUF models.
type llamaBackend struct {
	model   *llama.LLama
	threads int
}

// newLlamaBackend loads a GGUF model file.
func newLlamaBackend(modelPath string, cfg BackendConfig) (Backend, error) {
	model, err := llama.New(modelPath,
		llama.SetContext(cfg.ContextSize),
		llama.SetGPULayers(cfg.GPULayers),
		llama.SetMMap(true),
	)
	if err != nil {
		return nil, fmt.Errorf("llama load failed: %w", err)
	}
	return &llamaBackend{model: model, threads: cfg.Threads}, nil
}

// Predict runs one generation, streaming tokens through onToken.
func (b *llamaBackend) Predict(prompt string, params SamplingParams, onToken TokenFunc) (string, error) {
	if onToken != nil {
		b.model.SetTokenCallback(func(token string) bool {
			return onToken(token)
		})
		defer b.model.SetTokenCallback(nil)
	}

	opts := []llama.PredictOption{
		llama.SetTemperature(float32(params.Temperature)),
		llama.SetTopP(float32(params.TopP)),
		llama.SetTokens(params.MaxTokens),
		llama.SetThreads(b.threads),
	}
	if len(params.StopWords) > 0 {
		opts = append(opts, llama.SetStopWords(params.StopWords...))
	}

	return b.model.Predict(prompt, opts...)
}

// Free releases model memory.
func (b *llamaBackend) Free() {
	b.model.Free()
}
