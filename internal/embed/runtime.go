package embed

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// EncoderSession runs the sentence encoder, producing one embedding vector
// per token position.
type EncoderSession interface {
	Encode(enc Encoded) ([][]float32, error)
	Close() error
}

// HeadSession runs a classification head over a pooled sentence vector,
// producing per-class logits.
type HeadSession interface {
	Predict(embedding []float32) ([]float32, error)
	Close() error
}

// Runtime is the capability-detection result for the on-device ONNX
// runtime: either available (sessions can be created) or unavailable with a
// reason. Detected once at startup and consumed uniformly by callers.
type Runtime struct {
	available bool
	reason    string
}

var (
	detectOnce sync.Once
	detected   *Runtime
)

// DetectRuntime probes for the ONNX runtime shared library exactly once per
// process. Absence is an expected, non-fatal condition.
func DetectRuntime(libraryPath string, logger *logrus.Logger) *Runtime {
	detectOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			logger.WithError(err).Warn("ONNX runtime unavailable; embedding tier disabled")
			detected = &Runtime{reason: err.Error()}
			return
		}
		logger.Info("ONNX runtime initialized")
		detected = &Runtime{available: true}
	})
	return detected
}

// Available reports whether ONNX sessions can be created.
func (r *Runtime) Available() bool {
	return r != nil && r.available
}

// Reason explains why the runtime is unavailable.
func (r *Runtime) Reason() string {
	if r == nil {
		return "runtime not detected"
	}
	return r.reason
}

// NewEncoder opens an encoder session. seqLen and hiddenSize fix the
// expected tensor shapes.
func (r *Runtime) NewEncoder(modelPath string, seqLen, hiddenSize int) (EncoderSession, error) {
	if !r.Available() {
		return nil, fmt.Errorf("onnx runtime unavailable: %s", r.reason)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder session: %w", err)
	}
	return &onnxEncoder{session: session, seqLen: seqLen, hiddenSize: hiddenSize}, nil
}

// NewHead opens a classification head session producing numClasses logits.
func (r *Runtime) NewHead(modelPath string, embeddingSize, numClasses int) (HeadSession, error) {
	if !r.Available() {
		return nil, fmt.Errorf("onnx runtime unavailable: %s", r.reason)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"embedding"}, []string{"logits"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open head session: %w", err)
	}
	return &onnxHead{session: session, embeddingSize: embeddingSize, numClasses: numClasses}, nil
}

// onnxEncoder is the ONNX-backed EncoderSession.
type onnxEncoder struct {
	session    *ort.DynamicAdvancedSession
	seqLen     int
	hiddenSize int
}

// Encode runs the encoder and reshapes the flat output into per-token rows.
func (e *onnxEncoder) Encode(enc Encoded) ([][]float32, error) {
	shape := ort.NewShape(1, int64(e.seqLen))

	inputIDs, err := ort.NewTensor(shape, enc.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build input tensor: %w", err)
	}
	defer inputIDs.Destroy()

	attentionMask, err := ort.NewTensor(shape, enc.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to build mask tensor: %w", err)
	}
	defer attentionMask.Destroy()

	tokenTypes, err := ort.NewTensor(shape, enc.TokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build token type tensor: %w", err)
	}
	defer tokenTypes.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.seqLen), int64(e.hiddenSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate output tensor: %w", err)
	}
	defer output.Destroy()

	err = e.session.Run(
		[]ort.Value{inputIDs, attentionMask, tokenTypes},
		[]ort.Value{output},
	)
	if err != nil {
		return nil, fmt.Errorf("encoder inference failed: %w", err)
	}

	flat := output.GetData()
	hidden := make([][]float32, e.seqLen)
	for i := 0; i < e.seqLen; i++ {
		row := make([]float32, e.hiddenSize)
		copy(row, flat[i*e.hiddenSize:(i+1)*e.hiddenSize])
		hidden[i] = row
	}
	return hidden, nil
}

// Close releases the encoder session.
func (e *onnxEncoder) Close() error {
	return e.session.Destroy()
}

// onnxHead is the ONNX-backed HeadSession.
type onnxHead struct {
	session       *ort.DynamicAdvancedSession
	embeddingSize int
	numClasses    int
}

// Predict runs the head over one pooled sentence vector.
func (h *onnxHead) Predict(embedding []float32) ([]float32, error) {
	if len(embedding) != h.embeddingSize {
		return nil, fmt.Errorf("embedding size %d, expected %d", len(embedding), h.embeddingSize)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(h.embeddingSize)), embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(h.numClasses)))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate logits tensor: %w", err)
	}
	defer output.Destroy()

	if err := h.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("head inference failed: %w", err)
	}

	logits := make([]float32, h.numClasses)
	copy(logits, output.GetData())
	return logits, nil
}

// Close releases the head session.
func (h *onnxHead) Close() error {
	return h.session.Destroy()
}
