package llm

import (
	"fmt"
	"strings"
)

// Turn sentinels for the Gemma-family chat template. The model runtime
// inserts the beginning-of-sequence token itself.
const (
	beginTurn = "<start_of_turn>"
	endTurn   = "<end_of_turn>"

	roleUser  = "user"
	roleModel = "model"
)

// DefaultStopWords terminate generation at the end of a model turn.
var DefaultStopWords = []string{"</s>", endTurn}

// Built-in sampling defaults. Extraction runs cold for reproducible
// structured output; chat runs warmer.
const (
	defaultExtractTemperature = 0.1
	defaultExtractTopP        = 0.9
	defaultChatTemperature    = 0.7
	defaultChatTopP           = 0.95
)

// Sampling carries configured generation tuning. Zero-valued fields fall
// back to the built-in defaults, so an empty Sampling behaves like the
// presets.
type Sampling struct {
	ExtractTemperature float64
	ExtractTopP        float64
	ChatTemperature    float64
	ChatTopP           float64
	MaxTokens          int
}

// Extraction is the low-temperature configuration for deterministic
// structured extraction. maxTokens is the caller's budget; a smaller
// configured MaxTokens lowers it.
func (s Sampling) Extraction(maxTokens int) SamplingParams {
	return SamplingParams{
		Temperature: orDefault(s.ExtractTemperature, defaultExtractTemperature),
		TopP:        orDefault(s.ExtractTopP, defaultExtractTopP),
		MaxTokens:   s.budget(maxTokens),
		StopWords:   DefaultStopWords,
	}
}

// Chat is the higher-temperature configuration for open-ended chat.
func (s Sampling) Chat(maxTokens int) SamplingParams {
	return SamplingParams{
		Temperature: orDefault(s.ChatTemperature, defaultChatTemperature),
		TopP:        orDefault(s.ChatTopP, defaultChatTopP),
		MaxTokens:   s.budget(maxTokens),
		StopWords:   DefaultStopWords,
	}
}

func (s Sampling) budget(maxTokens int) int {
	if s.MaxTokens > 0 && s.MaxTokens < maxTokens {
		return s.MaxTokens
	}
	return maxTokens
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// ExtractionParams returns the default extraction configuration.
func ExtractionParams(maxTokens int) SamplingParams {
	return Sampling{}.Extraction(maxTokens)
}

// ChatParams returns the default chat configuration.
func ChatParams(maxTokens int) SamplingParams {
	return Sampling{}.Chat(maxTokens)
}

// userTurn wraps content in a user turn and opens the model turn.
func userTurn(content string) string {
	var b strings.Builder
	b.WriteString(beginTurn)
	b.WriteString(roleUser)
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(endTurn)
	b.WriteString("\n")
	b.WriteString(beginTurn)
	b.WriteString(roleModel)
	b.WriteString("\n")
	return b.String()
}

// BuildTriagePrompt asks for a full triage in the labeled-line format the
// parser understands.
func BuildTriagePrompt(symptom string) string {
	content := fmt.Sprintf(`Medical triage for: %q
Respond with exactly these lines:
SPECIALTY: one of the medical specialties that should see this patient
CONDITIONS: up to three likely conditions, comma separated
URGENCY: emergency, urgent, or routine
RED_FLAGS: warning signs present, comma separated, or none
TIMEFRAME: when the patient should be seen
QUESTIONS: up to three follow-up questions, semicolon separated`, symptom)
	return userTurn(content)
}

// BuildEnrichmentPrompt asks only for the urgency detail for an
// already-classified symptom; the specialty and conditions are fixed by the
// fast tier and must not be re-decided.
func BuildEnrichmentPrompt(symptom, specialty string, conditions []string) string {
	content := fmt.Sprintf(`A patient reporting %q has been routed to %s (possible: %s).
Respond with exactly these lines:
URGENCY: emergency, urgent, or routine
RED_FLAGS: warning signs present, comma separated, or none
TIMEFRAME: when the patient should be seen
QUESTIONS: up to three follow-up questions, semicolon separated`,
		symptom, specialty, strings.Join(conditions, ", "))
	return userTurn(content)
}

// BuildChatPrompt wraps a free-form user message for open-ended chat.
func BuildChatPrompt(message string) string {
	return userTurn(message)
}
