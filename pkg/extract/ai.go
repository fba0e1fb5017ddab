package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"invoice-collector-be/internal/constant"
	"invoice-collector-be/pkg/llm"
	"invoice-collector-be/pkg/resilience"
)

// Field is one extracted candidate value with its confidence.
type Field struct {
	Value      string
	Confidence float64
}

// Item is one extracted work-item candidate. Amounts are in pence.
type Item struct {
	Description string
	AmountPence int64
	Confidence  float64
}

// FieldSet is the output of one field-extraction strategy.
type FieldSet struct {
	Fields map[string]Field
	Items  []Item
}

// AIFieldExtractor asks an LLM to pull structured invoice fields out
// of raw document text.
type AIFieldExtractor struct {
	name     string
	provider llm.LLMProvider
}

func NewAIFieldExtractor(name string, provider llm.LLMProvider) *AIFieldExtractor {
	return &AIFieldExtractor{name: name, provider: provider}
}

type aiFieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type aiWorkItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
}

type aiResponse struct {
	Fields    map[string]aiFieldValue `json:"fields"`
	WorkItems []aiWorkItem            `json:"work_items"`
}

// Extract runs the extraction prompt against the provider and parses
// the JSON reply. A reply that does not parse is a dependency failure
// worth retrying; models are not deterministic.
func (a *AIFieldExtractor) Extract(ctx context.Context, rawText string) (FieldSet, error) {
	raw, err := a.provider.Generate(ctx, constant.ExtractionPromptV1+rawText, llm.WithTemperature(0.1))
	if err != nil {
		return FieldSet{}, err
	}

	var parsed aiResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return FieldSet{}, resilience.NewDependencyError(a.name, resilience.KindUnknown, 0,
			fmt.Errorf("model returned unparseable extraction: %w", err))
	}

	out := FieldSet{Fields: make(map[string]Field, len(parsed.Fields))}
	for name, fv := range parsed.Fields {
		if strings.TrimSpace(fv.Value) == "" {
			continue
		}
		out.Fields[name] = Field{Value: fv.Value, Confidence: clamp01(fv.Confidence)}
	}
	for _, it := range parsed.WorkItems {
		if strings.TrimSpace(it.Description) == "" || it.Amount <= 0 {
			continue
		}
		out.Items = append(out.Items, Item{
			Description: strings.TrimSpace(it.Description),
			AmountPence: int64(math.Round(it.Amount * 100)),
			Confidence:  clamp01(it.Confidence),
		})
	}
	return out, nil
}

// stripFences removes a markdown code fence the model may wrap the
// JSON in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
