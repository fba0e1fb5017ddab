package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/pkg/fallback"
	"invoice-collector-be/pkg/llm"
	"invoice-collector-be/pkg/resilience"
)

// Result is the pipeline output: raw text plus gated field
// candidates, tagged with which strategy produced the fields and the
// degradation level the session should adopt.
type Result struct {
	RawText     string
	Fields      map[string]Field
	Items       []Item
	Strategy    string
	Degradation entity.DegradationLevel
}

// Pipeline turns uploaded bytes into field candidates in two staged
// fallback chains: text extraction per document type, then field
// extraction (AI first, regex rules last).
type Pipeline struct {
	pdfChain   *fallback.Chain[[]byte, string]
	imageChain *fallback.Chain[[]byte, string]
	fieldChain *fallback.Chain[string, FieldSet]
}

// NewPipeline wires exactly one breaker per external dependency out
// of the shared registry; a secondary AI provider is optional.
func NewPipeline(docs *DocServiceClient, primary, secondary llm.LLMProvider, reg *resilience.BreakerRegistry) *Pipeline {
	ocrStrategy := fallback.Strategy[[]byte, string]{
		Name:    "ocr-service",
		Tier:    fallback.TierSecondary,
		Policy:  resilience.OCRPolicy(),
		Breaker: reg.GetOrCreate("ocr-service", resilience.OCRBreaker()),
		Call:    docs.Ocr,
	}

	p := &Pipeline{
		pdfChain: fallback.NewChain("pdf-text",
			fallback.Strategy[[]byte, string]{
				Name:    "pdf-text-service",
				Tier:    fallback.TierPrimary,
				Policy:  resilience.OCRPolicy(),
				Breaker: reg.GetOrCreate("pdf-text-service", resilience.OCRBreaker()),
				Call:    docs.PdfText,
			},
			ocrStrategy,
		),
		imageChain: fallback.NewChain("image-text",
			func() fallback.Strategy[[]byte, string] {
				s := ocrStrategy
				s.Tier = fallback.TierPrimary
				return s
			}(),
		),
	}

	ai := NewAIFieldExtractor("primary-ai", primary)
	strategies := []fallback.Strategy[string, FieldSet]{{
		Name:    "primary-ai",
		Tier:    fallback.TierPrimary,
		Policy:  resilience.AIModelPolicy(),
		Breaker: reg.GetOrCreate("primary-ai", resilience.AIModelBreaker()),
		Call:    ai.Extract,
	}}
	if secondary != nil {
		backup := NewAIFieldExtractor("backup-ai", secondary)
		strategies = append(strategies, fallback.Strategy[string, FieldSet]{
			Name:    "backup-ai",
			Tier:    fallback.TierSecondary,
			Policy:  resilience.AIModelPolicy(),
			Breaker: reg.GetOrCreate("backup-ai", resilience.AIModelBreaker()),
			Call:    backup.Extract,
		})
	}
	rules := NewRuleExtractor()
	strategies = append(strategies, fallback.Strategy[string, FieldSet]{
		Name:   "rule-based",
		Tier:   fallback.TierRuleBased,
		Policy: resilience.Policy{MaxAttempts: 1},
		Call:   rules.Extract,
	})
	p.fieldChain = fallback.NewChain("field-extraction", strategies...)

	return p
}

// Process runs detection, text extraction and field extraction. An
// unsupported or unreadable document fails outright; exhaustion of
// the field chain cannot happen while the rule tier exists, but is
// still handled as a typed error rather than trusted away.
func (p *Pipeline) Process(ctx context.Context, data []byte) (*Result, error) {
	docType, err := DetectType(data)
	if err != nil {
		return nil, err
	}

	rawText, err := p.extractText(ctx, docType, data)
	if err != nil {
		return nil, err
	}
	if len(rawText) == 0 {
		return nil, resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0,
			errors.New("document contains no extractable text"))
	}

	fields, err := p.fieldChain.Generate(ctx, rawText)
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] Extraction served by %s (%s tier), %d fields, %d items",
		fields.Strategy, fields.Tier, len(fields.Value.Fields), len(fields.Value.Items))
	return &Result{
		RawText:     rawText,
		Fields:      fields.Value.Fields,
		Items:       fields.Value.Items,
		Strategy:    fields.Strategy,
		Degradation: degradationForTier(fields.Tier),
	}, nil
}

func (p *Pipeline) extractText(ctx context.Context, docType string, data []byte) (string, error) {
	switch docType {
	case TypePDF:
		res, err := p.pdfChain.Generate(ctx, data)
		if err != nil {
			return "", err
		}
		return res.Value, nil
	case TypeImage:
		res, err := p.imageChain.Generate(ctx, data)
		if err != nil {
			return "", err
		}
		return res.Value, nil
	case TypeDocx:
		return ParseDocx(data)
	}
	return "", fmt.Errorf("unhandled document type %q", docType)
}

func degradationForTier(tier fallback.Tier) entity.DegradationLevel {
	switch tier {
	case fallback.TierPrimary:
		return entity.DegradationFull
	case fallback.TierSecondary, fallback.TierTertiary:
		return entity.DegradationReduced
	case fallback.TierRuleBased:
		return entity.DegradationMinimal
	}
	return entity.DegradationManual
}
