package extract

import (
	"context"
	"errors"
	"testing"

	"invoice-collector-be/pkg/llm"
	"invoice-collector-be/pkg/resilience"
)

type fakeProvider struct {
	reply string
	err   error
}

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.reply, p.err
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.reply, p.err
}

const wellFormedReply = `{
  "fields": {
    "contractor_name": {"value": "ACME Electrical Ltd", "confidence": 0.95},
    "invoice_number": {"value": "INV-042", "confidence": 0.7},
    "cardholder_name": {"value": "", "confidence": 0.9}
  },
  "work_items": [
    {"description": "Rewire kitchen", "amount": 450.00, "confidence": 0.9},
    {"description": "", "amount": 100.00, "confidence": 0.9},
    {"description": "Free survey", "amount": 0, "confidence": 0.9}
  ]
}`

func TestAIExtractorParsesReply(t *testing.T) {
	ex := NewAIFieldExtractor("primary-ai", &fakeProvider{reply: wellFormedReply})

	fs, err := ex.Extract(context.Background(), "raw invoice text")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if got := fs.Fields["contractor_name"]; got.Value != "ACME Electrical Ltd" || got.Confidence != 0.95 {
		t.Errorf("contractor_name = %+v", got)
	}
	if _, ok := fs.Fields["cardholder_name"]; ok {
		t.Error("empty values should be dropped")
	}
	if len(fs.Items) != 1 {
		t.Fatalf("Items = %d, want 1: blank descriptions and zero amounts are dropped", len(fs.Items))
	}
	if fs.Items[0].AmountPence != 45000 {
		t.Errorf("AmountPence = %d, want 45000", fs.Items[0].AmountPence)
	}
}

func TestAIExtractorStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + wellFormedReply + "\n```"
	ex := NewAIFieldExtractor("primary-ai", &fakeProvider{reply: fenced})

	fs, err := ex.Extract(context.Background(), "raw invoice text")
	if err != nil {
		t.Fatalf("Extract returned error on fenced reply: %v", err)
	}
	if len(fs.Fields) == 0 {
		t.Error("fenced reply should parse like a bare one")
	}
}

func TestAIExtractorClampsConfidence(t *testing.T) {
	reply := `{"fields": {"vat_rate": {"value": "20", "confidence": 3.5}}, "work_items": []}`
	ex := NewAIFieldExtractor("primary-ai", &fakeProvider{reply: reply})

	fs, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got := fs.Fields["vat_rate"].Confidence; got != 1.0 {
		t.Errorf("Confidence = %.2f, want clamped to 1.0", got)
	}
}

func TestAIExtractorUnparseableReplyIsRetryable(t *testing.T) {
	ex := NewAIFieldExtractor("primary-ai", &fakeProvider{reply: "Sure! Here are the fields you asked for..."})

	_, err := ex.Extract(context.Background(), "text")
	if err == nil {
		t.Fatal("Extract should fail on non-JSON reply")
	}

	var depErr *resilience.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Extract returned %T, want *DependencyError", err)
	}
	if !resilience.Retryable(err) {
		t.Error("a garbled model reply should be retryable, models are not deterministic")
	}
}

func TestAIExtractorPropagatesProviderError(t *testing.T) {
	upstream := resilience.NewDependencyError("primary-ai", resilience.KindRateLimit, 429, errors.New("slow down"))
	ex := NewAIFieldExtractor("primary-ai", &fakeProvider{err: upstream})

	_, err := ex.Extract(context.Background(), "text")
	if !errors.Is(err, upstream) {
		t.Errorf("Extract returned %v, want the provider error unchanged", err)
	}
}
