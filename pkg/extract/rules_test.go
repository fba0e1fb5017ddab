package extract

import (
	"context"
	"testing"
)

const sampleInvoiceText = `ACME Electrical Ltd
Invoice Number: INV-042
Date: 25/03/2025
Work started 01/03/2025

Rewire kitchen   £450.00
Fit extractor fan   £120.50

Subtotal: £570.50
VAT @ 20%: £114.10
CIS deduction at 20%: £114.10
Total due: £570.50

UTR: 1234567890
`

func TestRuleExtractorFindsFields(t *testing.T) {
	fs, err := NewRuleExtractor().Extract(context.Background(), sampleInvoiceText)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	wantFields := map[string]string{
		"contractor_utr":  "1234567890",
		"invoice_number":  "INV-042",
		"invoice_date":    "25/03/2025",
		"work_start_date": "01/03/2025",
		"vat_rate":        "20",
		"cis_rate":        "20",
		"total_due":       "570.50",
	}
	for name, want := range wantFields {
		got, ok := fs.Fields[name]
		if !ok {
			t.Errorf("field %s not found", name)
			continue
		}
		if got.Value != want {
			t.Errorf("field %s = %q, want %q", name, got.Value, want)
		}
		if got.Confidence >= 0.85 {
			t.Errorf("field %s confidence = %.2f, rule hits must stay below the auto-accept gate", name, got.Confidence)
		}
	}
}

func TestRuleExtractorFindsItems(t *testing.T) {
	fs, err := NewRuleExtractor().Extract(context.Background(), sampleInvoiceText)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if len(fs.Items) != 2 {
		t.Fatalf("Items = %d, want 2 (totals lines must be filtered out)", len(fs.Items))
	}
	if fs.Items[0].Description != "Rewire kitchen" || fs.Items[0].AmountPence != 45000 {
		t.Errorf("item 0 = %+v, want Rewire kitchen at 45000", fs.Items[0])
	}
	if fs.Items[1].AmountPence != 12050 {
		t.Errorf("item 1 amount = %d, want 12050", fs.Items[1].AmountPence)
	}
}

func TestRuleExtractorNeverFails(t *testing.T) {
	fs, err := NewRuleExtractor().Extract(context.Background(), "nothing useful in here")
	if err != nil {
		t.Fatalf("Extract returned error on empty text: %v", err)
	}
	if len(fs.Fields) != 0 || len(fs.Items) != 0 {
		t.Errorf("Extract found %d fields, %d items in junk text", len(fs.Fields), len(fs.Items))
	}
}

func TestRuleExtractorCommaAmounts(t *testing.T) {
	fs, err := NewRuleExtractor().Extract(context.Background(), "Full house rewire   £12,500.00\n")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(fs.Items) != 1 || fs.Items[0].AmountPence != 1250000 {
		t.Fatalf("Items = %+v, want one item at 1250000 pence", fs.Items)
	}
}
