package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"invoice-collector-be/internal/entity"
)

// Monetary arithmetic runs in integer pence. Percent rates apply with
// round-half-away at the penny, and reconciliation against a
// user-supplied total tolerates a single penny of drift.
const ReconcileTolerancePence = 1

// Totals are the computed financial figures of an invoice.
type Totals struct {
	SubtotalPence int64
	VatPence      int64
	CisPence      int64
	TotalPence    int64
}

// ComputeTotals derives the financial figures from the work items:
// vat = subtotal * vatRate/100, cis = subtotal * cisRate/100,
// total = subtotal + vat - cis.
func ComputeTotals(items []entity.WorkItem, vatRate, cisRate float64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.AmountPence
	}
	vat := roundRate(subtotal, vatRate)
	cis := roundRate(subtotal, cisRate)
	return Totals{
		SubtotalPence: subtotal,
		VatPence:      vat,
		CisPence:      cis,
		TotalPence:    subtotal + vat - cis,
	}
}

// Reconcile reports whether a user-supplied total agrees with the
// computed one within the penny tolerance.
func Reconcile(computed Totals, suppliedPence int64) bool {
	diff := computed.TotalPence - suppliedPence
	if diff < 0 {
		diff = -diff
	}
	return diff <= ReconcileTolerancePence
}

func roundRate(pence int64, ratePct float64) int64 {
	return int64(math.Round(float64(pence) * ratePct / 100))
}

func parseRate(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}

// ParsePence parses a money string ("450", "£1,234.50") into pence.
func ParsePence(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "£")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, fmt.Errorf("please enter an amount, e.g. 450.00")
	}
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("I couldn't read %q as an amount", strings.TrimSpace(s))
	}
	if value < 0 {
		return 0, fmt.Errorf("amounts cannot be negative")
	}
	return int64(math.Round(value * 100)), nil
}

// FormatPence renders pence as a 2dp decimal string.
func FormatPence(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// BuildInvoice assembles the renderable invoice from a session whose
// collection pass is complete.
func BuildInvoice(s *entity.Session) (*entity.Invoice, error) {
	if len(s.WorkItems) == 0 {
		return nil, fmt.Errorf("invoice has no work items")
	}
	vatRate, err := strconv.ParseFloat(s.FieldValue(FieldVatRate), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid vat rate: %w", err)
	}
	cisRate, err := strconv.ParseFloat(s.FieldValue(FieldCisRate), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cis rate: %w", err)
	}

	totals := ComputeTotals(s.WorkItems, vatRate, cisRate)
	return &entity.Invoice{
		ContractorName:    s.FieldValue(FieldContractorName),
		ContractorAddress: s.FieldValue(FieldContractorAddress),
		ContractorUTR:     s.FieldValue(FieldContractorUTR),
		CardholderName:    s.FieldValue(FieldCardholderName),
		InvoiceNumber:     s.FieldValue(FieldInvoiceNumber),
		InvoiceDate:       s.FieldValue(FieldInvoiceDate),
		WorkStartDate:     s.FieldValue(FieldWorkStartDate),
		WorkEndDate:       s.FieldValue(FieldWorkEndDate),
		OperativeNames:    s.FieldValue(FieldOperativeNames),
		Items:             s.WorkItems,
		VatRate:           vatRate,
		CisRate:           cisRate,
		SubtotalPence:     totals.SubtotalPence,
		VatPence:          totals.VatPence,
		CisPence:          totals.CisPence,
		TotalPence:        totals.TotalPence,
	}, nil
}
