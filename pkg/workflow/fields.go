package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Field names, in the workflow-defined collection order:
// contractor info, then invoice metadata, then work items, then
// financial figures.
const (
	FieldContractorName    = "contractor_name"
	FieldContractorAddress = "contractor_address"
	FieldContractorUTR     = "contractor_utr"
	FieldCardholderName    = "cardholder_name"
	FieldInvoiceNumber     = "invoice_number"
	FieldInvoiceDate       = "invoice_date"
	FieldWorkStartDate     = "work_start_date"
	FieldWorkEndDate       = "work_end_date"
	FieldOperativeNames    = "operative_names"
	FieldWorkItems         = "work_items"
	FieldVatRate           = "vat_rate"
	FieldCisRate           = "cis_rate"
	FieldTotalDue          = "total_due"
)

// FieldSpec describes one collectable field.
type FieldSpec struct {
	Name   string
	Prompt string
	// Validate rejects unusable input with a user-correctable reason.
	Validate func(value string) error
}

var dateRe = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}$`)

func validateNonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("value cannot be empty")
	}
	return nil
}

func validateDate(v string) error {
	if !dateRe.MatchString(strings.TrimSpace(v)) {
		return fmt.Errorf("please use a date like 25/03/2025")
	}
	return nil
}

func validateRate(v string) error {
	rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("please enter a number, e.g. 20")
	}
	if rate < 0 || rate > 100 {
		return fmt.Errorf("rate must be between 0 and 100")
	}
	return nil
}

// FieldOrder returns the specs in collection order. work_items and
// total_due have bespoke handling in the machine; their specs carry
// only prompts.
func FieldOrder() []FieldSpec {
	return []FieldSpec{
		{Name: FieldContractorName, Prompt: "What's the contractor's full name?", Validate: validateNonEmpty},
		{Name: FieldContractorAddress, Prompt: "What's the contractor's address?", Validate: validateNonEmpty},
		{Name: FieldContractorUTR, Prompt: "What's the contractor's UTR number? (or type 'skip')", Validate: nil},
		{Name: FieldCardholderName, Prompt: "Whose name is on the payment card?", Validate: validateNonEmpty},
		{Name: FieldInvoiceNumber, Prompt: "What's the invoice number?", Validate: validateNonEmpty},
		{Name: FieldInvoiceDate, Prompt: "What's the invoice date? (e.g. 25/03/2025)", Validate: validateDate},
		{Name: FieldWorkStartDate, Prompt: "When did the work start? (e.g. 01/03/2025)", Validate: validateDate},
		{Name: FieldWorkEndDate, Prompt: "When did the work finish? (e.g. 20/03/2025)", Validate: validateDate},
		{Name: FieldOperativeNames, Prompt: "Who carried out the work? (names, or 'skip')", Validate: nil},
		{Name: FieldWorkItems, Prompt: "List the first work item as 'description - amount', e.g. 'Plastering hallway - 450.00'. Send /done when finished."},
		{Name: FieldVatRate, Prompt: "What VAT rate applies? (%, usually 20)", Validate: validateRate},
		{Name: FieldCisRate, Prompt: "What CIS deduction rate applies? (%, usually 20)", Validate: validateRate},
		{Name: FieldTotalDue, Prompt: "To double-check my maths: what total does the invoice show? (or 'skip')"},
	}
}

// parseWorkItem parses "description - amount" into its parts.
func parseWorkItem(input string) (string, int64, error) {
	idx := strings.LastIndex(input, "-")
	if idx <= 0 {
		return "", 0, fmt.Errorf("please use 'description - amount'")
	}
	desc := strings.TrimSpace(input[:idx])
	amount, err := ParsePence(input[idx+1:])
	if err != nil {
		return "", 0, err
	}
	if desc == "" {
		return "", 0, fmt.Errorf("the description is missing")
	}
	return desc, amount, nil
}
