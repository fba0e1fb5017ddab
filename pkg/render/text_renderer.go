package render

import (
	"fmt"
	"strings"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/pkg/workflow"
)

// TextRenderer is the static fallback format: a plain-text invoice
// that cannot fail to render. It sits on the last tier of the output
// chain so the user always receives something usable.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) Name() string { return "text" }

func (r *TextRenderer) Render(inv *entity.Invoice) (*Document, error) {
	var b strings.Builder
	line := strings.Repeat("=", 48)

	b.WriteString(line + "\nINVOICE " + inv.InvoiceNumber + "\n" + line + "\n\n")
	b.WriteString(inv.ContractorName + "\n")
	b.WriteString(inv.ContractorAddress + "\n")
	if inv.ContractorUTR != "" {
		b.WriteString("UTR: " + inv.ContractorUTR + "\n")
	}
	b.WriteString("\nDate: " + inv.InvoiceDate + "\n")
	b.WriteString("Work period: " + inv.WorkStartDate + " to " + inv.WorkEndDate + "\n")
	if inv.OperativeNames != "" {
		b.WriteString("Operatives: " + inv.OperativeNames + "\n")
	}

	b.WriteString("\n")
	for _, it := range inv.Items {
		b.WriteString(fmt.Sprintf("  %-34s £%10s\n", it.Description, workflow.FormatPence(it.AmountPence)))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %-34s £%10s\n", "Subtotal", workflow.FormatPence(inv.SubtotalPence)))
	b.WriteString(fmt.Sprintf("  %-34s £%10s\n", fmt.Sprintf("VAT (%.0f%%)", inv.VatRate), workflow.FormatPence(inv.VatPence)))
	b.WriteString(fmt.Sprintf("  %-34s -£%9s\n", fmt.Sprintf("CIS deduction (%.0f%%)", inv.CisRate), workflow.FormatPence(inv.CisPence)))
	b.WriteString(fmt.Sprintf("  %-34s £%10s\n", "TOTAL DUE", workflow.FormatPence(inv.TotalPence)))
	if inv.CardholderName != "" {
		b.WriteString("\nPayment card holder: " + inv.CardholderName + "\n")
	}

	return &Document{
		Content:  []byte(b.String()),
		MimeType: "text/plain",
		FileName: fmt.Sprintf("invoice-%s.txt", inv.InvoiceNumber),
	}, nil
}
