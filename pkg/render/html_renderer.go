package render

import (
	"bytes"
	"fmt"
	"html/template"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/pkg/workflow"
)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Invoice.InvoiceNumber}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 700px; margin: 0 auto; padding: 24px;">
	<h1 style="border-bottom: 2px solid #333; padding-bottom: 8px;">INVOICE</h1>
	<table style="width: 100%; margin-bottom: 24px;">
		<tr>
			<td style="vertical-align: top;">
				<strong>{{.Invoice.ContractorName}}</strong><br>
				{{.Invoice.ContractorAddress}}<br>
				{{if .Invoice.ContractorUTR}}UTR: {{.Invoice.ContractorUTR}}<br>{{end}}
			</td>
			<td style="vertical-align: top; text-align: right;">
				Invoice #: <strong>{{.Invoice.InvoiceNumber}}</strong><br>
				Date: {{.Invoice.InvoiceDate}}<br>
				Work period: {{.Invoice.WorkStartDate}} to {{.Invoice.WorkEndDate}}
			</td>
		</tr>
	</table>
	{{if .Invoice.OperativeNames}}<p>Operatives: {{.Invoice.OperativeNames}}</p>{{end}}
	<table style="width: 100%; border-collapse: collapse;">
		<tr style="background: #f0f0f0;">
			<th style="text-align: left; padding: 8px; border: 1px solid #ccc;">Description</th>
			<th style="text-align: right; padding: 8px; border: 1px solid #ccc;">Amount</th>
		</tr>
		{{range .Items}}
		<tr>
			<td style="padding: 8px; border: 1px solid #ccc;">{{.Description}}</td>
			<td style="text-align: right; padding: 8px; border: 1px solid #ccc;">&pound;{{.Amount}}</td>
		</tr>
		{{end}}
	</table>
	<table style="width: 40%; margin-left: auto; margin-top: 16px;">
		<tr><td>Subtotal</td><td style="text-align: right;">&pound;{{.Subtotal}}</td></tr>
		<tr><td>VAT ({{printf "%.0f" .Invoice.VatRate}}%)</td><td style="text-align: right;">&pound;{{.Vat}}</td></tr>
		<tr><td>CIS deduction ({{printf "%.0f" .Invoice.CisRate}}%)</td><td style="text-align: right;">-&pound;{{.Cis}}</td></tr>
		<tr style="font-weight: bold; border-top: 2px solid #333;"><td>Total due</td><td style="text-align: right;">&pound;{{.Total}}</td></tr>
	</table>
	{{if .Invoice.CardholderName}}<p style="margin-top: 24px;">Payment card holder: {{.Invoice.CardholderName}}</p>{{end}}
</body>
</html>`

type itemView struct {
	Description string
	Amount      string
}

type invoiceView struct {
	Invoice  *entity.Invoice
	Items    []itemView
	Subtotal string
	Vat      string
	Cis      string
	Total    string
}

// HTMLRenderer is the primary output format.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("invoice").Parse(invoiceTemplate)),
	}
}

func (r *HTMLRenderer) Name() string { return "html" }

func (r *HTMLRenderer) Render(inv *entity.Invoice) (*Document, error) {
	view := invoiceView{
		Invoice:  inv,
		Subtotal: workflow.FormatPence(inv.SubtotalPence),
		Vat:      workflow.FormatPence(inv.VatPence),
		Cis:      workflow.FormatPence(inv.CisPence),
		Total:    workflow.FormatPence(inv.TotalPence),
	}
	for _, it := range inv.Items {
		view.Items = append(view.Items, itemView{
			Description: it.Description,
			Amount:      workflow.FormatPence(it.AmountPence),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html invoice: %w", err)
	}
	return &Document{
		Content:  buf.Bytes(),
		MimeType: "text/html",
		FileName: fmt.Sprintf("invoice-%s.html", inv.InvoiceNumber),
	}, nil
}
