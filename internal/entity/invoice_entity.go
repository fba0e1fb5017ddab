package entity

// Invoice is the fully collected document handed to the renderer.
// Monetary values are in pence; rates are whole-number percentages.
type Invoice struct {
	ContractorName    string
	ContractorAddress string
	ContractorUTR     string
	CardholderName    string

	InvoiceNumber  string
	InvoiceDate    string
	WorkStartDate  string
	WorkEndDate    string
	OperativeNames string

	Items []WorkItem

	VatRate float64
	CisRate float64

	SubtotalPence int64
	VatPence      int64
	CisPence      int64
	TotalPence    int64
}
