package extract

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RuleExtractor is the last automated tier: plain regex patterns over
// the raw text. It never fails, but everything it finds carries a
// confidence low enough to require user confirmation.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

const ruleConfidence = 0.65

var (
	utrRe     = regexp.MustCompile(`\b(\d{10})\b`)
	dateRe2   = regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})\b`)
	invNoRe   = regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|#)?\s*[:\s]\s*([A-Za-z0-9-]+)`)
	totalRe   = regexp.MustCompile(`(?i)total\s*(?:due)?\s*[:\s]\s*£?\s*([\d,]+\.\d{2})`)
	vatRateRe = regexp.MustCompile(`(?i)vat\s*(?:@|at)?\s*(\d{1,2}(?:\.\d+)?)\s*%`)
	cisRateRe = regexp.MustCompile(`(?i)cis\s*(?:deduction)?\s*(?:@|at)?\s*(\d{1,2}(?:\.\d+)?)\s*%`)
	itemRe    = regexp.MustCompile(`(?m)^(.{4,60}?)\s+£?\s*([\d,]+\.\d{2})\s*$`)
)

// Extract scans the text for field candidates. The signature matches
// the AI extractor's so both slot into the same fallback chain.
func (r *RuleExtractor) Extract(_ context.Context, rawText string) (FieldSet, error) {
	out := FieldSet{Fields: make(map[string]Field)}

	put := func(name string, re *regexp.Regexp) {
		if m := re.FindStringSubmatch(rawText); m != nil {
			out.Fields[name] = Field{Value: strings.TrimSpace(m[1]), Confidence: ruleConfidence}
		}
	}
	put("contractor_utr", utrRe)
	put("invoice_number", invNoRe)
	put("total_due", totalRe)
	put("vat_rate", vatRateRe)
	put("cis_rate", cisRateRe)

	// First two dates in document order: invoice date, then work start.
	if dates := dateRe2.FindAllStringSubmatch(rawText, 2); len(dates) > 0 {
		out.Fields["invoice_date"] = Field{Value: dates[0][1], Confidence: ruleConfidence}
		if len(dates) > 1 {
			out.Fields["work_start_date"] = Field{Value: dates[1][1], Confidence: ruleConfidence}
		}
	}

	for _, m := range itemRe.FindAllStringSubmatch(rawText, 20) {
		desc := strings.TrimSpace(m[1])
		if strings.Contains(strings.ToLower(desc), "total") ||
			strings.Contains(strings.ToLower(desc), "vat") ||
			strings.Contains(strings.ToLower(desc), "cis") {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			continue
		}
		out.Items = append(out.Items, Item{
			Description: desc,
			AmountPence: int64(math.Round(amount * 100)),
			Confidence:  ruleConfidence,
		})
	}
	return out, nil
}
