package workflow

import (
	"strings"
	"testing"

	"invoice-collector-be/internal/entity"
)

func startSession(t *testing.T, m *Machine) *entity.Session {
	t.Helper()
	s := entity.NewSession("u1", "c1")
	out, err := m.Apply(s, CommandEvent{Name: "start"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.CurrentState != StateSelectMode {
		t.Fatalf("state after /start = %s, want SELECT_MODE", s.CurrentState)
	}
	if len(out.Replies) == 0 {
		t.Fatal("no welcome reply after /start")
	}
	return s
}

func say(t *testing.T, m *Machine, s *entity.Session, text string) Outcome {
	t.Helper()
	out, err := m.Apply(s, TextEvent{Text: text})
	if err != nil {
		t.Fatalf("text %q failed: %v", text, err)
	}
	return out
}

func command(t *testing.T, m *Machine, s *entity.Session, name string) Outcome {
	t.Helper()
	out, err := m.Apply(s, CommandEvent{Name: name})
	if err != nil {
		t.Fatalf("command /%s failed: %v", name, err)
	}
	return out
}

// walkToReview drives a chat-mode session through the whole collection
// pass and leaves it at REVIEW_AND_CONFIRM.
func walkToReview(t *testing.T, m *Machine, s *entity.Session) {
	t.Helper()
	command(t, m, s, "chat")

	say(t, m, s, "ACME Electrical Ltd")
	say(t, m, s, "1 High Street, Leeds")
	say(t, m, s, "1234567890")
	say(t, m, s, "J Smith")
	say(t, m, s, "INV-042")
	say(t, m, s, "25/03/2025")
	say(t, m, s, "01/03/2025")
	say(t, m, s, "20/03/2025")
	say(t, m, s, "A Jones, B Khan")

	if s.CurrentField != FieldWorkItems {
		t.Fatalf("CurrentField = %s, want work_items", s.CurrentField)
	}
	say(t, m, s, "Rewire kitchen - 450.00")
	command(t, m, s, "done")

	say(t, m, s, "20")
	say(t, m, s, "20")
	// subtotal 450.00, vat and cis cancel: total 450.00
	say(t, m, s, "450.00")

	if s.CurrentState != StateReviewAndConfirm {
		t.Fatalf("state after collection = %s, want REVIEW_AND_CONFIRM", s.CurrentState)
	}
}

func TestChatWalkToComplete(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	walkToReview(t, m, s)

	out := say(t, m, s, "confirm")
	if s.CurrentState != StateGeneratingOutput {
		t.Fatalf("state after confirm = %s, want GENERATING_OUTPUT", s.CurrentState)
	}
	if out.Action != ActionGenerate {
		t.Fatalf("Action = %d, want ActionGenerate", out.Action)
	}

	if _, err := m.Apply(s, RenderedEvent{}); err != nil {
		t.Fatalf("rendered event failed: %v", err)
	}
	if s.CurrentState != StateComplete {
		t.Errorf("state after render = %s, want COMPLETE", s.CurrentState)
	}
	if !Terminal(s.CurrentState) {
		t.Error("COMPLETE should be terminal")
	}

	// Values typed in chat mode carry user_provided provenance.
	if got := s.Collected[FieldContractorName].Provenance; got != entity.ProvenanceUserProvided {
		t.Errorf("provenance = %s, want user_provided", got)
	}
}

func TestValidationRejectsAndReasks(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")

	say(t, m, s, "ACME Electrical Ltd")
	say(t, m, s, "1 High Street")
	say(t, m, s, "skip") // utr is optional
	say(t, m, s, "J Smith")
	say(t, m, s, "INV-042")

	out := say(t, m, s, "not a date")
	if s.CurrentField != FieldInvoiceDate {
		t.Fatalf("CurrentField = %s, want invoice_date to be re-asked", s.CurrentField)
	}
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "try again") {
		t.Errorf("rejection reply = %v, want a retry prompt", out.Replies)
	}

	say(t, m, s, "25/03/2025")
	if _, ok := s.Collected[FieldInvoiceDate]; !ok {
		t.Error("invoice_date should be collected after a valid retry")
	}
	if s.FieldValue(FieldContractorUTR) != "" {
		t.Errorf("skipped utr = %q, want empty", s.FieldValue(FieldContractorUTR))
	}
}

func TestReconciliationMismatchOffersItemsReentry(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")

	say(t, m, s, "ACME Electrical Ltd")
	say(t, m, s, "1 High Street")
	say(t, m, s, "1234567890")
	say(t, m, s, "J Smith")
	say(t, m, s, "INV-042")
	say(t, m, s, "25/03/2025")
	say(t, m, s, "01/03/2025")
	say(t, m, s, "20/03/2025")
	say(t, m, s, "A Jones")
	say(t, m, s, "Rewire kitchen - 450.00")
	command(t, m, s, "done")
	say(t, m, s, "20")
	say(t, m, s, "20")

	out := say(t, m, s, "999.00")
	if s.CurrentState != StateCollectingFields {
		t.Fatalf("state = %s, want COLLECTING_FIELDS after mismatch", s.CurrentState)
	}
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "don't quite add up") {
		t.Fatalf("mismatch reply = %v, want computed breakdown", out.Replies)
	}
	// The breakdown shows the computed total so the user can check.
	if !strings.Contains(out.Replies[0], "450.00") {
		t.Errorf("mismatch reply should include the computed total: %v", out.Replies)
	}

	// Re-entering the items starts that list from scratch.
	out = command(t, m, s, "items")
	if len(s.WorkItems) != 0 {
		t.Errorf("WorkItems = %d after /items, want 0", len(s.WorkItems))
	}
	if s.CurrentField != FieldWorkItems {
		t.Errorf("CurrentField = %s, want work_items", s.CurrentField)
	}
	if len(out.Replies) == 0 {
		t.Error("no prompt after /items")
	}

	say(t, m, s, "Rewire kitchen - 500.00")
	say(t, m, s, "Fit extractor fan - 499.00")
	command(t, m, s, "done")
	say(t, m, s, "999.00")
	if s.CurrentState != StateReviewAndConfirm {
		t.Errorf("state = %s, want REVIEW_AND_CONFIRM once the total reconciles", s.CurrentState)
	}
}

func TestTotalDueSkipAccepted(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")

	say(t, m, s, "ACME Electrical Ltd")
	say(t, m, s, "1 High Street")
	say(t, m, s, "skip")
	say(t, m, s, "J Smith")
	say(t, m, s, "INV-042")
	say(t, m, s, "25/03/2025")
	say(t, m, s, "01/03/2025")
	say(t, m, s, "20/03/2025")
	say(t, m, s, "skip")
	say(t, m, s, "Rewire kitchen - 450.00")
	command(t, m, s, "done")
	say(t, m, s, "20")
	say(t, m, s, "0")
	say(t, m, s, "skip")

	if s.CurrentState != StateReviewAndConfirm {
		t.Errorf("state = %s, want REVIEW_AND_CONFIRM when total is skipped", s.CurrentState)
	}
}

func TestExtractionConfidenceGates(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	out, err := m.Apply(s, DocumentEvent{FileId: "f1", FileName: "invoice.pdf", MimeType: "application/pdf", Size: 1024})
	if err != nil {
		t.Fatalf("document event failed: %v", err)
	}
	if out.Action != ActionExtract {
		t.Fatalf("Action = %d, want ActionExtract", out.Action)
	}
	if s.CurrentState != StateUploadDocument || s.Mode != entity.ModeUpload {
		t.Fatalf("state/mode = %s/%s, want UPLOAD_DOCUMENT/UPLOAD", s.CurrentState, s.Mode)
	}

	_, err = m.Apply(s, ExtractionEvent{
		Fields: map[string]ExtractedField{
			FieldContractorName: {Value: "ACME Electrical Ltd", Confidence: 0.95},
			FieldInvoiceNumber:  {Value: "INV-042", Confidence: 0.70},
			FieldCardholderName: {Value: "garbled", Confidence: 0.30},
		},
		Items:       []ExtractedItem{{Description: "Rewire kitchen", AmountPence: 45000, Confidence: 0.9}},
		Strategy:    "primary-ai",
		Degradation: entity.DegradationFull,
	})
	if err != nil {
		t.Fatalf("extraction event failed: %v", err)
	}

	// >= 0.85 collected outright with ai provenance
	cf, ok := s.Collected[FieldContractorName]
	if !ok || cf.Value != "ACME Electrical Ltd" || cf.Provenance != entity.ProvenanceAIExtracted {
		t.Errorf("high-confidence field = %+v, want auto-collected ai_extracted", cf)
	}

	// 0.6..0.85 parked as a candidate awaiting yes/no
	if _, collected := s.Collected[FieldInvoiceNumber]; collected {
		t.Error("mid-confidence field must not be auto-collected")
	}

	// < 0.6 discarded: asked from scratch
	if _, isCand := s.Candidates[FieldCardholderName]; isCand {
		t.Error("low-confidence field must not become a candidate")
	}

	if len(s.WorkItems) != 1 {
		t.Errorf("WorkItems = %d, want 1 accepted item", len(s.WorkItems))
	}
	if s.CurrentState != StateCollectingFields {
		t.Errorf("state = %s, want COLLECTING_FIELDS", s.CurrentState)
	}
}

func TestExtractionQueuesWorkItemsInFieldOrder(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	m.Apply(s, DocumentEvent{FileId: "f1", FileName: "invoice.pdf", MimeType: "application/pdf", Size: 1024})

	// Nothing extracted: every field is asked manually, in the same
	// order a manual-entry session would ask them.
	if _, err := m.Apply(s, ExtractionEvent{Strategy: "primary-ai"}); err != nil {
		t.Fatalf("extraction event failed: %v", err)
	}

	idx := make(map[string]int, len(s.Pending))
	for i, name := range s.Pending {
		idx[name] = i
	}
	items, ok := idx[FieldWorkItems]
	if !ok {
		t.Fatal("work items missing from the pending queue")
	}
	for _, after := range []string{FieldVatRate, FieldCisRate, FieldTotalDue} {
		pos, ok := idx[after]
		if !ok {
			t.Fatalf("%s missing from the pending queue", after)
		}
		if items > pos {
			t.Errorf("work items queued at %d, after %s at %d", items, after, pos)
		}
	}
}

func TestConfirmYesAcceptsCandidate(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	s.CurrentState = StateCollectingFields
	s.Mode = entity.ModeUpload
	s.ConfirmField = FieldInvoiceNumber
	s.ConfirmValue = "INV-042"
	s.ConfirmConfidence = 0.7
	s.Pending = []string{FieldInvoiceNumber, FieldVatRate}

	say(t, m, s, "yes")

	cf, ok := s.Collected[FieldInvoiceNumber]
	if !ok {
		t.Fatal("confirmed candidate should be collected")
	}
	if cf.Provenance != entity.ProvenanceAIExtracted || cf.Confidence != 0.7 {
		t.Errorf("collected = %+v, want ai_extracted at 0.7", cf)
	}
	if s.ConfirmField != "" {
		t.Error("confirm slot should be cleared")
	}
	if s.CurrentField != FieldVatRate {
		t.Errorf("CurrentField = %s, want the next pending field", s.CurrentField)
	}
}

func TestConfirmNoReasksField(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	s.CurrentState = StateCollectingFields
	s.Mode = entity.ModeUpload
	s.ConfirmField = FieldInvoiceNumber
	s.ConfirmValue = "INV-042"
	s.ConfirmConfidence = 0.7
	s.Pending = []string{FieldInvoiceNumber}

	out := say(t, m, s, "no")

	if _, collected := s.Collected[FieldInvoiceNumber]; collected {
		t.Error("rejected candidate must not be collected")
	}
	if s.CurrentField != FieldInvoiceNumber {
		t.Errorf("CurrentField = %s, want the field re-asked manually", s.CurrentField)
	}
	if len(out.Replies) == 0 {
		t.Fatal("no reply after rejection")
	}

	// A typed replacement lands with manual_entry provenance.
	say(t, m, s, "INV-043")
	cf := s.Collected[FieldInvoiceNumber]
	if cf.Value != "INV-043" || cf.Provenance != entity.ProvenanceManualEntry {
		t.Errorf("collected = %+v, want manual_entry INV-043", cf)
	}
}

func TestConfirmAmbiguousAnswerReprompts(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	s.CurrentState = StateCollectingFields
	s.ConfirmField = FieldInvoiceNumber
	s.ConfirmValue = "INV-042"
	s.Pending = []string{FieldInvoiceNumber}

	out := say(t, m, s, "maybe")
	if s.ConfirmField != FieldInvoiceNumber {
		t.Error("confirm slot should survive an ambiguous answer")
	}
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "yes or no") {
		t.Errorf("reply = %v, want a yes/no reprompt", out.Replies)
	}
}

func TestExtractionFailureFallsBackToManual(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	m.Apply(s, DocumentEvent{FileId: "f1", FileName: "invoice.pdf", Size: 1024})

	out, err := m.Apply(s, ExtractionFailedEvent{Reason: "all strategies exhausted"})
	if err != nil {
		t.Fatalf("extraction failed event errored: %v", err)
	}
	if s.CurrentState != StateCollectingFields {
		t.Errorf("state = %s, want COLLECTING_FIELDS", s.CurrentState)
	}
	if s.Degradation != entity.DegradationManual {
		t.Errorf("Degradation = %s, want manual", s.Degradation)
	}
	if len(s.ProcessingErrors) != 1 {
		t.Errorf("ProcessingErrors = %d, want 1", len(s.ProcessingErrors))
	}
	if len(out.Replies) < 2 {
		t.Errorf("replies = %v, want fallback notice plus first prompt", out.Replies)
	}
}

func TestDocumentTooLargeRejected(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)

	out, err := m.Apply(s, DocumentEvent{FileId: "f1", FileName: "huge.pdf", Size: MaxDocumentSize + 1})
	if err != nil {
		t.Fatalf("document event errored: %v", err)
	}
	if out.Action != ActionNone {
		t.Error("oversized document must not trigger extraction")
	}
}

func TestEditFromReview(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	walkToReview(t, m, s)

	out := say(t, m, s, "edit invoice number")
	if s.CurrentState != StateCollectingFields {
		t.Fatalf("state = %s, want COLLECTING_FIELDS", s.CurrentState)
	}
	if s.CurrentField != FieldInvoiceNumber {
		t.Fatalf("CurrentField = %s, want invoice_number", s.CurrentField)
	}
	if len(out.Replies) == 0 {
		t.Fatal("no prompt for the edited field")
	}

	say(t, m, s, "INV-043")
	if s.CurrentState != StateReviewAndConfirm {
		t.Fatalf("state = %s, want straight back to REVIEW_AND_CONFIRM", s.CurrentState)
	}
	if s.FieldValue(FieldInvoiceNumber) != "INV-043" {
		t.Errorf("invoice_number = %q, want INV-043", s.FieldValue(FieldInvoiceNumber))
	}
	if s.EditingField != "" {
		t.Error("EditingField should clear once the edit lands")
	}
}

func TestEditUnknownFieldFromReview(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	walkToReview(t, m, s)

	out := say(t, m, s, "edit favourite colour")
	if s.CurrentState != StateReviewAndConfirm {
		t.Errorf("state = %s, unknown field must not leave review", s.CurrentState)
	}
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "favourite_colour") {
		t.Errorf("reply = %v, want the unknown field named", out.Replies)
	}
}

func TestCancelDropsCollectionState(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")
	say(t, m, s, "ACME Electrical Ltd")

	command(t, m, s, "cancel")
	if s.CurrentState != StateCancelled {
		t.Fatalf("state = %s, want CANCELLED", s.CurrentState)
	}
	if len(s.Pending) != 0 {
		t.Error("pending list should be dropped on cancel")
	}

	// A stale background result against a cancelled session is a no-op.
	out, err := m.Apply(s, RenderedEvent{})
	if err != nil {
		t.Fatalf("rendered event errored: %v", err)
	}
	if s.CurrentState != StateCancelled || len(out.Replies) != 0 {
		t.Error("events after cancel must not resurrect the session")
	}
}

func TestStatusReportsProgress(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")
	say(t, m, s, "ACME Electrical Ltd")

	out := command(t, m, s, "status")
	if len(out.Replies) != 1 || !strings.Contains(out.Replies[0], "1 of 13") {
		t.Errorf("status reply = %v, want collection progress", out.Replies)
	}
}

func TestRestartResetsEverything(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	walkToReview(t, m, s)

	command(t, m, s, "start")
	if s.CurrentState != StateSelectMode {
		t.Errorf("state = %s, want SELECT_MODE", s.CurrentState)
	}
	if len(s.Collected) != 0 || len(s.WorkItems) != 0 || len(s.Pending) != 0 {
		t.Error("restart should drop all collected state")
	}
	if s.Degradation != entity.DegradationFull {
		t.Errorf("Degradation = %s, want full after restart", s.Degradation)
	}
}

func TestWorkItemParsing(t *testing.T) {
	m := NewMachine()
	s := startSession(t, m)
	command(t, m, s, "chat")
	for _, v := range []string{"ACME", "1 High St", "skip", "J Smith", "INV-1", "25/03/2025", "01/03/2025", "20/03/2025", "skip"} {
		say(t, m, s, v)
	}

	out := say(t, m, s, "no amount here")
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "description - amount") {
		t.Errorf("reply = %v, want the format hint", out.Replies)
	}

	out = command(t, m, s, "done")
	if len(out.Replies) == 0 || !strings.Contains(out.Replies[0], "at least one work item") {
		t.Errorf("reply = %v, /done with no items should be refused", out.Replies)
	}

	say(t, m, s, "First fix wiring - £1,200.50")
	if len(s.WorkItems) != 1 || s.WorkItems[0].AmountPence != 120050 {
		t.Errorf("WorkItems = %+v, want one item at 120050 pence", s.WorkItems)
	}
}
