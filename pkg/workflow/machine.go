package workflow

import (
	"fmt"
	"strings"

	"invoice-collector-be/internal/constant"
	"invoice-collector-be/internal/entity"
)

// Conversation states. A session in COLLECTING_FIELDS is additionally
// parameterized by Session.CurrentField.
const (
	StateSelectMode       = "SELECT_MODE"
	StateUploadDocument   = "UPLOAD_DOCUMENT"
	StateCollectingFields = "COLLECTING_FIELDS"
	StateValidatingData   = "VALIDATING_DATA"
	StateReviewAndConfirm = "REVIEW_AND_CONFIRM"
	StateGeneratingOutput = "GENERATING_OUTPUT"
	StateComplete         = "COMPLETE"
	StateFailed           = "FAILED"
	StateCancelled        = "CANCELLED"
)

// Confidence gates applied to extracted field candidates.
const (
	ConfidenceAuto    = 0.85
	ConfidenceConfirm = 0.6
)

// MaxDocumentSize is the largest upload the pipeline accepts.
const MaxDocumentSize = 20 << 20

// Terminal reports whether state accepts no further events.
func Terminal(state string) bool {
	return state == StateComplete || state == StateFailed || state == StateCancelled
}

// Event is one input applied to a session. Text, commands and
// documents arrive from the webhook; extraction and render events are
// fed back by the service once the corresponding action finishes.
type Event interface{ isEvent() }

type TextEvent struct {
	Text string
}

type CommandEvent struct {
	Name string
}

type DocumentEvent struct {
	FileId   string
	FileName string
	MimeType string
	Size     int64
}

// ExtractedField is one candidate value from document extraction.
type ExtractedField struct {
	Value      string
	Confidence float64
}

// ExtractedItem is one candidate work item from document extraction.
type ExtractedItem struct {
	Description string
	AmountPence int64
	Confidence  float64
}

type ExtractionEvent struct {
	Fields      map[string]ExtractedField
	Items       []ExtractedItem
	Strategy    string
	Degradation entity.DegradationLevel
}

// ExtractionFailedEvent arrives when every extraction strategy has
// been exhausted; the session falls back to manual collection.
type ExtractionFailedEvent struct {
	Reason string
}

type RenderedEvent struct{}

// RenderFailedEvent arrives when invoice generation could not finish
// and has been parked for background retry.
type RenderFailedEvent struct{}

func (TextEvent) isEvent()             {}
func (CommandEvent) isEvent()          {}
func (DocumentEvent) isEvent()         {}
func (ExtractionEvent) isEvent()       {}
func (ExtractionFailedEvent) isEvent() {}
func (RenderedEvent) isEvent()         {}
func (RenderFailedEvent) isEvent()     {}

// ActionKind tells the service what side effect to run after the
// session mutation is persisted.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionExtract
	ActionGenerate
)

// Outcome is the result of applying one event: replies to send and an
// optional follow-up action. The session itself is mutated in place
// and must be persisted before replies or actions are executed.
type Outcome struct {
	Replies []string
	Action  ActionKind
}

func reply(msgs ...string) Outcome {
	return Outcome{Replies: msgs}
}

// Machine drives the per-user conversation. It is stateless and safe
// for concurrent use; all mutable state lives on the session.
type Machine struct {
	fields []FieldSpec
}

func NewMachine() *Machine {
	return &Machine{fields: FieldOrder()}
}

// Apply advances the session by one event. It never performs I/O.
func (m *Machine) Apply(s *entity.Session, ev Event) (Outcome, error) {
	s.Touch()

	switch e := ev.(type) {
	case CommandEvent:
		return m.applyCommand(s, e), nil
	case TextEvent:
		return m.applyText(s, strings.TrimSpace(e.Text)), nil
	case DocumentEvent:
		return m.applyDocument(s, e), nil
	case ExtractionEvent:
		return m.applyExtraction(s, e), nil
	case ExtractionFailedEvent:
		return m.applyExtractionFailed(s, e), nil
	case RenderedEvent:
		if s.CurrentState != StateGeneratingOutput {
			return Outcome{}, nil
		}
		s.CurrentState = StateComplete
		return reply(constant.MsgGoodbye), nil
	case RenderFailedEvent:
		if s.CurrentState != StateGeneratingOutput {
			return Outcome{}, nil
		}
		return reply(constant.MsgSavedForRetry), nil
	}
	return Outcome{}, fmt.Errorf("unhandled event type %T", ev)
}

func (m *Machine) applyCommand(s *entity.Session, e CommandEvent) Outcome {
	switch e.Name {
	case "start":
		m.reset(s)
		return reply(constant.MsgWelcome)
	case "help":
		return reply(constant.MsgHelp)
	case "status":
		return reply(m.statusText(s))
	case "cancel":
		if Terminal(s.CurrentState) {
			return reply("Nothing to cancel. Type /start to begin a new invoice.")
		}
		m.cancel(s)
		return reply(constant.MsgCancelled)
	case "upload":
		if s.CurrentState != StateSelectMode {
			return reply(constant.MsgUnknownCommand)
		}
		s.Mode = entity.ModeUpload
		s.CurrentState = StateUploadDocument
		return reply(constant.MsgUploadInstructions)
	case "chat":
		if s.CurrentState != StateSelectMode {
			return reply(constant.MsgUnknownCommand)
		}
		s.Mode = entity.ModeChat
		s.CurrentState = StateCollectingFields
		m.initPending(s)
		out := reply(constant.MsgChatStart)
		out.Replies = append(out.Replies, m.advance(s).Replies...)
		return out
	case "done":
		if s.CurrentState == StateCollectingFields && s.CurrentField == FieldWorkItems {
			return m.finishWorkItems(s)
		}
		return reply(constant.MsgUnknownCommand)
	case "items":
		// Offered after a failed totals reconciliation.
		if s.CurrentState != StateCollectingFields {
			return reply(constant.MsgUnknownCommand)
		}
		s.WorkItems = nil
		s.Reopen(FieldWorkItems)
		s.CurrentField = FieldWorkItems
		return reply(m.promptFor(FieldWorkItems))
	default:
		return reply(constant.MsgUnknownCommand)
	}
}

func (m *Machine) applyText(s *entity.Session, text string) Outcome {
	if text == "" {
		return reply(constant.MsgNotUnderstood)
	}

	switch s.CurrentState {
	case "", StateComplete, StateCancelled, StateFailed:
		return reply("Type /start to create an invoice.")

	case StateSelectMode:
		switch strings.ToLower(text) {
		case "upload":
			return m.applyCommand(s, CommandEvent{Name: "upload"})
		case "chat":
			return m.applyCommand(s, CommandEvent{Name: "chat"})
		}
		return reply(constant.MsgNotUnderstood, constant.MsgWelcome)

	case StateUploadDocument:
		return reply("Please send your invoice as a file or photo, or type /cancel to exit.")

	case StateCollectingFields:
		return m.collectText(s, text)

	case StateReviewAndConfirm:
		return m.reviewText(s, text)

	case StateGeneratingOutput:
		return reply(constant.MsgWorkingOnIt)
	}
	return reply(constant.MsgNotUnderstood)
}

func (m *Machine) applyDocument(s *entity.Session, e DocumentEvent) Outcome {
	switch s.CurrentState {
	case StateSelectMode:
		// A document sent at mode selection implies upload mode.
		s.Mode = entity.ModeUpload
		s.CurrentState = StateUploadDocument
	case StateUploadDocument:
	default:
		return reply("I wasn't expecting a file right now. Type /status to see where we are, or /cancel to start over.")
	}

	if e.Size > MaxDocumentSize {
		return reply(constant.MsgDocumentTooLarge)
	}
	return Outcome{
		Replies: []string{constant.MsgWorkingOnIt},
		Action:  ActionExtract,
	}
}

// applyExtraction gates every extracted candidate by confidence:
// high values are collected outright, mid values are parked for a
// yes/no confirmation, low values are re-asked from scratch. Fields
// the user already confirmed are never overwritten.
func (m *Machine) applyExtraction(s *entity.Session, e ExtractionEvent) Outcome {
	if s.CurrentState != StateUploadDocument {
		return Outcome{}
	}
	if e.Degradation != "" {
		s.Degrade(e.Degradation)
	}

	for _, it := range e.Items {
		if it.Confidence >= ConfidenceConfirm {
			s.WorkItems = append(s.WorkItems, entity.WorkItem{
				Description: it.Description,
				AmountPence: it.AmountPence,
			})
		}
	}

	for _, spec := range m.fields {
		if spec.Name == FieldWorkItems {
			// Queued in field order so an empty extraction asks for
			// work items before the financial fields that follow them.
			if len(s.WorkItems) == 0 {
				s.Pending = append(s.Pending, FieldWorkItems)
			}
			continue
		}
		if _, done := s.Collected[spec.Name]; done {
			continue
		}
		cand, found := e.Fields[spec.Name]
		switch {
		case found && cand.Confidence >= ConfidenceAuto:
			s.Collect(spec.Name, cand.Value, entity.ProvenanceAIExtracted, cand.Confidence)
		case found && cand.Confidence >= ConfidenceConfirm:
			s.Candidates[spec.Name] = entity.CollectedField{
				Name:       spec.Name,
				Value:      cand.Value,
				Provenance: entity.ProvenanceAIExtracted,
				Confidence: cand.Confidence,
			}
			s.Pending = append(s.Pending, spec.Name)
		default:
			s.Pending = append(s.Pending, spec.Name)
		}
	}

	s.CurrentState = StateCollectingFields
	out := Outcome{}
	if len(s.Pending) > 0 {
		out.Replies = append(out.Replies, fmt.Sprintf(
			"I read your document and found %d of %d fields. Let me check the rest with you.",
			len(s.Collected), len(m.fields)))
	}
	out.Replies = append(out.Replies, m.advance(s).Replies...)
	return out
}

func (m *Machine) applyExtractionFailed(s *entity.Session, e ExtractionFailedEvent) Outcome {
	if s.CurrentState != StateUploadDocument {
		return Outcome{}
	}
	s.RecordError("document_processing", e.Reason)
	s.Degrade(entity.DegradationManual)
	s.CurrentState = StateCollectingFields
	m.initPending(s)
	out := reply(constant.MsgManualFallback)
	out.Replies = append(out.Replies, m.advance(s).Replies...)
	return out
}

func (m *Machine) collectText(s *entity.Session, text string) Outcome {
	if s.ConfirmField != "" {
		return m.confirmText(s, text)
	}

	if s.CurrentField == FieldWorkItems {
		desc, pence, err := parseWorkItem(text)
		if err != nil {
			return reply(err.Error())
		}
		s.WorkItems = append(s.WorkItems, entity.WorkItem{Description: desc, AmountPence: pence})
		return reply(fmt.Sprintf("Added: %s - £%s. Add another item, or type /done when finished.",
			desc, FormatPence(pence)))
	}

	spec, ok := m.spec(s.CurrentField)
	if !ok {
		return reply(constant.MsgNotUnderstood)
	}
	if spec.Validate == nil && strings.EqualFold(text, "skip") {
		s.Collect(spec.Name, "", m.provenance(s), 1.0)
		return m.afterCollect(s)
	}
	if spec.Validate != nil {
		if err := spec.Validate(text); err != nil {
			return reply(fmt.Sprintf("%s Please try again.\n\n%s", capitalise(err.Error()), spec.Prompt))
		}
	}
	if spec.Name == FieldTotalDue {
		if out, ok := m.checkTotal(s, text); !ok {
			return out
		}
	}

	s.Collect(spec.Name, text, m.provenance(s), 1.0)
	return m.afterCollect(s)
}

func (m *Machine) confirmText(s *entity.Session, text string) Outcome {
	field := s.ConfirmField
	switch strings.ToLower(text) {
	case "yes", "y", "correct", "ok":
		s.Collect(field, s.ConfirmValue, entity.ProvenanceAIExtracted, s.ConfirmConfidence)
		m.clearConfirm(s)
		return m.afterCollect(s)
	case "no", "n", "wrong":
		m.clearConfirm(s)
		s.CurrentField = field
		return reply("No problem, let's fix it.\n\n" + m.promptFor(field))
	}
	return reply(fmt.Sprintf("Please answer yes or no: is the %s %q?",
		strings.ReplaceAll(field, "_", " "), s.ConfirmValue))
}

func (m *Machine) reviewText(s *entity.Session, text string) Outcome {
	lower := strings.ToLower(text)
	switch {
	case lower == "yes" || lower == "confirm" || lower == "y":
		s.CurrentState = StateGeneratingOutput
		return Outcome{Replies: []string{constant.MsgWorkingOnIt}, Action: ActionGenerate}
	case strings.HasPrefix(lower, "edit "):
		name := strings.ReplaceAll(strings.TrimSpace(lower[len("edit "):]), " ", "_")
		spec, ok := m.spec(name)
		if !ok && name != FieldWorkItems {
			return reply(fmt.Sprintf("I don't have a field called %q. %s", name, reviewHint))
		}
		s.EditingField = name
		s.CurrentState = StateCollectingFields
		if name == FieldWorkItems {
			s.WorkItems = nil
		}
		s.Reopen(name)
		s.CurrentField = name
		if name == FieldWorkItems {
			return reply(m.promptFor(FieldWorkItems))
		}
		return reply(spec.Prompt)
	}
	return reply("Please reply *confirm* to generate the invoice, or *edit <field>* to change something. " + reviewHint)
}

const reviewHint = "For example: edit contractor name, edit invoice date, edit work items."

// afterCollect routes the session after a field lands: review edits
// jump straight back to review, everything else walks the pending
// list forward.
func (m *Machine) afterCollect(s *entity.Session) Outcome {
	if s.EditingField != "" && len(s.Pending) == 0 {
		s.EditingField = ""
		s.CurrentField = ""
		return m.finishCollection(s)
	}
	if s.EditingField != "" {
		// The edited field re-entered pending; keep walking until it
		// is collected again, then the branch above fires.
		return m.advance(s)
	}
	return m.advance(s)
}

func (m *Machine) finishWorkItems(s *entity.Session) Outcome {
	if len(s.WorkItems) == 0 {
		return reply("I need at least one work item before we move on. " + m.promptFor(FieldWorkItems))
	}
	s.Collect(FieldWorkItems, fmt.Sprintf("%d items", len(s.WorkItems)), m.provenance(s), 1.0)
	return m.afterCollect(s)
}

// advance asks for the next pending field, or finishes collection
// when nothing is left. Mid-confidence candidates turn into yes/no
// confirmations instead of open questions.
func (m *Machine) advance(s *entity.Session) Outcome {
	if len(s.Pending) == 0 {
		if s.CurrentState == StateCollectingFields {
			return m.finishCollection(s)
		}
		return Outcome{}
	}

	next := s.Pending[0]
	if cand, ok := s.Candidates[next]; ok {
		s.ConfirmField = next
		s.ConfirmValue = cand.Value
		s.ConfirmConfidence = cand.Confidence
		delete(s.Candidates, next)
		s.CurrentField = ""
		return reply(fmt.Sprintf("I think the %s is %q, but I'm not fully sure. Is that right? (yes/no)",
			strings.ReplaceAll(next, "_", " "), cand.Value))
	}
	s.CurrentField = next
	return reply(m.promptFor(next))
}

// finishCollection is the VALIDATING_DATA pass: every collected value
// re-validated, totals reconciled, then on to review. Any failure
// reopens just the offending field.
func (m *Machine) finishCollection(s *entity.Session) Outcome {
	s.CurrentState = StateValidatingData
	s.CurrentField = ""

	for _, spec := range m.fields {
		if spec.Name == FieldWorkItems {
			if len(s.WorkItems) == 0 {
				return m.reopenInvalid(s, FieldWorkItems, "there are no work items yet")
			}
			continue
		}
		if spec.Validate == nil {
			continue
		}
		if err := spec.Validate(s.FieldValue(spec.Name)); err != nil {
			return m.reopenInvalid(s, spec.Name, err.Error())
		}
	}

	if out, ok := m.checkTotal(s, s.FieldValue(FieldTotalDue)); !ok {
		s.Reopen(FieldTotalDue)
		s.CurrentState = StateCollectingFields
		s.CurrentField = FieldTotalDue
		return out
	}

	s.CurrentState = StateReviewAndConfirm
	return reply(m.reviewSummary(s), "Please reply *confirm* to generate the invoice, or *edit <field>* to change something.")
}

func (m *Machine) reopenInvalid(s *entity.Session, field, why string) Outcome {
	s.Reopen(field)
	s.CurrentState = StateCollectingFields
	s.CurrentField = field
	return reply(fmt.Sprintf("One value needs another look: %s.\n\n%s", why, m.promptFor(field)))
}

// checkTotal reconciles a supplied total against the computed one.
// Returns ok=false with the correction prompt when outside tolerance.
func (m *Machine) checkTotal(s *entity.Session, supplied string) (Outcome, bool) {
	vatRate, err1 := parseRate(s.FieldValue(FieldVatRate))
	cisRate, err2 := parseRate(s.FieldValue(FieldCisRate))
	if err1 != nil || err2 != nil || len(s.WorkItems) == 0 {
		// Rates or items missing; the validation pass reopens those.
		return Outcome{}, true
	}
	if supplied == "" || strings.EqualFold(supplied, "skip") {
		return Outcome{}, true
	}
	suppliedPence, err := ParsePence(supplied)
	if err != nil {
		return reply(err.Error()), false
	}
	totals := ComputeTotals(s.WorkItems, vatRate, cisRate)
	if Reconcile(totals, suppliedPence) {
		return Outcome{}, true
	}
	return reply(fmt.Sprintf(
		"Those figures don't quite add up. From your work items I compute:\n"+
			"Subtotal: £%s\nVAT (%.0f%%): £%s\nCIS deduction (%.0f%%): £%s\n*Total due: £%s*\n\n"+
			"You gave £%s. Please re-enter the total, or type /items to re-enter the work items.",
		FormatPence(totals.SubtotalPence), vatRate, FormatPence(totals.VatPence),
		cisRate, FormatPence(totals.CisPence), FormatPence(totals.TotalPence),
		FormatPence(suppliedPence))), false
}

func (m *Machine) reviewSummary(s *entity.Session) string {
	var b strings.Builder
	b.WriteString("*Invoice summary*\n\n")
	b.WriteString(fmt.Sprintf("Contractor: %s\n", s.FieldValue(FieldContractorName)))
	b.WriteString(fmt.Sprintf("Address: %s\n", s.FieldValue(FieldContractorAddress)))
	b.WriteString(fmt.Sprintf("UTR: %s\n", s.FieldValue(FieldContractorUTR)))
	b.WriteString(fmt.Sprintf("Cardholder: %s\n\n", s.FieldValue(FieldCardholderName)))
	b.WriteString(fmt.Sprintf("Invoice #%s dated %s\n", s.FieldValue(FieldInvoiceNumber), s.FieldValue(FieldInvoiceDate)))
	b.WriteString(fmt.Sprintf("Work period: %s to %s\n", s.FieldValue(FieldWorkStartDate), s.FieldValue(FieldWorkEndDate)))
	b.WriteString(fmt.Sprintf("Operatives: %s\n\n", s.FieldValue(FieldOperativeNames)))
	b.WriteString("Work items:\n")
	for i, it := range s.WorkItems {
		b.WriteString(fmt.Sprintf("  %d. %s - £%s\n", i+1, it.Description, FormatPence(it.AmountPence)))
	}
	vatRate, _ := parseRate(s.FieldValue(FieldVatRate))
	cisRate, _ := parseRate(s.FieldValue(FieldCisRate))
	totals := ComputeTotals(s.WorkItems, vatRate, cisRate)
	b.WriteString(fmt.Sprintf("\nSubtotal: £%s\nVAT (%.0f%%): £%s\nCIS deduction (%.0f%%): £%s\n*Total due: £%s*",
		FormatPence(totals.SubtotalPence), vatRate, FormatPence(totals.VatPence),
		cisRate, FormatPence(totals.CisPence), FormatPence(totals.TotalPence)))
	return b.String()
}

func (m *Machine) statusText(s *entity.Session) string {
	switch s.CurrentState {
	case "", StateComplete, StateCancelled, StateFailed:
		return "No invoice in progress. Type /start to begin."
	case StateSelectMode:
		return "Waiting for you to choose: /upload a document or /chat to provide details."
	case StateUploadDocument:
		return "Waiting for your invoice document."
	case StateCollectingFields:
		return fmt.Sprintf("Collecting details: %d of %d fields done, %d to go.",
			len(s.Collected), len(m.fields), len(s.Pending))
	case StateReviewAndConfirm:
		return "Everything is collected. Reply *confirm* to generate the invoice."
	case StateGeneratingOutput:
		return "Generating your invoice now."
	}
	return "Working on your invoice."
}

func (m *Machine) reset(s *entity.Session) {
	s.CurrentState = StateSelectMode
	s.Mode = ""
	s.CurrentField = ""
	s.EditingField = ""
	m.clearConfirm(s)
	s.Collected = make(map[string]entity.CollectedField)
	s.Candidates = make(map[string]entity.CollectedField)
	s.Pending = nil
	s.WorkItems = nil
	s.Degradation = entity.DegradationFull
}

// cancel drops all in-flight collection state. Background results for
// this session become stale and are discarded on arrival.
func (m *Machine) cancel(s *entity.Session) {
	s.CurrentState = StateCancelled
	s.CurrentField = ""
	s.EditingField = ""
	m.clearConfirm(s)
	s.Pending = nil
	s.Candidates = make(map[string]entity.CollectedField)
}

func (m *Machine) clearConfirm(s *entity.Session) {
	s.ConfirmField = ""
	s.ConfirmValue = ""
	s.ConfirmConfidence = 0
}

func (m *Machine) initPending(s *entity.Session) {
	s.Pending = s.Pending[:0]
	for _, spec := range m.fields {
		if _, done := s.Collected[spec.Name]; !done {
			s.Pending = append(s.Pending, spec.Name)
		}
	}
}

func (m *Machine) spec(name string) (FieldSpec, bool) {
	for _, spec := range m.fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

func (m *Machine) promptFor(name string) string {
	if spec, ok := m.spec(name); ok {
		return spec.Prompt
	}
	return constant.MsgNotUnderstood
}

// provenance of a typed-in value: manual_entry when the user is
// filling gaps after an upload, user_provided in chat mode.
func (m *Machine) provenance(s *entity.Session) entity.FieldProvenance {
	if s.Mode == entity.ModeUpload {
		return entity.ProvenanceManualEntry
	}
	return entity.ProvenanceUserProvided
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
