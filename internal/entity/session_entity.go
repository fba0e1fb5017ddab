package entity

import (
	"time"

	"github.com/google/uuid"
)

// FieldProvenance records where a collected value came from.
type FieldProvenance string

const (
	ProvenanceAIExtracted  FieldProvenance = "ai_extracted"
	ProvenanceUserProvided FieldProvenance = "user_provided"
	ProvenanceManualEntry  FieldProvenance = "manual_entry"
)

// DegradationLevel marks which fallback tier produced the session's
// most recent result.
type DegradationLevel string

const (
	DegradationFull    DegradationLevel = "full"
	DegradationReduced DegradationLevel = "reduced"
	DegradationMinimal DegradationLevel = "minimal"
	DegradationManual  DegradationLevel = "manual"
)

// Collection modes for a session.
const (
	ModeUpload = "UPLOAD"
	ModeChat   = "CHAT"
)

// CollectedField is one confirmed value with its provenance and the
// extraction confidence it arrived with.
type CollectedField struct {
	Name        string          `json:"name"`
	Value       string          `json:"value"`
	Provenance  FieldProvenance `json:"provenance"`
	Confidence  float64         `json:"confidence"`
	CollectedAt time.Time       `json:"collected_at"`
}

// WorkItem is a single invoiced line of work. Amounts are held in
// pence so rounding is exact.
type WorkItem struct {
	Description string `json:"description"`
	AmountPence int64  `json:"amount_pence"`
}

// ProcessingError is a bounded diagnostic trail entry.
type ProcessingError struct {
	At       time.Time `json:"at"`
	Category string    `json:"category"`
	Summary  string    `json:"summary"`
}

const maxProcessingErrors = 10

// Session is one user's in-progress invoice-collection conversation.
type Session struct {
	Id     uuid.UUID
	UserId string
	ChatId string

	CurrentState string
	Mode         string

	// CurrentField is the field COLLECTING_FIELDS is asking for.
	CurrentField string
	// ConfirmField holds a field name while its mid-confidence
	// extracted value awaits explicit user confirmation.
	ConfirmField string
	// ConfirmValue is the candidate value awaiting confirmation.
	ConfirmValue string
	// ConfirmConfidence is the extraction confidence of ConfirmValue.
	ConfirmConfidence float64
	// EditingField is set while review sent the user back to re-enter
	// a single field; completion returns to review, not the full walk.
	EditingField string

	Collected map[string]CollectedField
	Pending   []string
	// Candidates holds mid-confidence extracted values that still
	// need a yes/no from the user before they count as collected.
	Candidates map[string]CollectedField
	WorkItems  []WorkItem

	Degradation      DegradationLevel
	RetryCount       int
	ProcessingErrors []ProcessingError

	// LastUpdateId guards against duplicate webhook deliveries.
	LastUpdateId int64

	// Version backs optimistic concurrency in the state store.
	Version      int
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates a fresh session for a user with no active one.
func NewSession(userId, chatId string) *Session {
	now := time.Now()
	return &Session{
		Id:           uuid.New(),
		UserId:       userId,
		ChatId:       chatId,
		Collected:    make(map[string]CollectedField),
		Candidates:   make(map[string]CollectedField),
		Degradation:  DegradationFull,
		Version:      1,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Collect moves a field from pending to collected. A field name lives
// in exactly one of the two sets at any time.
func (s *Session) Collect(name, value string, prov FieldProvenance, confidence float64) {
	s.Collected[name] = CollectedField{
		Name:        name,
		Value:       value,
		Provenance:  prov,
		Confidence:  confidence,
		CollectedAt: time.Now(),
	}
	s.Pending = removeField(s.Pending, name)
}

// Reopen moves a collected field back to the front of pending so it
// can be asked for again (review edits, rejected reconciliation).
func (s *Session) Reopen(name string) {
	delete(s.Collected, name)
	s.Pending = append([]string{name}, removeField(s.Pending, name)...)
}

// FieldValue returns the collected value for name, or "".
func (s *Session) FieldValue(name string) string {
	if f, ok := s.Collected[name]; ok {
		return f.Value
	}
	return ""
}

// Degrade lowers the degradation level; it never raises it back
// within one workflow pass.
func (s *Session) Degrade(level DegradationLevel) {
	if rank(level) > rank(s.Degradation) {
		s.Degradation = level
	}
}

// RecordError appends to the bounded diagnostic history.
func (s *Session) RecordError(category, summary string) {
	s.ProcessingErrors = append(s.ProcessingErrors, ProcessingError{
		At:       time.Now(),
		Category: category,
		Summary:  summary,
	})
	if len(s.ProcessingErrors) > maxProcessingErrors {
		s.ProcessingErrors = s.ProcessingErrors[len(s.ProcessingErrors)-maxProcessingErrors:]
	}
	s.RetryCount++
}

// Touch renews the activity timestamp that drives session expiry.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

func removeField(fields []string, name string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != name {
			out = append(out, f)
		}
	}
	return out
}

func rank(l DegradationLevel) int {
	switch l {
	case DegradationFull:
		return 0
	case DegradationReduced:
		return 1
	case DegradationMinimal:
		return 2
	case DegradationManual:
		return 3
	}
	return 0
}
