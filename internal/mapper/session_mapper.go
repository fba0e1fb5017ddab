package mapper

import (
	"encoding/json"
	"log"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/model"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToModel(s *entity.Session) *model.ConversationSession {
	return &model.ConversationSession{
		Id:                s.Id,
		UserId:            s.UserId,
		ChatId:            s.ChatId,
		CurrentState:      s.CurrentState,
		Mode:              s.Mode,
		CurrentField:      s.CurrentField,
		ConfirmField:      s.ConfirmField,
		ConfirmValue:      s.ConfirmValue,
		ConfirmConfidence: s.ConfirmConfidence,
		EditingField:      s.EditingField,
		Collected:         marshalJSON(s.Collected),
		Pending:           marshalJSON(s.Pending),
		Candidates:        marshalJSON(s.Candidates),
		WorkItems:         marshalJSON(s.WorkItems),
		ProcessingErrors:  marshalJSON(s.ProcessingErrors),
		Degradation:       string(s.Degradation),
		RetryCount:        s.RetryCount,
		LastUpdateId:      s.LastUpdateId,
		Version:           s.Version,
		LastActivity:      s.LastActivity,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (m *SessionMapper) ToEntity(mod *model.ConversationSession) *entity.Session {
	s := &entity.Session{
		Id:                mod.Id,
		UserId:            mod.UserId,
		ChatId:            mod.ChatId,
		CurrentState:      mod.CurrentState,
		Mode:              mod.Mode,
		CurrentField:      mod.CurrentField,
		ConfirmField:      mod.ConfirmField,
		ConfirmValue:      mod.ConfirmValue,
		ConfirmConfidence: mod.ConfirmConfidence,
		EditingField:      mod.EditingField,
		Collected:         make(map[string]entity.CollectedField),
		Candidates:        make(map[string]entity.CollectedField),
		Degradation:       entity.DegradationLevel(mod.Degradation),
		RetryCount:        mod.RetryCount,
		LastUpdateId:      mod.LastUpdateId,
		Version:           mod.Version,
		LastActivity:      mod.LastActivity,
		CreatedAt:         mod.CreatedAt,
		UpdatedAt:         mod.UpdatedAt,
	}
	unmarshalJSON(mod.Collected, &s.Collected)
	unmarshalJSON(mod.Pending, &s.Pending)
	unmarshalJSON(mod.Candidates, &s.Candidates)
	unmarshalJSON(mod.WorkItems, &s.WorkItems)
	unmarshalJSON(mod.ProcessingErrors, &s.ProcessingErrors)
	return s
}

func (m *SessionMapper) DeadLetterToModel(e *entity.DeadLetterEntry) *model.DeadLetterEntry {
	return &model.DeadLetterEntry{
		Id:            e.Id,
		OperationType: e.OperationType,
		Payload:       marshalJSON(e.Payload),
		ErrorSummary:  e.ErrorSummary,
		AttemptCount:  e.AttemptCount,
		MaxAttempts:   e.MaxAttempts,
		Status:        string(e.Status),
		NextRetryAt:   e.NextRetryAt,
		Version:       e.Version,
		EnqueuedAt:    e.EnqueuedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (m *SessionMapper) DeadLetterToEntity(mod *model.DeadLetterEntry) *entity.DeadLetterEntry {
	e := &entity.DeadLetterEntry{
		Id:            mod.Id,
		OperationType: mod.OperationType,
		Payload:       make(map[string]interface{}),
		ErrorSummary:  mod.ErrorSummary,
		AttemptCount:  mod.AttemptCount,
		MaxAttempts:   mod.MaxAttempts,
		Status:        entity.DeadLetterStatus(mod.Status),
		NextRetryAt:   mod.NextRetryAt,
		Version:       mod.Version,
		EnqueuedAt:    mod.EnqueuedAt,
		UpdatedAt:     mod.UpdatedAt,
	}
	unmarshalJSON(mod.Payload, &e.Payload)
	return e
}

func marshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ERROR] Mapper failed to marshal %T: %v", v, err)
		return []byte("null")
	}
	return data
}

func unmarshalJSON(data []byte, v interface{}) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[ERROR] Mapper failed to unmarshal into %T: %v", v, err)
	}
}
