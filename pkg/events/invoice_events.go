package events

import "time"

// Event type codes published to the bus.
const (
	TypeInvoiceGenerated   = "INVOICE_GENERATED"
	TypeOperationEscalated = "OPERATION_ESCALATED"
	TypeSessionExpired     = "SESSION_EXPIRED"
)

func NewInvoiceGeneratedEvent(userId, invoiceNumber string, totalPence int64) Event {
	return BaseEvent{
		Type: TypeInvoiceGenerated,
		Data: map[string]interface{}{
			"user_id":        userId,
			"invoice_number": invoiceNumber,
			"total_pence":    totalPence,
		},
		OccurredAt: time.Now(),
	}
}

// NewOperationEscalatedEvent fires when a dead letter entry burned
// through its retry budget and needs a human.
func NewOperationEscalatedEvent(entryId, operationType, errorSummary string, attempts int) Event {
	return BaseEvent{
		Type: TypeOperationEscalated,
		Data: map[string]interface{}{
			"entry_id":       entryId,
			"operation_type": operationType,
			"error_summary":  errorSummary,
			"attempts":       attempts,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionExpiredEvent(userId, lastState string) Event {
	return BaseEvent{
		Type: TypeSessionExpired,
		Data: map[string]interface{}{
			"user_id":    userId,
			"last_state": lastState,
		},
		OccurredAt: time.Now(),
	}
}
