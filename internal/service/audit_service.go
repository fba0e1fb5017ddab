package service

import (
	"context"
	"log"

	"invoice-collector-be/internal/pkg/logger"
	"invoice-collector-be/pkg/events"
	pktNats "invoice-collector-be/pkg/nats"
)

const auditDurableName = "invoice-collector-audit"

type IAuditService interface {
	Start()
}

// auditService tails the event bus and writes every domain event to the
// structured ops log. It is the durable trail operators grep when a user
// reports a missing invoice or an escalation email never arrived.
type auditService struct {
	subscriber *pktNats.Subscriber
	sysLogger  logger.ILogger
}

func NewAuditService(subscriber *pktNats.Subscriber, sysLogger logger.ILogger) IAuditService {
	return &auditService{
		subscriber: subscriber,
		sysLogger:  sysLogger,
	}
}

func (s *auditService) Start() {
	if s.subscriber == nil {
		log.Printf("[WARN] Audit trail disabled: no NATS subscriber available")
		return
	}
	if err := s.subscriber.Subscribe("events.>", auditDurableName, s.record); err != nil {
		log.Printf("[WARN] Failed to start audit consumer: %v", err)
	}
}

func (s *auditService) record(ctx context.Context, event events.Event) error {
	details := event.Payload()
	switch event.EventType() {
	case "events." + events.TypeOperationEscalated:
		s.sysLogger.Warn("audit", "Operation escalated to operator", details)
	default:
		s.sysLogger.Info("audit", "Domain event observed", details)
	}
	return nil
}
