package service

import (
	"context"
	"log"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/pkg/mailer"
	"invoice-collector-be/pkg/events"
	pktNats "invoice-collector-be/pkg/nats"
)

type INotificationService interface {
	NotifyInvoiceGenerated(ctx context.Context, userId, invoiceNumber string, totalPence int64)
	NotifyEscalation(ctx context.Context, entry *entity.DeadLetterEntry)
	NotifySessionExpired(ctx context.Context, userId, lastState string)
}

// notificationService fans operational signals out to the event bus
// and, for escalations, to the operator's inbox. Every send is best
// effort: a dead bus must never fail the operation being reported.
type notificationService struct {
	eventPublisher *pktNats.Publisher
	emailService   mailer.IEmailService
}

func NewNotificationService(eventPublisher *pktNats.Publisher, emailService mailer.IEmailService) INotificationService {
	return &notificationService{
		eventPublisher: eventPublisher,
		emailService:   emailService,
	}
}

func (s *notificationService) NotifyInvoiceGenerated(ctx context.Context, userId, invoiceNumber string, totalPence int64) {
	s.publish(ctx, events.NewInvoiceGeneratedEvent(userId, invoiceNumber, totalPence))
}

func (s *notificationService) NotifyEscalation(ctx context.Context, entry *entity.DeadLetterEntry) {
	s.publish(ctx, events.NewOperationEscalatedEvent(entry.Id.String(), entry.OperationType, entry.ErrorSummary, entry.AttemptCount))
	if err := s.emailService.SendEscalationAlert(entry.OperationType, entry.Id.String(), entry.ErrorSummary, entry.AttemptCount); err != nil {
		log.Printf("[WARN] Failed to email escalation alert for entry %s: %v", entry.Id, err)
	}
}

func (s *notificationService) NotifySessionExpired(ctx context.Context, userId, lastState string) {
	s.publish(ctx, events.NewSessionExpiredEvent(userId, lastState))
}

// publish tolerates a nil publisher so a NATS outage at startup does
// not take notifications down with it.
func (s *notificationService) publish(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		log.Printf("[WARN] Event bus unavailable, dropping %s event", evt.EventType())
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		log.Printf("[WARN] Failed to publish %s event: %v", evt.EventType(), err)
	}
}
