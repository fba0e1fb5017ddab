package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/repository/implementation"
	"invoice-collector-be/internal/repository/specification"
	"invoice-collector-be/internal/repository/unitofwork"
	"invoice-collector-be/pkg/resilience"
)

const (
	dlqWakeTopic = "dlq.wake"
	// dlqDefaultMaxAttempts bounds background redelivery before a
	// human gets paged.
	dlqDefaultMaxAttempts = 5
	// dlqClaimVisibility is how long a claimed entry stays invisible
	// to other processors before it is considered abandoned.
	dlqClaimVisibility = 2 * time.Minute
	dlqSweepInterval   = 30 * time.Second
	// dlqSweepBatchSize caps one pass; anything beyond it is picked
	// up by the next tick, oldest first.
	dlqSweepBatchSize = 100
)

// DeadLetterHandler re-executes one parked operation from its payload.
// A nil return marks the entry SUCCEEDED; a handler that finds its
// target session moved on should treat the entry as stale and return
// nil so it is retired, not retried.
type DeadLetterHandler func(ctx context.Context, payload map[string]interface{}) error

type IDeadLetterService interface {
	RegisterHandler(operationType string, handler DeadLetterHandler)
	// Enqueue parks a failed operation for background redelivery.
	// Permanent failures are escalated immediately instead of burning
	// retry attempts.
	Enqueue(ctx context.Context, operationType string, payload map[string]interface{}, cause error) error
	// Run blocks, processing due entries on wake-up messages and on a
	// timer, until ctx is cancelled.
	Run(ctx context.Context) error
	// ProcessDue runs one pass over due entries and reports how many
	// were attempted.
	ProcessDue(ctx context.Context) int
}

type deadLetterService struct {
	uowFactory   unitofwork.RepositoryFactory
	pubSub       *gochannel.GoChannel
	notification INotificationService
	backoff      resilience.Policy
	maxAttempts  int
	handlers     map[string]DeadLetterHandler
}

func NewDeadLetterService(
	uowFactory unitofwork.RepositoryFactory,
	pubSub *gochannel.GoChannel,
	notification INotificationService,
	maxAttempts int,
) IDeadLetterService {
	if maxAttempts <= 0 {
		maxAttempts = dlqDefaultMaxAttempts
	}
	return &deadLetterService{
		uowFactory:   uowFactory,
		pubSub:       pubSub,
		notification: notification,
		backoff:      resilience.Policy{MaxAttempts: maxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 15 * time.Minute, Jitter: true},
		maxAttempts:  maxAttempts,
		handlers:     make(map[string]DeadLetterHandler),
	}
}

func (s *deadLetterService) RegisterHandler(operationType string, handler DeadLetterHandler) {
	s.handlers[operationType] = handler
}

func (s *deadLetterService) Enqueue(ctx context.Context, operationType string, payload map[string]interface{}, cause error) error {
	entry := &entity.DeadLetterEntry{
		Id:            uuid.New(),
		OperationType: operationType,
		Payload:       payload,
		ErrorSummary:  cause.Error(),
		AttemptCount:  0,
		MaxAttempts:   s.maxAttempts,
		Status:        entity.DLQPending,
		EnqueuedAt:    time.Now(),
		Version:       1,
	}

	classification := resilience.Classify(cause)
	if !classification.Retryable {
		entry.Status = entity.DLQEscalated
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("enqueue dead letter: %w", err)
	}
	if err := uow.DeadLetterRepository().Create(ctx, entry); err != nil {
		uow.Rollback()
		return fmt.Errorf("enqueue dead letter: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("enqueue dead letter: %w", err)
	}

	log.Printf("[WARN] Dead letter enqueued: %s op=%s status=%s cause=%v", entry.Id, operationType, entry.Status, cause)

	if entry.Status == entity.DLQEscalated {
		s.notification.NotifyEscalation(ctx, entry)
		return nil
	}

	// Wake the processor so fresh entries do not wait for the sweep.
	msg := message.NewMessage(watermill.NewUUID(), []byte(entry.Id.String()))
	if err := s.pubSub.Publish(dlqWakeTopic, msg); err != nil {
		log.Printf("[WARN] Failed to publish dead letter wake-up: %v", err)
	}
	return nil
}

func (s *deadLetterService) Run(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, dlqWakeTopic)
	if err != nil {
		return fmt.Errorf("subscribe dead letter wake topic: %w", err)
	}

	ticker := time.NewTicker(dlqSweepInterval)
	defer ticker.Stop()

	log.Printf("[INFO] Dead letter processor started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] Dead letter processor stopping: %v", ctx.Err())
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			msg.Ack()
			s.ProcessDue(ctx)
		case <-ticker.C:
			s.ProcessDue(ctx)
		}
	}
}

func (s *deadLetterService) ProcessDue(ctx context.Context) int {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	due, err := uow.DeadLetterRepository().FindAll(ctx,
		specification.ByStatus{Statuses: []string{string(entity.DLQPending), string(entity.DLQRetrying)}},
		specification.DueBefore{Now: time.Now()},
		specification.OrderBy{Field: "next_retry_at"},
		specification.Pagination{Limit: dlqSweepBatchSize},
	)
	if err != nil {
		log.Printf("[ERROR] Dead letter scan failed: %v", err)
		return 0
	}

	attempted := 0
	for _, entry := range due {
		if !entry.Due(time.Now()) {
			continue
		}
		if s.claim(ctx, entry) {
			attempted++
			s.process(ctx, entry)
		}
	}
	return attempted
}

// claim flips the entry to RETRYING under the version guard. Exactly
// one processor wins; losers skip the entry this pass.
func (s *deadLetterService) claim(ctx context.Context, entry *entity.DeadLetterEntry) bool {
	entry.Status = entity.DLQRetrying
	entry.AttemptCount++
	visible := time.Now().Add(dlqClaimVisibility)
	entry.NextRetryAt = &visible

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false
	}
	if err := uow.DeadLetterRepository().Update(ctx, entry); err != nil {
		uow.Rollback()
		if !errors.Is(err, implementation.ErrVersionConflict) {
			log.Printf("[ERROR] Dead letter claim failed for %s: %v", entry.Id, err)
		}
		return false
	}
	return uow.Commit() == nil
}

func (s *deadLetterService) process(ctx context.Context, entry *entity.DeadLetterEntry) {
	handler, ok := s.handlers[entry.OperationType]
	if !ok {
		log.Printf("[ERROR] No handler registered for dead letter operation %q; escalating %s", entry.OperationType, entry.Id)
		s.finish(ctx, entry, entity.DLQEscalated, "no handler for operation type")
		s.notification.NotifyEscalation(ctx, entry)
		return
	}

	err := handler(ctx, entry.Payload)
	if err == nil {
		log.Printf("[INFO] Dead letter %s (%s) succeeded on attempt %d", entry.Id, entry.OperationType, entry.AttemptCount)
		s.finish(ctx, entry, entity.DLQSucceeded, "")
		return
	}

	if entry.AttemptCount >= entry.MaxAttempts || !resilience.Retryable(err) {
		log.Printf("[ERROR] Dead letter %s (%s) escalated after %d attempts: %v", entry.Id, entry.OperationType, entry.AttemptCount, err)
		s.finish(ctx, entry, entity.DLQEscalated, err.Error())
		s.notification.NotifyEscalation(ctx, entry)
		return
	}

	next := time.Now().Add(s.backoff.DelayFor(entry.AttemptCount))
	entry.Status = entity.DLQPending
	entry.NextRetryAt = &next
	entry.ErrorSummary = err.Error()
	s.update(ctx, entry)
	log.Printf("[WARN] Dead letter %s (%s) attempt %d/%d failed: %v. Next retry at %s",
		entry.Id, entry.OperationType, entry.AttemptCount, entry.MaxAttempts, err, next.Format(time.RFC3339))
}

func (s *deadLetterService) finish(ctx context.Context, entry *entity.DeadLetterEntry, status entity.DeadLetterStatus, summary string) {
	entry.Status = status
	entry.NextRetryAt = nil
	if summary != "" {
		entry.ErrorSummary = summary
	}
	s.update(ctx, entry)
}

func (s *deadLetterService) update(ctx context.Context, entry *entity.DeadLetterEntry) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Dead letter update begin failed for %s: %v", entry.Id, err)
		return
	}
	if err := uow.DeadLetterRepository().Update(ctx, entry); err != nil {
		uow.Rollback()
		log.Printf("[ERROR] Dead letter update failed for %s: %v", entry.Id, err)
		return
	}
	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Dead letter update commit failed for %s: %v", entry.Id, err)
	}
}
