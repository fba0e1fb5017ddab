package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-collector-be/internal/constant"
	"invoice-collector-be/internal/dto"
	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/repository/implementation"
	"invoice-collector-be/internal/repository/memory"
	"invoice-collector-be/internal/repository/specification"
	"invoice-collector-be/internal/repository/unitofwork"
	"invoice-collector-be/pkg/extract"
	"invoice-collector-be/pkg/render"
	"invoice-collector-be/pkg/resilience"
	"invoice-collector-be/pkg/store"
	"invoice-collector-be/pkg/telegram"
	"invoice-collector-be/pkg/workflow"
)

const (
	// sessionIdleTimeout is how long a conversation may sit untouched
	// before the sweep cancels it. Much longer than the lock lease:
	// users walk away mid-invoice and come back.
	sessionIdleTimeout  = 24 * time.Hour
	expirySweepInterval = 5 * time.Minute

	opGenerateInvoice = "generate_invoice"
	opSendMessage     = "send_message"
)

type IConversationService interface {
	// HandleUpdate applies one webhook update to the owning session.
	// Updates for the same user are serialized by a distributed lock;
	// redelivered updates are dropped by id.
	HandleUpdate(ctx context.Context, update *dto.WebhookUpdate) error
	// RunExpirySweep blocks, cancelling idle sessions, until ctx ends.
	RunExpirySweep(ctx context.Context) error
}

type conversationService struct {
	uowFactory   unitofwork.RepositoryFactory
	machine      *workflow.Machine
	pipeline     *extract.Pipeline
	bot          *telegram.Client
	lock         *store.SessionLock
	redisCache   *store.SessionCache
	hotCache     *memory.SessionRepository
	dlq          IDeadLetterService
	notification INotificationService
	renderers    []render.Renderer
	breakers     *resilience.BreakerRegistry
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	machine *workflow.Machine,
	pipeline *extract.Pipeline,
	bot *telegram.Client,
	lock *store.SessionLock,
	redisCache *store.SessionCache,
	hotCache *memory.SessionRepository,
	dlq IDeadLetterService,
	notification INotificationService,
	renderers []render.Renderer,
	breakers *resilience.BreakerRegistry,
) IConversationService {
	s := &conversationService{
		uowFactory:   uowFactory,
		machine:      machine,
		pipeline:     pipeline,
		bot:          bot,
		lock:         lock,
		redisCache:   redisCache,
		hotCache:     hotCache,
		dlq:          dlq,
		notification: notification,
		renderers:    renderers,
		breakers:     breakers,
	}
	dlq.RegisterHandler(opGenerateInvoice, s.handleGenerateRetry)
	dlq.RegisterHandler(opSendMessage, s.handleSendRetry)
	return s
}

func activeStates() []string {
	return []string{
		workflow.StateSelectMode,
		workflow.StateUploadDocument,
		workflow.StateCollectingFields,
		workflow.StateValidatingData,
		workflow.StateReviewAndConfirm,
		workflow.StateGeneratingOutput,
	}
}

func (s *conversationService) HandleUpdate(ctx context.Context, update *dto.WebhookUpdate) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	userId := strconv.FormatInt(msg.From.Id, 10)
	chatId := strconv.FormatInt(msg.Chat.Id, 10)

	token, err := s.lock.Acquire(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrLockBusy) {
			// A previous update for this user is still in flight;
			// Telegram will redeliver this one.
			log.Printf("[WARN] Session lock busy for user %s, update %d deferred", userId, update.UpdateId)
			return err
		}
		return err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), userId, token); err != nil {
			log.Printf("[WARN] Failed to release session lock for user %s: %v", userId, err)
		}
	}()

	sess, isNew, err := s.loadSession(ctx, userId, chatId)
	if err != nil {
		return err
	}

	if update.UpdateId != 0 && update.UpdateId <= sess.LastUpdateId {
		log.Printf("[INFO] Duplicate update %d for user %s (last seen %d), dropped", update.UpdateId, userId, sess.LastUpdateId)
		return nil
	}

	ev, fileRef := eventFromMessage(msg)
	outcome, err := s.machine.Apply(sess, ev)
	if err != nil {
		return err
	}
	sess.LastUpdateId = update.UpdateId

	if err := s.persist(ctx, sess, isNew); err != nil {
		return err
	}
	s.sendReplies(ctx, chatId, outcome.Replies)

	// The transition is committed; slow document and model work runs
	// off the webhook path so Telegram gets its ack well inside the
	// delivery deadline. The completion events re-enter under the
	// lock and discard themselves if the session has moved on.
	switch outcome.Action {
	case workflow.ActionExtract:
		go func() {
			bg := context.WithoutCancel(ctx)
			if err := s.runExtraction(bg, sess, chatId, fileRef); err != nil {
				log.Printf("[ERROR] Background extraction for session %s: %v", sess.Id, err)
			}
		}()
	case workflow.ActionGenerate:
		go func() {
			bg := context.WithoutCancel(ctx)
			if err := s.runGeneration(bg, sess, chatId); err != nil {
				log.Printf("[ERROR] Background generation for session %s: %v", sess.Id, err)
			}
		}()
	}
	return nil
}

// loadSession reads through the cache hierarchy: process-local, then
// Redis, then Postgres. A user with no live session gets a fresh one.
func (s *conversationService) loadSession(ctx context.Context, userId, chatId string) (*entity.Session, bool, error) {
	if sess, ok := s.hotCache.Get(userId); ok {
		return sess, false, nil
	}
	if sess := s.redisCache.Get(ctx, userId); sess != nil {
		s.hotCache.Save(sess)
		return sess, false, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	sess, err := uow.SessionRepository().FindOne(ctx,
		specification.ByUserId{UserId: userId},
		specification.ActiveStates{States: activeStates()},
	)
	if err != nil {
		return nil, false, fmt.Errorf("load session for user %s: %w", userId, err)
	}
	if sess != nil {
		s.hotCache.Save(sess)
		return sess, false, nil
	}
	return entity.NewSession(userId, chatId), true, nil
}

// persist commits the session and refreshes both cache layers. The
// database write retries behind the shared database breaker; a
// version conflict is not retried, it means another writer got past
// the lock and the caches must be dropped.
func (s *conversationService) persist(ctx context.Context, sess *entity.Session, isNew bool) error {
	policy := resilience.DatabasePolicy()
	policy.Breaker = s.breakers.GetOrCreate("database", resilience.DatabaseBreaker())
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, implementation.ErrVersionConflict) && resilience.Retryable(err)
	}

	err := resilience.Execute(ctx, "session-persist", policy, func(ctx context.Context) error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.Begin(ctx); err != nil {
			return err
		}
		var writeErr error
		if isNew {
			writeErr = uow.SessionRepository().Create(ctx, sess)
		} else {
			writeErr = uow.SessionRepository().Update(ctx, sess)
		}
		if writeErr != nil {
			uow.Rollback()
			return writeErr
		}
		return uow.Commit()
	})
	if err != nil {
		if errors.Is(err, implementation.ErrVersionConflict) {
			log.Printf("[ERROR] Version conflict persisting session %s; dropping caches", sess.Id)
			s.hotCache.Delete(sess.UserId)
			s.redisCache.Drop(ctx, sess.UserId)
		}
		return fmt.Errorf("persist session %s: %w", sess.Id, err)
	}

	if workflow.Terminal(sess.CurrentState) {
		s.hotCache.Delete(sess.UserId)
		s.redisCache.Drop(ctx, sess.UserId)
		return nil
	}
	s.hotCache.Save(sess)
	if err := s.redisCache.Put(ctx, sess); err != nil {
		log.Printf("[WARN] Failed to cache session %s: %v", sess.Id, err)
	}
	return nil
}

// sendReplies delivers outgoing messages. A message that cannot be
// delivered after retries is parked in the dead letter queue; the
// conversation state is already committed, so nothing is lost.
func (s *conversationService) sendReplies(ctx context.Context, chatId string, replies []string) {
	policy := resilience.WebhookPolicy()
	policy.Breaker = s.breakers.GetOrCreate("telegram", resilience.WebhookBreaker())

	for _, text := range replies {
		text := text
		err := resilience.Execute(ctx, "telegram-send", policy, func(ctx context.Context) error {
			return s.bot.SendMessage(ctx, chatId, text)
		})
		if err != nil {
			log.Printf("[ERROR] Failed to deliver reply to chat %s: %v", chatId, err)
			payload := map[string]interface{}{"chat_id": chatId, "text": text}
			if dlqErr := s.dlq.Enqueue(ctx, opSendMessage, payload, err); dlqErr != nil {
				log.Printf("[ERROR] Failed to park undelivered reply: %v", dlqErr)
			}
		}
	}
}

func (s *conversationService) runExtraction(ctx context.Context, sess *entity.Session, chatId string, file *dto.FileRef) error {
	if file == nil {
		return fmt.Errorf("extraction requested without a file reference")
	}

	policy := resilience.WebhookPolicy()
	policy.Breaker = s.breakers.GetOrCreate("telegram", resilience.WebhookBreaker())
	var data []byte
	err := resilience.Execute(ctx, "telegram-download", policy, func(ctx context.Context) error {
		var dlErr error
		data, dlErr = s.bot.DownloadFile(ctx, file.FileId)
		return dlErr
	})

	var ev workflow.Event
	switch {
	case err != nil:
		log.Printf("[ERROR] Document download failed for session %s: %v", sess.Id, err)
		ev = workflow.ExtractionFailedEvent{Reason: "document download failed"}
	default:
		result, procErr := s.pipeline.Process(ctx, data)
		switch {
		case procErr == nil:
			ev = extractionEvent(result)
		case isUnsupported(procErr):
			// Wrong file type is the user's to fix, not a systems
			// failure; stay in upload and ask for another file.
			s.sendReplies(ctx, chatId, []string{constant.MsgUnsupportedFormat})
			return nil
		default:
			log.Printf("[ERROR] Extraction pipeline exhausted for session %s: %v", sess.Id, procErr)
			ev = workflow.ExtractionFailedEvent{Reason: procErr.Error()}
		}
	}

	return s.applyEvent(ctx, sess.UserId, chatId, sess.Id, ev)
}

func (s *conversationService) runGeneration(ctx context.Context, sess *entity.Session, chatId string) error {
	err := s.renderAndDeliver(ctx, sess, chatId)
	if err == nil {
		return s.applyEvent(ctx, sess.UserId, chatId, sess.Id, workflow.RenderedEvent{})
	}

	log.Printf("[ERROR] Invoice generation failed for session %s: %v", sess.Id, err)
	payload := map[string]interface{}{
		"session_id": sess.Id.String(),
		"user_id":    sess.UserId,
		"chat_id":    chatId,
	}
	if dlqErr := s.dlq.Enqueue(ctx, opGenerateInvoice, payload, err); dlqErr != nil {
		log.Printf("[ERROR] Failed to park invoice generation: %v", dlqErr)
	}
	return s.applyEvent(ctx, sess.UserId, chatId, sess.Id, workflow.RenderFailedEvent{})
}

// applyEvent feeds a completion event from background work back into
// the session under the lock. The session is reloaded rather than
// reusing the worker's copy; if it was replaced in the meantime the
// event is retired and the machine drops anything the current state
// does not expect.
func (s *conversationService) applyEvent(ctx context.Context, userId, chatId string, sessionId uuid.UUID, ev workflow.Event) error {
	token, err := s.lock.Acquire(ctx, userId)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), userId, token); err != nil {
			log.Printf("[WARN] Failed to release session lock for user %s: %v", userId, err)
		}
	}()

	sess, isNew, err := s.loadSession(ctx, userId, chatId)
	if err != nil {
		return err
	}
	if isNew || sess.Id != sessionId {
		log.Printf("[INFO] Session %s gone before %T arrived; event retired", sessionId, ev)
		return nil
	}

	outcome, applyErr := s.machine.Apply(sess, ev)
	if applyErr != nil {
		return applyErr
	}
	if err := s.persist(ctx, sess, false); err != nil {
		return err
	}
	s.sendReplies(ctx, chatId, outcome.Replies)
	return nil
}

// renderAndDeliver builds the invoice, renders it with the first
// renderer that succeeds, and uploads it to the chat.
func (s *conversationService) renderAndDeliver(ctx context.Context, sess *entity.Session, chatId string) error {
	inv, err := workflow.BuildInvoice(sess)
	if err != nil {
		return err
	}

	var doc *render.Document
	var lastErr error
	for _, r := range s.renderers {
		doc, lastErr = r.Render(inv)
		if lastErr == nil {
			break
		}
		log.Printf("[WARN] Renderer %s failed for session %s: %v", r.Name(), sess.Id, lastErr)
	}
	if doc == nil {
		return fmt.Errorf("all renderers failed: %w", lastErr)
	}

	policy := resilience.WebhookPolicy()
	policy.Breaker = s.breakers.GetOrCreate("telegram", resilience.WebhookBreaker())
	err = resilience.Execute(ctx, "telegram-send-document", policy, func(ctx context.Context) error {
		return s.bot.SendDocument(ctx, chatId, doc.FileName, doc.Content)
	})
	if err != nil {
		return err
	}

	s.notification.NotifyInvoiceGenerated(ctx, sess.UserId, inv.InvoiceNumber, inv.TotalPence)
	return nil
}

// handleGenerateRetry re-drives a parked invoice generation. The
// session may have moved on (cancelled, restarted); a stale entry is
// retired without side effects.
func (s *conversationService) handleGenerateRetry(ctx context.Context, payload map[string]interface{}) error {
	userId, _ := payload["user_id"].(string)
	chatId, _ := payload["chat_id"].(string)
	sessionId, _ := payload["session_id"].(string)
	if userId == "" || chatId == "" {
		return &resilience.LogicError{Reason: "generate_invoice payload missing user_id/chat_id"}
	}

	token, err := s.lock.Acquire(ctx, userId)
	if err != nil {
		return err
	}
	sess, isNew, loadErr := s.loadSession(ctx, userId, chatId)
	if err := s.lock.Release(context.WithoutCancel(ctx), userId, token); err != nil {
		log.Printf("[WARN] Failed to release session lock for user %s: %v", userId, err)
	}
	if loadErr != nil {
		return loadErr
	}
	if isNew || sess.Id.String() != sessionId || sess.CurrentState != workflow.StateGeneratingOutput {
		log.Printf("[INFO] Stale generation entry for session %s (state %s); retiring", sessionId, sess.CurrentState)
		return nil
	}

	// Render outside the lock; sess is the worker's own snapshot. The
	// result re-enters through applyEvent, which revalidates.
	if err := s.renderAndDeliver(ctx, sess, chatId); err != nil {
		return err
	}
	return s.applyEvent(ctx, userId, chatId, sess.Id, workflow.RenderedEvent{})
}

func (s *conversationService) handleSendRetry(ctx context.Context, payload map[string]interface{}) error {
	chatId, _ := payload["chat_id"].(string)
	text, _ := payload["text"].(string)
	if chatId == "" || text == "" {
		return &resilience.LogicError{Reason: "send_message payload missing chat_id/text"}
	}
	return s.bot.SendMessage(ctx, chatId, text)
}

func (s *conversationService) RunExpirySweep(ctx context.Context) error {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	log.Printf("[INFO] Session expiry sweep started (idle timeout %s)", sessionIdleTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

func (s *conversationService) sweepExpired(ctx context.Context) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	stale, err := uow.SessionRepository().FindAll(ctx,
		specification.ActiveStates{States: activeStates()},
		specification.LastActivityBefore{Cutoff: time.Now().Add(-sessionIdleTimeout)},
	)
	if err != nil {
		log.Printf("[ERROR] Expiry sweep scan failed: %v", err)
		return
	}

	for _, sess := range stale {
		lastState := sess.CurrentState
		sess.CurrentState = workflow.StateCancelled
		sess.Pending = nil
		if err := s.persist(ctx, sess, false); err != nil {
			// Lost a race with live traffic for this user; skip.
			continue
		}
		log.Printf("[INFO] Session %s expired after inactivity (was %s)", sess.Id, lastState)
		s.notification.NotifySessionExpired(ctx, sess.UserId, lastState)
		if err := s.bot.SendMessage(ctx, sess.ChatId, constant.MsgSessionExpired); err != nil {
			log.Printf("[WARN] Failed to notify user %s of expiry: %v", sess.UserId, err)
		}
	}
}

func eventFromMessage(msg *dto.Message) (workflow.Event, *dto.FileRef) {
	if msg.Document != nil {
		return workflow.DocumentEvent{
			FileId:   msg.Document.FileId,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     msg.Document.FileSize,
		}, msg.Document
	}
	if len(msg.Photo) > 0 {
		// Telegram sends photo sizes smallest first; take the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		return workflow.DocumentEvent{
			FileId:   photo.FileId,
			MimeType: "image/jpeg",
			Size:     photo.FileSize,
		}, &photo
	}

	text := msg.Text
	if len(text) > 1 && text[0] == '/' {
		name := text[1:]
		if i := strings.IndexByte(name, ' '); i >= 0 {
			name = name[:i]
		}
		return workflow.CommandEvent{Name: name}, nil
	}
	return workflow.TextEvent{Text: text}, nil
}

func extractionEvent(result *extract.Result) workflow.ExtractionEvent {
	fields := make(map[string]workflow.ExtractedField, len(result.Fields))
	for name, f := range result.Fields {
		fields[name] = workflow.ExtractedField{Value: f.Value, Confidence: f.Confidence}
	}
	items := make([]workflow.ExtractedItem, 0, len(result.Items))
	for _, it := range result.Items {
		items = append(items, workflow.ExtractedItem{
			Description: it.Description,
			AmountPence: it.AmountPence,
			Confidence:  it.Confidence,
		})
	}
	return workflow.ExtractionEvent{
		Fields:      fields,
		Items:       items,
		Strategy:    result.Strategy,
		Degradation: result.Degradation,
	}
}

func isUnsupported(err error) bool {
	var depErr *resilience.DependencyError
	if errors.As(err, &depErr) {
		return depErr.Kind == resilience.KindUnsupported
	}
	return false
}
