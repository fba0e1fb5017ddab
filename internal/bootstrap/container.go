package bootstrap

import (
	"context"
	"log"
	"time"

	"invoice-collector-be/internal/config"
	"invoice-collector-be/internal/controller"
	"invoice-collector-be/internal/pkg/logger"
	"invoice-collector-be/internal/pkg/mailer"
	"invoice-collector-be/internal/repository/memory"
	"invoice-collector-be/internal/repository/unitofwork"
	"invoice-collector-be/internal/service"
	"invoice-collector-be/pkg/extract"
	"invoice-collector-be/pkg/llm"
	"invoice-collector-be/pkg/llm/factory"
	"invoice-collector-be/pkg/render"
	"invoice-collector-be/pkg/resilience"
	"invoice-collector-be/pkg/store"
	"invoice-collector-be/pkg/telegram"
	"invoice-collector-be/pkg/workflow"

	pktNats "invoice-collector-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	WebhookController controller.IWebhookController
	HealthController  controller.IHealthController

	// Background Services (Exposed for main.go to run)
	DeadLetterService   service.IDeadLetterService
	ConversationService service.IConversationService

	// Shared infra (main.go flushes the logger on shutdown)
	Logger   *logger.ZapLogger
	Breakers *resilience.BreakerRegistry
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.OperatorEmail,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.BaseURL,
		cfg.Ai.ApiKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	var backupProvider llm.LLMProvider
	if cfg.Ai.BackupProvider != "" {
		backupProvider, err = factory.NewLLMProvider(
			cfg.Ai.BackupProvider,
			cfg.Ai.BackupModel,
			cfg.Ai.BackupBaseURL,
			cfg.Ai.BackupApiKey,
		)
		if err != nil {
			log.Printf("[WARN] Failed to initialize backup LLM Provider, continuing without it: %v", err)
			backupProvider = nil
		} else {
			log.Printf("[INFO] Using backup LLM Provider: %s (%s)", cfg.Ai.BackupProvider, cfg.Ai.BackupModel)
		}
	}

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	sessionLock := store.NewSessionLock(rdb,
		time.Duration(cfg.Resilience.SessionLockTTLSeconds)*time.Second,
		time.Duration(cfg.Resilience.SessionLockMaxWaitSeconds)*time.Second,
	)
	sessionCache := store.NewSessionCache(rdb,
		time.Duration(cfg.Resilience.SessionCacheTTLMinutes)*time.Minute,
	)

	// Initialize In-Memory Session Storage (hot layer in front of Redis)
	hotCache := memory.NewSessionRepository()

	// 4. Domain Components
	breakers := resilience.NewBreakerRegistry()
	machine := workflow.NewMachine()

	docClient := extract.NewDocServiceClient(cfg.App.DocServiceURL)
	pipeline := extract.NewPipeline(docClient, llmProvider, backupProvider, breakers)

	bot := telegram.NewClient(cfg.Telegram.BotToken)

	renderers := []render.Renderer{
		render.NewHTMLRenderer(),
		render.NewTextRenderer(),
	}

	// 5. Services
	auditService := service.NewAuditService(natsSub, sysLogger)
	if natsSub != nil {
		go auditService.Start()
	}

	notificationService := service.NewNotificationService(natsPub, emailService)
	deadLetterService := service.NewDeadLetterService(uowFactory, pubSub, notificationService, cfg.Resilience.DLQMaxAttempts)
	conversationService := service.NewConversationService(
		uowFactory,
		machine,
		pipeline,
		bot,
		sessionLock,
		sessionCache,
		hotCache,
		deadLetterService,
		notificationService,
		renderers,
		breakers,
	)

	// 6. Controllers
	return &Container{
		WebhookController: controller.NewWebhookController(conversationService),
		HealthController:  controller.NewHealthController(breakers),

		DeadLetterService:   deadLetterService,
		ConversationService: conversationService,

		Logger:   sysLogger,
		Breakers: breakers,
	}
}
