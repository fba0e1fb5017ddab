package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"invoice-collector-be/internal/dto"
	"invoice-collector-be/internal/pkg/serverutils"
	"invoice-collector-be/internal/service"
	"invoice-collector-be/pkg/store"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleUpdate(ctx *fiber.Ctx) error
}

type webhookController struct {
	conversationService service.IConversationService
}

func NewWebhookController(conversationService service.IConversationService) IWebhookController {
	return &webhookController{
		conversationService: conversationService,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhook/v1")
	h.Use(serverutils.WebhookAuthMiddleware)
	h.Post("telegram", c.HandleUpdate)
}

func (c *webhookController) HandleUpdate(ctx *fiber.Ctx) error {
	var update dto.WebhookUpdate
	if err := ctx.BodyParser(&update); err != nil {
		// Malformed payloads are acknowledged so Telegram stops
		// redelivering something we can never parse.
		log.Printf("[WARN] Unparseable webhook payload: %v", err)
		return ctx.JSON(dto.WebhookResponse{Ok: true})
	}
	if err := serverutils.ValidateRequest(&update); err != nil {
		// Same treatment: an update missing required fields will never
		// become valid on redelivery.
		log.Printf("[WARN] Invalid webhook payload: %v", err)
		return ctx.JSON(dto.WebhookResponse{Ok: true})
	}

	if err := c.conversationService.HandleUpdate(ctx.Context(), &update); err != nil {
		if errors.Is(err, store.ErrLockBusy) {
			// Non-200 makes Telegram redeliver once the in-flight
			// update for this user has finished.
			return fiber.NewError(fiber.StatusConflict, "update deferred")
		}
		log.Printf("[ERROR] Webhook update %d failed: %v", update.UpdateId, err)
		return err
	}
	return ctx.JSON(dto.WebhookResponse{Ok: true})
}
