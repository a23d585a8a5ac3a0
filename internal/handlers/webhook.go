package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
)

// updateTimeout bounds the handling of one inbound update, including any
// Gemini and Telegram file calls made on its behalf.
const updateTimeout = 90 * time.Second

// UpdateDispatcher handles one decoded Telegram update to completion.
type UpdateDispatcher interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// WebhookManager registers and removes the bot's webhook URL.
type WebhookManager interface {
	SetWebhook(url string) error
	RemoveWebhook() error
}

type WebhookHandler struct {
	dispatcher    UpdateDispatcher
	manager       WebhookManager
	publicBaseURL string
	logger        *slog.Logger
}

func NewWebhookHandler(
	dispatcher UpdateDispatcher,
	manager WebhookManager,
	publicBaseURL string,
	logger *slog.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		dispatcher:    dispatcher,
		manager:       manager,
		publicBaseURL: publicBaseURL,
		logger:        logger.With(slog.String("component", "webhook")),
	}
}

// HandleRegister (re)registers the webhook with Telegram. Safe to call
// repeatedly.
func (h *WebhookHandler) HandleRegister(c *fiber.Ctx) error {
	if h.publicBaseURL == "" {
		message := "PUBLIC_BASE_URL is not configured. Set it to your https URL (no trailing slash)."
		h.logger.Error(message)
		return c.Status(fiber.StatusInternalServerError).SendString(message)
	}

	webhookURL := h.publicBaseURL + "/webhook"
	if err := h.manager.RemoveWebhook(); err != nil {
		h.logger.Error("failed to remove webhook", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("Failed to set webhook: %v", err))
	}
	if err := h.manager.SetWebhook(webhookURL); err != nil {
		h.logger.Error("failed to set webhook", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("Failed to set webhook: %v", err))
	}

	h.logger.Info("webhook registered", slog.String("url", webhookURL))
	return c.SendString(fmt.Sprintf("Webhook set to %s\nBot is running.", webhookURL))
}

// HandleWebhook accepts one update envelope from Telegram. The response
// is an empty 200 on success and an empty 500 on internal failure, which
// lets Telegram redeliver the update.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		h.logger.Error("failed to decode update", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).Send(nil)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), updateTimeout)
	defer cancel()

	if err := h.dispatcher.HandleUpdate(ctx, update); err != nil {
		h.logger.Error("failed to handle update", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).Send(nil)
	}

	return c.Status(fiber.StatusOK).Send(nil)
}
