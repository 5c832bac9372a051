package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jobsift/internal/telegram"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil {
		log.WarnContext(ctx, "Help handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /help command", "chat_id", chatID)
	if err := reply(ctx, b, h.deps, chatID, h.deps.Config.Messages.Help); err != nil {
		log.ErrorContext(ctx, "Failed to send help message", "error", err, "chat_id", chatID)
	}
}

// reply sends text to chatID, split at the configured message length.
func reply(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, text string) error {
	return newSender(b, deps).Send(ctx, chatID, text)
}

func newSender(b *bot.Bot, deps HandlerDeps) *telegram.Sender {
	return telegram.NewSender(b, deps.Config.Bot.MaxMessageLength, deps.Logger)
}
