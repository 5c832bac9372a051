package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler returns a handler for the /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil {
		log.WarnContext(ctx, "Stats handler received update without message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	text, err := h.render(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count messages", "error", err)
		text = h.deps.Config.Messages.ErrorGeneral
	}
	if err := reply(ctx, b, h.deps, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}

func (h statsHandler) render(ctx context.Context) (string, error) {
	total, err := h.deps.Store.CountAll(ctx)
	if err != nil {
		return "", err
	}
	pending, err := h.deps.Store.CountUnprocessed(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.deps.Config.Messages.StatsFmt, total, pending), nil
}
