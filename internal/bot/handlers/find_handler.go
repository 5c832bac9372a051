package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewFindHandler returns a handler for the /find command.
func NewFindHandler(deps HandlerDeps) bot.HandlerFunc {
	return findHandler{deps}.Handle
}

// findHandler acknowledges at once and delivers the digest when the
// background cycle finishes.
type findHandler struct {
	deps HandlerDeps
}

func (h findHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "find")

	if update.Message == nil {
		log.WarnContext(ctx, "Find handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	sender := newSender(b, h.deps)
	log.InfoContext(ctx, "Handling /find command", "chat_id", chatID)

	// The digest must not overtake the acknowledgement.
	acked := make(chan struct{})
	defer close(acked)
	deliver := func(ctx context.Context, text string) error {
		<-acked
		return sender.Send(ctx, chatID, text)
	}

	if !h.deps.Runner.Trigger(ctx, deliver) {
		log.InfoContext(ctx, "Classification cycle already running", "chat_id", chatID)
		if err := sender.Send(ctx, chatID, h.deps.Config.Messages.Busy); err != nil {
			log.ErrorContext(ctx, "Failed to send busy message", "error", err, "chat_id", chatID)
		}
		return
	}

	if err := sender.Send(ctx, chatID, h.deps.Config.Messages.Searching); err != nil {
		log.ErrorContext(ctx, "Failed to send search acknowledgement", "error", err, "chat_id", chatID)
	}
}
