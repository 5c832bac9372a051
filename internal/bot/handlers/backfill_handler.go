package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBackfillHandler returns a handler for the /backfill command.
func NewBackfillHandler(deps HandlerDeps) bot.HandlerFunc {
	return backfillHandler{deps}.Handle
}

type backfillHandler struct {
	deps HandlerDeps
}

func (h backfillHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backfill")

	if update.Message == nil {
		log.WarnContext(ctx, "Backfill handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	sender := newSender(b, h.deps)
	msgs := h.deps.Config.Messages
	log.InfoContext(ctx, "Handling /backfill command", "chat_id", chatID)

	acked := make(chan struct{})
	defer close(acked)
	report := func(ctx context.Context, collected int, err error) {
		<-acked
		text := fmt.Sprintf(msgs.BackfillDoneFmt, collected)
		if err != nil {
			log.ErrorContext(ctx, "Manual backfill failed", "error", err, "collected", collected)
			text = msgs.BackfillFailed
		}
		if err := sender.Send(ctx, chatID, text); err != nil {
			log.ErrorContext(ctx, "Failed to send backfill result", "error", err, "chat_id", chatID)
		}
	}

	if !h.deps.Scanner.Trigger(ctx, report) {
		if err := sender.Send(ctx, chatID, msgs.BackfillBusy); err != nil {
			log.ErrorContext(ctx, "Failed to send busy message", "error", err, "chat_id", chatID)
		}
		return
	}
	if err := sender.Send(ctx, chatID, msgs.BackfillStarted); err != nil {
		log.ErrorContext(ctx, "Failed to send backfill acknowledgement", "error", err, "chat_id", chatID)
	}
}
