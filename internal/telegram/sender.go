package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the Bot API call used for replies; *bot.Bot satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Sender delivers plain-text replies, splitting ones longer than the limit.
type Sender struct {
	api    MessageSender
	maxLen int
	log    *slog.Logger
}

// NewSender creates a sender; maxLen is counted in characters.
func NewSender(api MessageSender, maxLen int, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{api: api, maxLen: maxLen, log: log.With("component", "sender")}
}

// Send delivers text to chatID as one or more messages without link
// previews. Parts are sent in order; the first failure stops delivery.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	parts := SplitMessage(text, s.maxLen)
	for i, part := range parts {
		_, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:             chatID,
			Text:               part,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
		})
		if err != nil {
			return fmt.Errorf("send part %d/%d to %d: %w", i+1, len(parts), chatID, err)
		}
	}
	s.log.DebugContext(ctx, "Reply sent", "chat_id", chatID, "parts", len(parts))
	return nil
}

// ReplyTo returns a reply function bound to chatID.
func (s *Sender) ReplyTo(chatID int64) func(ctx context.Context, text string) error {
	return func(ctx context.Context, text string) error {
		return s.Send(ctx, chatID, text)
	}
}

// SplitMessage breaks text into parts of at most maxLen characters, cutting
// on line boundaries and hard-splitting lines that are longer on their own.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if lineLen > maxLen {
			flush()
			runes := []rune(line)
			for len(runes) > maxLen {
				parts = append(parts, string(runes[:maxLen]))
				runes = runes[maxLen:]
			}
			line, lineLen = string(runes), len(runes)
		}

		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+lineLen > maxLen {
			flush()
			sep = 0
		}
		if sep == 1 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		curLen += sep + lineLen
	}
	flush()
	return parts
}
