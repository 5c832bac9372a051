// Package pipeline runs classification cycles: it renders a batch of stored
// messages, sends it to the classifier and reconciles the answer with the
// store.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/edgard/jobsift/internal/database"
)

// channelIDOffset is the magnitude Telegram adds to channel and supergroup
// ids in their marked form (-100xxxxxxxxxx).
const channelIDOffset = 1_000_000_000_000

// MessageLink returns the t.me deep link to a message in a channel or
// supergroup.
func MessageLink(chatID, messageID int64) string {
	n := chatID
	if n < 0 {
		n = -n
	}
	if n > channelIDOffset {
		n -= channelIDOffset
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", n, messageID)
}

// BuildPayload renders each message as "<id>: <text>" followed by its link,
// separating blocks with a blank line.
func BuildPayload(batch []database.Message) string {
	var sb strings.Builder
	for i, m := range batch {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d: %s\nLink: %s", m.ID, m.Text, MessageLink(m.ChatID, m.ID))
	}
	return sb.String()
}
