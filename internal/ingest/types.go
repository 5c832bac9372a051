// Package ingest moves chat messages into the store: the backfill scanner
// recovers archived channel history and the live ingestor persists pushed
// updates. Both write through the same dedup insert.
package ingest

import (
	"context"
	"iter"
	"strconv"
	"time"

	"github.com/edgard/jobsift/internal/database"
)

// Kind classifies a conversation by its peer type.
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindGroup
	KindMegagroup
	KindChannel // broadcast channel
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindGroup:
		return "group"
	case KindMegagroup:
		return "megagroup"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Conversation is a dialog as listed by the transport.
type Conversation struct {
	// ID uses the marked form: channels carry the -100 prefix, groups are negative.
	ID       int64
	Title    string
	Username string
	Kind     Kind
	// ReadInboxMaxID is the last message the account has read; 0 when unknown.
	ReadInboxMaxID int64
}

// Message is a single chat message as delivered by the transport.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Text           string
	Date           time.Time
}

// Archive is the read side of the chat transport used by the backfill scan.
type Archive interface {
	// ArchivedConversations yields the conversations in the archive folder.
	ArchivedConversations(ctx context.Context) iter.Seq2[Conversation, error]
	// History yields messages with ID greater than minID, newest first.
	History(ctx context.Context, conv Conversation, minID int64) iter.Seq2[Message, error]
}

// Inserter is the store contract shared by both ingestion paths.
type Inserter interface {
	InsertIfAbsent(ctx context.Context, m *database.Message) (bool, error)
}

// Event is a message pushed by the transport together with what is known
// about its conversation.
type Event struct {
	Message  Message
	Title    string
	Username string
}

// Label returns a human-readable name for the event's conversation: the
// title, then @username, then the raw identifier.
func (e Event) Label() string {
	if e.Title != "" {
		return e.Title
	}
	if e.Username != "" {
		return "@" + e.Username
	}
	return strconv.FormatInt(e.Message.ConversationID, 10)
}

func toRecord(m Message) *database.Message {
	return &database.Message{
		ID:        m.ID,
		ChatID:    m.ConversationID,
		Sender:    m.SenderID,
		Text:      m.Text,
		Timestamp: m.Date.UTC(),
	}
}
