package database

import (
	"fmt"
	"time"
)

// DateLayout is the storage layout of the date column. Values are always
// written in UTC so lexical order matches chronological order.
const DateLayout = "2006-01-02T15:04:05-07:00"

// Message is one ingested chat message. ID is the platform message id and
// the storage primary key.
type Message struct {
	ID        int64
	ChatID    int64
	Sender    int64
	Text      string
	Timestamp time.Time
	Processed bool
}

// messageRow mirrors the messages table.
type messageRow struct {
	ID        int64  `db:"id"`
	ChatID    int64  `db:"chat_id"`
	Sender    int64  `db:"sender"`
	Text      string `db:"text"`
	Date      string `db:"date"`
	Processed bool   `db:"processed"`
}

func newMessageRow(m *Message) messageRow {
	return messageRow{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Sender:    m.Sender,
		Text:      m.Text,
		Date:      m.Timestamp.UTC().Format(DateLayout),
		Processed: m.Processed,
	}
}

func (r messageRow) toMessage() (Message, error) {
	ts, err := parseDate(r.Date)
	if err != nil {
		return Message{}, fmt.Errorf("message %d has invalid date %q: %w", r.ID, r.Date, err)
	}
	return Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Sender:    r.Sender,
		Text:      r.Text,
		Timestamp: ts,
		Processed: r.Processed,
	}, nil
}

// parseDate accepts the storage layout and the RFC 3339 variants older
// databases may contain (fractional seconds, Z suffix).
func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(DateLayout, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
