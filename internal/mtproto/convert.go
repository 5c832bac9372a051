package mtproto

import (
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/edgard/jobsift/internal/ingest"
)

// channelIDOffset turns a bare channel id into its marked -100xxxxxxxxxx form.
const channelIDOffset = 1_000_000_000_000

// markedID returns the bot-API style id of a peer: users are positive, basic
// groups negative and channels carry the -100 prefix.
func markedID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + p.ChannelID)
	default:
		return 0
	}
}

// channelKind distinguishes broadcast channels from megagroups.
func channelKind(ch *tg.Channel) ingest.Kind {
	if ch.Broadcast {
		return ingest.KindChannel
	}
	return ingest.KindMegagroup
}

func userTitle(u *tg.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// toMessage converts a regular message. Service and empty messages report
// false.
func toMessage(m tg.MessageClass) (ingest.Message, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return ingest.Message{}, false
	}

	var sender int64
	if from, ok := msg.GetFromID(); ok {
		if _, isUser := from.(*tg.PeerUser); isUser {
			sender = markedID(from)
		}
	}

	return ingest.Message{
		ID:             int64(msg.ID),
		ConversationID: markedID(msg.PeerID),
		SenderID:       sender,
		Text:           msg.Message,
		Date:           time.Unix(int64(msg.Date), 0).UTC(),
	}, true
}

// entityLabel returns the title and username known for peer in e.
func entityLabel(peer tg.PeerClass, chats map[int64]*tg.Chat, channels map[int64]*tg.Channel, users map[int64]*tg.User) (title, username string) {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		if ch, ok := channels[p.ChannelID]; ok {
			return ch.Title, ch.Username
		}
	case *tg.PeerChat:
		if c, ok := chats[p.ChatID]; ok {
			return c.Title, ""
		}
	case *tg.PeerUser:
		if u, ok := users[p.UserID]; ok {
			return userTitle(u), u.Username
		}
	}
	return "", ""
}

// toEvent builds a live event from a pushed message and the update entities.
func toEvent(m tg.MessageClass, e tg.Entities) (ingest.Event, bool) {
	msg, ok := toMessage(m)
	if !ok {
		return ingest.Event{}, false
	}
	title, username := entityLabel(m.(*tg.Message).PeerID, e.Chats, e.Channels, e.Users)
	return ingest.Event{Message: msg, Title: title, Username: username}, true
}
