package mtproto

import (
	"context"
	"fmt"
	"iter"

	"github.com/gotd/td/tg"

	"github.com/edgard/jobsift/internal/ingest"
)

const pageSize = 100

// dialogPage is the part of a dialogs response the scan needs.
type dialogPage struct {
	dialogs  []tg.DialogClass
	messages []tg.MessageClass
	chats    []tg.ChatClass
	complete bool
}

func toDialogPage(res tg.MessagesDialogsClass) dialogPage {
	switch r := res.(type) {
	case *tg.MessagesDialogs:
		return dialogPage{dialogs: r.Dialogs, messages: r.Messages, chats: r.Chats, complete: true}
	case *tg.MessagesDialogsSlice:
		return dialogPage{dialogs: r.Dialogs, messages: r.Messages, chats: r.Chats, complete: len(r.Dialogs) < pageSize}
	default:
		return dialogPage{complete: true}
	}
}

// ArchivedConversations lists the dialogs in the configured folder.
func (c *Client) ArchivedConversations(ctx context.Context) iter.Seq2[ingest.Conversation, error] {
	return func(yield func(ingest.Conversation, error) bool) {
		api, err := c.rawAPI()
		if err != nil {
			yield(ingest.Conversation{}, err)
			return
		}

		req := &tg.MessagesGetDialogsRequest{OffsetPeer: &tg.InputPeerEmpty{}, Limit: pageSize}
		req.SetFolderID(c.folderID)
		seen := make(map[int64]bool)

		for {
			res, err := api.MessagesGetDialogs(ctx, req)
			if err != nil {
				yield(ingest.Conversation{}, fmt.Errorf("get dialogs: %w", err))
				return
			}
			page := toDialogPage(res)
			convs, peers := conversationsFromPage(page)

			for _, conv := range convs {
				if seen[conv.ID] {
					continue
				}
				seen[conv.ID] = true
				if p, ok := peers[conv.ID]; ok {
					c.rememberPeer(conv.ID, p)
				}
				if !yield(conv, nil) {
					return
				}
			}

			if page.complete || len(page.dialogs) == 0 {
				return
			}
			next, ok := nextDialogOffset(page, peers)
			if !ok {
				return
			}
			next.SetFolderID(c.folderID)
			req = next
		}
	}
}

// conversationsFromPage resolves each dialog against the page's chats.
func conversationsFromPage(page dialogPage) ([]ingest.Conversation, map[int64]tg.InputPeerClass) {
	channels := make(map[int64]*tg.Channel)
	chats := make(map[int64]*tg.Chat)
	for _, ch := range page.chats {
		switch v := ch.(type) {
		case *tg.Channel:
			channels[v.ID] = v
		case *tg.Chat:
			chats[v.ID] = v
		}
	}

	convs := make([]ingest.Conversation, 0, len(page.dialogs))
	peers := make(map[int64]tg.InputPeerClass)
	for _, d := range page.dialogs {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		conv := ingest.Conversation{
			ID:             markedID(dialog.Peer),
			ReadInboxMaxID: int64(dialog.ReadInboxMaxID),
		}
		switch p := dialog.Peer.(type) {
		case *tg.PeerChannel:
			ch, ok := channels[p.ChannelID]
			if !ok {
				continue
			}
			conv.Title, conv.Username, conv.Kind = ch.Title, ch.Username, channelKind(ch)
			peers[conv.ID] = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		case *tg.PeerChat:
			conv.Kind = ingest.KindGroup
			if chat, ok := chats[p.ChatID]; ok {
				conv.Title = chat.Title
			}
			peers[conv.ID] = &tg.InputPeerChat{ChatID: p.ChatID}
		case *tg.PeerUser:
			conv.Kind = ingest.KindUser
		}
		convs = append(convs, conv)
	}
	return convs, peers
}

// nextDialogOffset pages from the last dialog's top message.
func nextDialogOffset(page dialogPage, peers map[int64]tg.InputPeerClass) (*tg.MessagesGetDialogsRequest, bool) {
	for i := len(page.dialogs) - 1; i >= 0; i-- {
		dialog, ok := page.dialogs[i].(*tg.Dialog)
		if !ok {
			continue
		}
		id := markedID(dialog.Peer)
		peer, ok := peers[id]
		if !ok {
			continue
		}
		for _, m := range page.messages {
			msg, ok := m.(*tg.Message)
			if !ok || msg.ID != dialog.TopMessage || markedID(msg.PeerID) != id {
				continue
			}
			return &tg.MessagesGetDialogsRequest{
				OffsetDate: msg.Date,
				OffsetID:   msg.ID,
				OffsetPeer: peer,
				Limit:      pageSize,
			}, true
		}
	}
	return nil, false
}

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	case *tg.MessagesChannelMessages:
		return r.Messages
	default:
		return nil
	}
}

// History yields messages newer than minID, newest first, one page at a time.
// The conversation must have been listed by ArchivedConversations.
func (c *Client) History(ctx context.Context, conv ingest.Conversation, minID int64) iter.Seq2[ingest.Message, error] {
	return func(yield func(ingest.Message, error) bool) {
		api, err := c.rawAPI()
		if err != nil {
			yield(ingest.Message{}, err)
			return
		}
		peer, ok := c.inputPeer(conv.ID)
		if !ok {
			yield(ingest.Message{}, fmt.Errorf("unknown peer %d", conv.ID))
			return
		}

		offsetID := 0
		for {
			res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
				Peer:     peer,
				OffsetID: offsetID,
				MinID:    int(minID),
				Limit:    pageSize,
			})
			if err != nil {
				yield(ingest.Message{}, fmt.Errorf("get history: %w", err))
				return
			}

			raw := historyMessages(res)
			lowest := 0
			for _, m := range raw {
				if id := m.GetID(); lowest == 0 || id < lowest {
					lowest = id
				}
				msg, ok := toMessage(m)
				if !ok || msg.ID <= minID {
					continue
				}
				if msg.ConversationID == 0 {
					msg.ConversationID = conv.ID
				}
				if !yield(msg, nil) {
					return
				}
			}

			if len(raw) < pageSize || lowest <= int(minID)+1 {
				return
			}
			offsetID = lowest
		}
	}
}
