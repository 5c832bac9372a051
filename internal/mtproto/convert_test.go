package mtproto

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gotd/td/tg"

	"github.com/edgard/jobsift/internal/ingest"
)

func TestMarkedID(t *testing.T) {
	tests := []struct {
		name string
		peer tg.PeerClass
		want int64
	}{
		{"user", &tg.PeerUser{UserID: 42}, 42},
		{"chat", &tg.PeerChat{ChatID: 4567}, -4567},
		{"channel", &tg.PeerChannel{ChannelID: 1234567890}, -1001234567890},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markedID(tt.peer); got != tt.want {
				t.Errorf("markedID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToMessage(t *testing.T) {
	date := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := &tg.Message{
		ID:      77,
		PeerID:  &tg.PeerChannel{ChannelID: 1234567890},
		Message: "Hiring",
		Date:    int(date.Unix()),
	}
	msg.SetFromID(&tg.PeerUser{UserID: 9})

	got, ok := toMessage(msg)
	if !ok {
		t.Fatal("toMessage() = false")
	}
	want := ingest.Message{ID: 77, ConversationID: -1001234567890, SenderID: 9, Text: "Hiring", Date: date}
	if got != want {
		t.Errorf("toMessage() = %+v, want %+v", got, want)
	}

	post := &tg.Message{ID: 1, PeerID: &tg.PeerChannel{ChannelID: 5}, Date: int(date.Unix())}
	got, _ = toMessage(post)
	if got.SenderID != 0 || got.Text != "" {
		t.Errorf("channel post = %+v, want anonymous sender and empty text", got)
	}

	if _, ok := toMessage(&tg.MessageService{ID: 2}); ok {
		t.Error("service message converted")
	}
	if _, ok := toMessage(&tg.MessageEmpty{ID: 3}); ok {
		t.Error("empty message converted")
	}
}

func TestToEventLabels(t *testing.T) {
	e := tg.Entities{
		Channels: map[int64]*tg.Channel{1: {ID: 1, Title: "Jobs", Username: "jobs"}, 2: {ID: 2, Username: "nameless"}},
		Chats:    map[int64]*tg.Chat{3: {ID: 3, Title: "Team"}},
		Users:    map[int64]*tg.User{4: {ID: 4, FirstName: "Ann", LastName: "Lee", Username: "ann"}},
	}
	tests := []struct {
		name string
		peer tg.PeerClass
		want string
	}{
		{"channel title", &tg.PeerChannel{ChannelID: 1}, "Jobs"},
		{"channel username", &tg.PeerChannel{ChannelID: 2}, "@nameless"},
		{"chat title", &tg.PeerChat{ChatID: 3}, "Team"},
		{"user name", &tg.PeerUser{UserID: 4}, "Ann Lee"},
		{"unknown", &tg.PeerChannel{ChannelID: 99}, "-1000000000099"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := toEvent(&tg.Message{ID: 1, PeerID: tt.peer, Date: 1}, e)
			if !ok {
				t.Fatal("toEvent() = false")
			}
			if got := ev.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversationsFromPage(t *testing.T) {
	page := toDialogPage(&tg.MessagesDialogs{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 10}, ReadInboxMaxID: 500},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 11}},
			&tg.Dialog{Peer: &tg.PeerChat{ChatID: 12}},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 13}},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 14}},
		},
		Chats: []tg.ChatClass{
			&tg.Channel{ID: 10, AccessHash: 111, Title: "Frontend Jobs", Username: "fejobs", Broadcast: true},
			&tg.Channel{ID: 11, AccessHash: 222, Title: "Chatter", Megagroup: true},
			&tg.Chat{ID: 12, Title: "Group"},
		},
	})
	if !page.complete {
		t.Error("full dialogs response should be complete")
	}

	convs, peers := conversationsFromPage(page)
	want := []ingest.Conversation{
		{ID: -1000000000010, Title: "Frontend Jobs", Username: "fejobs", Kind: ingest.KindChannel, ReadInboxMaxID: 500},
		{ID: -1000000000011, Title: "Chatter", Kind: ingest.KindMegagroup},
		{ID: -12, Title: "Group", Kind: ingest.KindGroup},
		{ID: 13, Kind: ingest.KindUser},
	}
	if len(convs) != len(want) {
		t.Fatalf("got %d conversations, want %d: %+v", len(convs), len(want), convs)
	}
	for i := range want {
		if convs[i] != want[i] {
			t.Errorf("convs[%d] = %+v, want %+v", i, convs[i], want[i])
		}
	}

	p, ok := peers[-1000000000010].(*tg.InputPeerChannel)
	if !ok || p.ChannelID != 10 || p.AccessHash != 111 {
		t.Errorf("channel input peer = %#v", peers[-1000000000010])
	}
}

func TestNextDialogOffset(t *testing.T) {
	page := toDialogPage(&tg.MessagesDialogsSlice{
		Count: 250,
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 10}, TopMessage: 900},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 20}, TopMessage: 300},
		},
		Messages: []tg.MessageClass{
			&tg.Message{ID: 900, PeerID: &tg.PeerChannel{ChannelID: 10}, Date: 2000},
			&tg.Message{ID: 300, PeerID: &tg.PeerChannel{ChannelID: 20}, Date: 1000},
		},
		Chats: []tg.ChatClass{
			&tg.Channel{ID: 10, AccessHash: 1, Broadcast: true},
			&tg.Channel{ID: 20, AccessHash: 2, Broadcast: true},
		},
	})
	_, peers := conversationsFromPage(page)

	req, ok := nextDialogOffset(page, peers)
	if !ok {
		t.Fatal("nextDialogOffset() = false")
	}
	if req.OffsetID != 300 || req.OffsetDate != 1000 || req.Limit != pageSize {
		t.Errorf("request = %+v", req)
	}
	if p, ok := req.OffsetPeer.(*tg.InputPeerChannel); !ok || p.ChannelID != 20 {
		t.Errorf("offset peer = %#v", req.OffsetPeer)
	}
}

func TestHistoryRequiresConnection(t *testing.T) {
	c := &Client{peers: map[int64]tg.InputPeerClass{}}
	for _, err := range c.History(context.Background(), ingest.Conversation{ID: -1001}, 0) {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	}
	for _, err := range c.ArchivedConversations(context.Background()) {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	}
}

func TestPushBlocksUntilConsumedOrCancelled(t *testing.T) {
	events := make(chan ingest.Event, 1)
	c := &Client{events: events, log: slog.Default()}
	msg := &tg.Message{ID: 5, PeerID: &tg.PeerChannel{ChannelID: 1}, Date: 1}

	if err := c.push(context.Background(), msg, tg.Entities{}); err != nil {
		t.Fatal(err)
	}
	if ev := <-events; ev.Message.ID != 5 {
		t.Errorf("event = %+v", ev)
	}

	events <- ingest.Event{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.push(ctx, msg, tg.Entities{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("push on full queue = %v, want deadline exceeded", err)
	}
}

func TestSessionPathAndMask(t *testing.T) {
	if got := sessionPath("tg_assistant_session"); got != "tg_assistant_session.session" {
		t.Errorf("sessionPath() = %q", got)
	}
	if got := sessionPath("data/me.session"); got != "data/me.session" {
		t.Errorf("sessionPath() = %q", got)
	}
	if got := maskPhone("+15551234567"); got != "********4567" {
		t.Errorf("maskPhone() = %q", got)
	}
}
