package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/database"
	"github.com/edgard/jobsift/internal/pipeline"
)

const adminID = 42

// apiServer is a minimal Bot API endpoint recording sendMessage calls.
type apiServer struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	ChatID string
	Text   string
}

func (s *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/sendMessage") {
		var chatID, text string
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				ChatID json.Number `json:"chat_id"`
				Text   string      `json:"text"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			chatID, text = body.ChatID.String(), body.Text
		} else {
			_ = r.ParseMultipartForm(1 << 20)
			chatID, text = r.FormValue("chat_id"), r.FormValue("text")
		}
		s.mu.Lock()
		s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text})
		s.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func (s *apiServer) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Text
	}
	return out
}

func newTestBot(t *testing.T) (*tgbot.Bot, *apiServer) {
	t.Helper()
	api := &apiServer{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123456:TEST", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatal(err)
	}
	return b, api
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Bot:      config.BotConfig{AdminUserID: adminID, MaxMessageLength: 4096},
		Messages: config.DefaultMessages,
	}
}

func messageFrom(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Text: text,
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
		},
	}
}

type stubTrigger struct {
	busy    bool
	started chan pipeline.ReplyFunc
}

func (s *stubTrigger) Trigger(_ context.Context, reply pipeline.ReplyFunc) bool {
	if s.busy {
		return false
	}
	s.started <- reply
	return true
}

type stubScan struct {
	busy   bool
	report func(context.Context, int, error)
}

func (s *stubScan) Trigger(_ context.Context, report func(context.Context, int, error)) bool {
	if s.busy {
		return false
	}
	s.report = report
	return true
}

func TestAdminOnlyBlocksOthers(t *testing.T) {
	b, api := newTestBot(t)
	deps := HandlerDeps{Logger: testLogger(), Config: testConfig()}

	called := false
	h := AdminOnly(deps)(func(context.Context, *tgbot.Bot, *models.Update) { called = true })

	h(context.Background(), b, messageFrom(7, "/find"))
	if called {
		t.Error("non-admin reached the handler")
	}
	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.ErrorUnauthorized {
		t.Errorf("sent = %q", got)
	}

	h(context.Background(), b, messageFrom(adminID, "/find"))
	if !called {
		t.Error("admin was blocked")
	}
}

func TestFindHandlerAcknowledgesBeforeDigest(t *testing.T) {
	b, api := newTestBot(t)
	trigger := &stubTrigger{started: make(chan pipeline.ReplyFunc, 1)}
	deps := HandlerDeps{Logger: testLogger(), Config: testConfig(), Runner: trigger}

	// Deliver the digest from another goroutine as soon as the cycle starts.
	done := make(chan error, 1)
	go func() {
		reply := <-trigger.started
		done <- reply(context.Background(), "digest")
	}()

	NewFindHandler(deps)(context.Background(), b, messageFrom(adminID, "/find"))
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("digest was never delivered")
	}

	got := api.texts()
	if len(got) != 2 || got[0] != config.DefaultMessages.Searching || got[1] != "digest" {
		t.Errorf("sent = %q, want [searching digest]", got)
	}
}

func TestFindHandlerBusy(t *testing.T) {
	b, api := newTestBot(t)
	deps := HandlerDeps{Logger: testLogger(), Config: testConfig(), Runner: &stubTrigger{busy: true}}

	NewFindHandler(deps)(context.Background(), b, messageFrom(adminID, "/find"))
	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.Busy {
		t.Errorf("sent = %q", got)
	}
}

func TestStatsHandler(t *testing.T) {
	b, api := newTestBot(t)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 3; id++ {
		if _, err := store.InsertIfAbsent(ctx, &database.Message{ID: id, ChatID: -1001, Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.MarkProcessed(ctx, []int64{1}); err != nil {
		t.Fatal(err)
	}

	deps := HandlerDeps{Logger: testLogger(), Config: testConfig(), Store: store}
	NewStatsHandler(deps)(ctx, b, messageFrom(adminID, "/stats"))

	want := "Stored messages: 3\nUnprocessed: 2"
	if got := api.texts(); len(got) != 1 || got[0] != want {
		t.Errorf("sent = %q, want %q", got, want)
	}
}

func TestBackfillHandler(t *testing.T) {
	b, api := newTestBot(t)
	scan := &stubScan{}
	deps := HandlerDeps{Logger: testLogger(), Config: testConfig(), Scanner: scan}

	NewBackfillHandler(deps)(context.Background(), b, messageFrom(adminID, "/backfill"))
	if scan.report == nil {
		t.Fatal("scan was not triggered")
	}
	scan.report(context.Background(), 17, nil)

	got := api.texts()
	if len(got) != 2 || got[0] != config.DefaultMessages.BackfillStarted || !strings.Contains(got[1], "17") {
		t.Errorf("sent = %q", got)
	}

	busy := HandlerDeps{Logger: testLogger(), Config: testConfig(), Scanner: &stubScan{busy: true}}
	NewBackfillHandler(busy)(context.Background(), b, messageFrom(adminID, "/backfill"))
	if got := api.texts(); got[len(got)-1] != config.DefaultMessages.BackfillBusy {
		t.Errorf("last sent = %q, want busy", got[len(got)-1])
	}
}

func TestRegisterAllCommands(t *testing.T) {
	cmds := RegisterAllCommands(HandlerDeps{Logger: testLogger(), Config: testConfig()})
	for _, name := range []string{"/start", "/help", "/find", "/stats", "/backfill"} {
		h, ok := cmds[name]
		if !ok {
			t.Errorf("missing %s", name)
			continue
		}
		admin := len(h.Middleware) > 0
		wantAdmin := name != "/start" && name != "/help"
		if admin != wantAdmin {
			t.Errorf("%s admin-only = %v, want %v", name, admin, wantAdmin)
		}
	}
}
