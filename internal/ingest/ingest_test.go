package ingest

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/edgard/jobsift/internal/database"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	rows    map[int64]*database.Message
	order   []int64
	failOn  int64
	failErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]*database.Message)}
}

func (f *fakeStore) InsertIfAbsent(_ context.Context, m *database.Message) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil && m.ID == f.failOn {
		return false, f.failErr
	}
	if _, ok := f.rows[m.ID]; ok {
		return false, nil
	}
	f.rows[m.ID] = m
	f.order = append(f.order, m.ID)
	return true, nil
}

type fakeArchive struct {
	convs    []Conversation
	history  map[int64][]Message
	listErr  error
	minIDs   map[int64]int64
	yielded  map[int64]int
	historyE map[int64]error
}

func newFakeArchive(convs ...Conversation) *fakeArchive {
	return &fakeArchive{
		convs:    convs,
		history:  make(map[int64][]Message),
		minIDs:   make(map[int64]int64),
		yielded:  make(map[int64]int),
		historyE: make(map[int64]error),
	}
}

func (f *fakeArchive) ArchivedConversations(context.Context) iter.Seq2[Conversation, error] {
	return func(yield func(Conversation, error) bool) {
		if f.listErr != nil {
			yield(Conversation{}, f.listErr)
			return
		}
		for _, c := range f.convs {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (f *fakeArchive) History(_ context.Context, conv Conversation, minID int64) iter.Seq2[Message, error] {
	f.minIDs[conv.ID] = minID
	return func(yield func(Message, error) bool) {
		for _, m := range f.history[conv.ID] {
			if m.ID <= minID {
				continue
			}
			f.yielded[conv.ID]++
			if !yield(m, nil) {
				return
			}
		}
		if err := f.historyE[conv.ID]; err != nil {
			yield(Message{}, err)
		}
	}
}

func newTestScanner(a Archive, s Inserter) *Scanner {
	sc := NewScanner(a, s, 24*time.Hour, nil)
	sc.now = func() time.Time { return now }
	return sc
}

func channel(id int64, readMax int64) Conversation {
	return Conversation{ID: id, Title: "chan", Kind: KindChannel, ReadInboxMaxID: readMax}
}

func TestScanStopsAtCutoff(t *testing.T) {
	conv := channel(-1001, 0)
	a := newFakeArchive(conv)
	a.history[conv.ID] = []Message{
		{ID: 5, Text: "newest", Date: now.Add(-time.Hour)},
		{ID: 4, Text: "edge", Date: now.Add(-24 * time.Hour)},
		{ID: 3, Text: "too old", Date: now.Add(-25 * time.Hour)},
		// Out of order on purpose: must never be evaluated.
		{ID: 2, Text: "recent but after old", Date: now.Add(-2 * time.Hour)},
	}
	store := newFakeStore()

	n, err := newTestScanner(a, store).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("collected = %d, want 2", n)
	}
	if len(store.order) != 2 || store.order[0] != 5 || store.order[1] != 4 {
		t.Errorf("stored ids = %v, want [5 4]", store.order)
	}
	if a.yielded[conv.ID] != 3 {
		t.Errorf("history yielded %d messages, want iteration to stop after 3", a.yielded[conv.ID])
	}
	if got := store.rows[5].ChatID; got != conv.ID {
		t.Errorf("chat id = %d, want %d", got, conv.ID)
	}
}

func TestScanUsesReadBoundary(t *testing.T) {
	withBoundary := channel(-1001, 7)
	noBoundary := channel(-1002, 0)
	a := newFakeArchive(withBoundary, noBoundary)
	a.history[withBoundary.ID] = []Message{
		{ID: 9, Date: now.Add(-time.Minute)},
		{ID: 8, Date: now.Add(-2 * time.Minute)},
		{ID: 7, Date: now.Add(-3 * time.Minute)},
		{ID: 6, Date: now.Add(-4 * time.Minute)},
	}
	a.history[noBoundary.ID] = []Message{
		{ID: 102, Date: now.Add(-time.Minute)},
		{ID: 101, Date: now.Add(-2 * time.Minute)},
	}
	store := newFakeStore()

	n, err := newTestScanner(a, store).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("collected = %d, want 4", n)
	}
	if a.minIDs[withBoundary.ID] != 7 || a.minIDs[noBoundary.ID] != 0 {
		t.Errorf("min ids = %v", a.minIDs)
	}
	for _, id := range []int64{6, 7} {
		if _, ok := store.rows[id]; ok {
			t.Errorf("message %d at or below the read boundary was stored", id)
		}
	}
}

func TestScanSkipsNonChannels(t *testing.T) {
	convs := []Conversation{
		{ID: 10, Kind: KindUser},
		{ID: -20, Kind: KindGroup},
		{ID: -1003, Kind: KindMegagroup},
		channel(-1004, 0),
	}
	a := newFakeArchive(convs...)
	for _, c := range convs {
		a.history[c.ID] = []Message{{ID: c.ID*-1 + 1000, Date: now}}
	}
	store := newFakeStore()

	n, err := newTestScanner(a, store).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("collected = %d, want 1", n)
	}
	if len(a.minIDs) != 1 {
		t.Errorf("history read for %d conversations, want only the channel", len(a.minIDs))
	}
}

func TestScanEmptyAndOldConversations(t *testing.T) {
	empty := channel(-1001, 0)
	old := channel(-1002, 0)
	a := newFakeArchive(empty, old)
	a.history[old.ID] = []Message{{ID: 1, Date: now.Add(-48 * time.Hour)}}

	n, err := newTestScanner(a, newFakeStore()).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("collected = %d, want 0", n)
	}
}

func TestScanCountsDuplicates(t *testing.T) {
	conv := channel(-1001, 0)
	a := newFakeArchive(conv)
	a.history[conv.ID] = []Message{{ID: 1, Date: now}}
	store := newFakeStore()
	sc := newTestScanner(a, store)

	for i := 0; i < 2; i++ {
		n, err := sc.Scan(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("scan %d collected = %d, want 1", i+1, n)
		}
	}
	if len(store.rows) != 1 {
		t.Errorf("stored %d rows, want 1", len(store.rows))
	}
}

func TestScanErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("storage", func(t *testing.T) {
		conv := channel(-1001, 0)
		a := newFakeArchive(conv)
		a.history[conv.ID] = []Message{{ID: 3, Date: now}, {ID: 2, Date: now}, {ID: 1, Date: now}}
		store := newFakeStore()
		store.failOn, store.failErr = 2, boom

		n, err := newTestScanner(a, store).Scan(context.Background())
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		if n != 1 {
			t.Errorf("collected = %d, want 1 (failed insert not counted)", n)
		}
	})

	t.Run("listing", func(t *testing.T) {
		a := newFakeArchive()
		a.listErr = boom
		if _, err := newTestScanner(a, newFakeStore()).Scan(context.Background()); !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	})

	t.Run("history", func(t *testing.T) {
		conv := channel(-1001, 0)
		a := newFakeArchive(conv)
		a.history[conv.ID] = []Message{{ID: 1, Date: now}}
		a.historyE[conv.ID] = boom
		if _, err := newTestScanner(a, newFakeStore()).Scan(context.Background()); !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	})
}

func TestScanContinuesPastUnreadableChannel(t *testing.T) {
	boom := errors.New("CHANNEL_PRIVATE")
	banned, open := channel(-1001, 0), channel(-1002, 0)
	a := newFakeArchive(banned, open)
	a.historyE[banned.ID] = boom
	a.history[open.ID] = []Message{{ID: 20, Date: now}, {ID: 19, Date: now}}
	store := newFakeStore()

	n, err := newTestScanner(a, store).Scan(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the history failure reported", err)
	}
	if n != 2 || len(store.order) != 2 {
		t.Errorf("collected = %d, stored = %v, want both messages of the later channel", n, store.order)
	}
}

func TestEventLabel(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"title", Event{Title: "Jobs", Username: "jobs", Message: Message{ConversationID: -1001}}, "Jobs"},
		{"username", Event{Username: "jobs", Message: Message{ConversationID: -1001}}, "@jobs"},
		{"raw id", Event{Message: Message{ConversationID: -1001}}, "-1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLiveIngestorConsume(t *testing.T) {
	store := newFakeStore()
	store.failOn, store.failErr = 2, errors.New("disk full")
	li := NewLiveIngestor(store, nil)

	events := make(chan Event, 4)
	loc := time.FixedZone("UTC+3", 3*60*60)
	events <- Event{Message: Message{ID: 1, ConversationID: -1001, SenderID: 5, Text: "a", Date: now.In(loc)}}
	events <- Event{Message: Message{ID: 2, ConversationID: -1001, Date: now}}
	events <- Event{Message: Message{ID: 3, ConversationID: -1001, Date: now}}
	events <- Event{Message: Message{ID: 1, ConversationID: -1001, Text: "dup", Date: now}}
	close(events)

	if err := li.Consume(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if len(store.order) != 2 || store.order[0] != 1 || store.order[1] != 3 {
		t.Fatalf("stored ids = %v, want [1 3]", store.order)
	}
	first := store.rows[1]
	if first.Text != "a" || first.Sender != 5 || first.Processed {
		t.Errorf("first row = %+v", first)
	}
	if first.Timestamp.Location() != time.UTC || !first.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v in UTC", first.Timestamp, now)
	}
}

func TestLiveIngestorStopsOnCancel(t *testing.T) {
	li := NewLiveIngestor(newFakeStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- li.Consume(ctx, make(chan Event)) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Consume() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestLiveIngestorDrainsQueueOnCancel(t *testing.T) {
	store := newFakeStore()
	li := NewLiveIngestor(store, nil)

	events := make(chan Event, 5)
	for id := int64(1); id <= 5; id++ {
		events <- Event{Message: Message{ID: id, ConversationID: 777, Date: now}}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := li.Consume(ctx, events); err != nil {
		t.Fatal(err)
	}
	if len(store.order) != 5 {
		t.Errorf("stored %d messages, want all 5 queued before shutdown", len(store.order))
	}
	if len(events) != 0 {
		t.Errorf("%d events left in the queue", len(events))
	}
}

type blockingArchive struct {
	*fakeArchive
	release chan struct{}
}

func (b blockingArchive) ArchivedConversations(ctx context.Context) iter.Seq2[Conversation, error] {
	<-b.release
	return b.fakeArchive.ArchivedConversations(ctx)
}

func TestTriggerIsSingleFlight(t *testing.T) {
	conv := channel(-1001, 0)
	fa := newFakeArchive(conv)
	fa.history[conv.ID] = []Message{{ID: 1, Date: now}}
	a := blockingArchive{fakeArchive: fa, release: make(chan struct{})}
	sc := newTestScanner(a, newFakeStore())

	var got int
	var gotErr error
	if !sc.Trigger(context.Background(), func(_ context.Context, n int, err error) { got, gotErr = n, err }) {
		t.Fatal("first Trigger() = false")
	}
	if sc.Trigger(context.Background(), nil) {
		t.Error("second Trigger() = true while scanning")
	}
	if _, err := sc.Scan(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("Scan() = %v, want ErrScanInProgress", err)
	}

	close(a.release)
	sc.Wait()
	if got != 1 || gotErr != nil {
		t.Errorf("report = (%d, %v), want (1, nil)", got, gotErr)
	}
	if _, err := sc.Scan(context.Background()); err != nil {
		t.Errorf("Scan() after trigger finished = %v", err)
	}
}
