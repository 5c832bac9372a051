package ingest

import (
	"context"
	"fmt"
	"log/slog"
)

// LiveIngestor persists messages pushed by the transport.
type LiveIngestor struct {
	store  Inserter
	logger *slog.Logger
}

// NewLiveIngestor creates a live ingestor writing to store.
func NewLiveIngestor(store Inserter, logger *slog.Logger) *LiveIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveIngestor{store: store, logger: logger.With("component", "live_ingest")}
}

// Ingest stores one pushed message.
func (l *LiveIngestor) Ingest(ctx context.Context, ev Event) error {
	inserted, err := l.store.InsertIfAbsent(ctx, toRecord(ev.Message))
	if err != nil {
		return fmt.Errorf("store message %d from %s: %w", ev.Message.ID, ev.Label(), err)
	}
	l.logger.DebugContext(ctx, "Received message",
		"chat", ev.Label(),
		"chat_id", ev.Message.ConversationID,
		"message_id", ev.Message.ID,
		"new", inserted)
	return nil
}

// Consume drains events in arrival order until ctx is done or events is
// closed. A failed insert is logged and does not stop the consumer. When ctx
// is done, events already buffered are stored before returning; writes use a
// context detached from ctx's cancellation so a shutdown never interrupts one.
func (l *LiveIngestor) Consume(ctx context.Context, events <-chan Event) error {
	l.logger.InfoContext(ctx, "Live ingestion started")
	storeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			n := l.drain(storeCtx, events)
			l.logger.InfoContext(storeCtx, "Live ingestion stopped", "drained", n)
			return nil
		case ev, ok := <-events:
			if !ok {
				l.logger.InfoContext(ctx, "Live event channel closed")
				return nil
			}
			l.persist(storeCtx, ev)
		}
	}
}

// drain stores whatever is buffered in events without waiting for more.
func (l *LiveIngestor) drain(ctx context.Context, events <-chan Event) int {
	n := 0
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return n
			}
			l.persist(ctx, ev)
			n++
		default:
			return n
		}
	}
}

func (l *LiveIngestor) persist(ctx context.Context, ev Event) {
	if err := l.Ingest(ctx, ev); err != nil {
		l.logger.ErrorContext(ctx, "Failed to store live message", "error", err)
	}
}
