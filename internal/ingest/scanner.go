package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrScanInProgress is returned when a scan is requested while one runs.
var ErrScanInProgress = errors.New("archived channel scan already running")

// Scanner collects recent messages from archived broadcast channels.
type Scanner struct {
	archive  Archive
	store    Inserter
	lookback time.Duration
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewScanner creates a scanner that keeps messages newer than lookback.
func NewScanner(archive Archive, store Inserter, lookback time.Duration, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		archive:  archive,
		store:    store,
		lookback: lookback,
		logger:   logger.With("component", "backfill"),
		now:      time.Now,
	}
}

// Scan walks every archived broadcast channel and persists messages after the
// channel's read boundary and no older than the lookback window. It returns
// the number of messages collected. A storage error or a failed listing
// aborts the scan. A channel whose history cannot be read is skipped and its
// error is joined into the result after the remaining channels are scanned.
// Overlapping calls get ErrScanInProgress.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrScanInProgress
	}
	defer s.running.Store(false)
	return s.scan(ctx)
}

// Trigger starts a scan in the background, detached from ctx's cancellation,
// and calls report with its result. It returns false if a scan is running.
func (s *Scanner) Trigger(ctx context.Context, report func(ctx context.Context, collected int, err error)) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		n, err := s.scan(detached)
		if report != nil {
			report(detached, n, err)
		}
	}()
	return true
}

// Wait blocks until every triggered scan has returned.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

func (s *Scanner) scan(ctx context.Context) (int, error) {
	startTime := time.Now()
	cutoff := s.now().UTC().Add(-s.lookback)
	s.logger.InfoContext(ctx, "Starting archived channel scan", "cutoff", cutoff.Format(time.RFC3339))

	total, inserted, scanned := 0, 0, 0
	var failed []error
	for conv, err := range s.archive.ArchivedConversations(ctx) {
		if err != nil {
			return total, fmt.Errorf("list archived conversations: %w", err)
		}
		if conv.Kind != KindChannel {
			s.logger.DebugContext(ctx, "Skipping non-channel conversation", "chat_id", conv.ID, "kind", conv.Kind)
			continue
		}
		scanned++

		collected, added, err := s.scanConversation(ctx, conv, cutoff)
		total += collected
		inserted += added
		var storeErr *storageError
		switch {
		case errors.As(err, &storeErr):
			return total, storeErr.err
		case err != nil && ctx.Err() != nil:
			return total, err
		case err != nil:
			s.logger.WarnContext(ctx, "Skipping channel after history read failure",
				"chat_id", conv.ID, "title", conv.Title, "collected", collected, "error", err)
			failed = append(failed, err)
			continue
		}
		if collected > 0 {
			s.logger.DebugContext(ctx, "Collected channel messages",
				"chat_id", conv.ID, "title", conv.Title, "collected", collected, "new", added)
		}
	}

	s.logger.InfoContext(ctx, "Archived channel scan finished",
		"channels", scanned,
		"collected", total,
		"new", inserted,
		"failed", len(failed),
		"duration_ms", time.Since(startTime).Milliseconds())
	return total, errors.Join(failed...)
}

// storageError marks a failed insert; unlike a history read failure it
// aborts the whole scan.
type storageError struct {
	err error
}

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

// scanConversation stops at the first message older than cutoff; history is
// newest first so everything after it is older too.
func (s *Scanner) scanConversation(ctx context.Context, conv Conversation, cutoff time.Time) (collected, inserted int, err error) {
	for msg, err := range s.archive.History(ctx, conv, conv.ReadInboxMaxID) {
		if err != nil {
			return collected, inserted, fmt.Errorf("read history of %d: %w", conv.ID, err)
		}
		if msg.Date.UTC().Before(cutoff) {
			break
		}
		if msg.ConversationID == 0 {
			msg.ConversationID = conv.ID
		}

		added, err := s.store.InsertIfAbsent(ctx, toRecord(msg))
		if err != nil {
			return collected, inserted, &storageError{err: fmt.Errorf("store message %d from %d: %w", msg.ID, conv.ID, err)}
		}
		collected++
		if added {
			inserted++
		}
	}
	return collected, inserted, nil
}
