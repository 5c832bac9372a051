package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertIfAbsent stores the message unless a row with the same ID exists.
	// A duplicate is not an error; inserted reports whether a row was written.
	InsertIfAbsent(ctx context.Context, message *Message) (inserted bool, err error)

	// CountAll returns the number of stored messages, processed or not.
	CountAll(ctx context.Context) (int, error)

	// CountUnprocessed returns the number of messages still waiting for classification.
	CountUnprocessed(ctx context.Context) (int, error)

	// FetchUnprocessed returns up to limit unprocessed messages, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]Message, error)

	// MarkProcessed flags the given messages as processed. Unknown IDs are ignored.
	MarkProcessed(ctx context.Context, ids []int64) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
// Writes are serialized by mu; reads are single statements and run without it.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance with migrations applied.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertIfAbsent inserts a new message record with INSERT OR IGNORE on the id key.
func (s *sqlxStore) InsertIfAbsent(ctx context.Context, message *Message) (bool, error) {
	if message == nil {
		return false, errors.New("cannot save nil message")
	}
	if message.ID == 0 {
		return false, errors.New("message must have a non-zero id")
	}
	if message.Timestamp.IsZero() {
		return false, fmt.Errorf("message %d must have a non-zero timestamp", message.ID)
	}

	row := newMessageRow(message)
	row.Processed = false

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
        INSERT OR IGNORE INTO messages (id, chat_id, sender, text, date, processed)
        VALUES (:id, :chat_id, :sender, :text, :date, :processed);
    `

	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "message_id", message.ID, "chat_id", message.ChatID, "error", err)
		return false, fmt.Errorf("failed to save message %d (chat %d): %w", message.ID, message.ChatID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for message %d: %w", message.ID, err)
	}

	if affected == 0 {
		s.logger.DebugContext(ctx, "Message already stored, skipping", "message_id", message.ID, "chat_id", message.ChatID)
		return false, nil
	}

	s.logger.DebugContext(ctx, "Message saved successfully", "message_id", message.ID, "chat_id", message.ChatID)
	return true, nil
}

// CountAll returns the total number of stored messages.
func (s *sqlxStore) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting messages", "error", err)
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// CountUnprocessed returns the number of messages with processed = 0.
func (s *sqlxStore) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE processed = 0`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting unprocessed messages", "error", err)
		return 0, fmt.Errorf("failed to count unprocessed messages: %w", err)
	}
	return count, nil
}

// FetchUnprocessed retrieves up to limit messages that have not been through
// a classification batch, in chronological order. Rows whose date cannot be
// parsed are left out of the result and marked processed.
func (s *sqlxStore) FetchUnprocessed(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rows []messageRow
	query := `
        SELECT id, chat_id, CAST(sender AS INTEGER) AS sender, COALESCE(text, '') AS text, date, processed
        FROM messages
        WHERE processed = 0
        ORDER BY date ASC, id ASC
        LIMIT ?;
    `

	s.logger.DebugContext(ctx, "Fetching unprocessed messages", "limit", limit)
	err := s.db.SelectContext(ctx, &rows, query, limit)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching unprocessed messages", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting unprocessed messages", "error", err)
		return nil, fmt.Errorf("failed to get unprocessed messages: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	var unreadable []int64
	for _, row := range rows {
		msg, err := row.toMessage()
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping message with unreadable date", "id", row.ID, "error", err)
			unreadable = append(unreadable, row.ID)
			continue
		}
		messages = append(messages, msg)
	}

	// Rows that can never be classified are retired so they stop taking
	// batch slots on every cycle.
	if len(unreadable) > 0 {
		if err := s.MarkProcessed(ctx, unreadable); err != nil {
			s.logger.ErrorContext(ctx, "Failed to retire unreadable messages", "ids", unreadable, "error", err)
		}
	}

	s.logger.DebugContext(ctx, "Successfully fetched unprocessed messages", "count", len(messages))
	return messages, nil
}

// MarkProcessed sets processed = 1 for the given ids inside one transaction.
func (s *sqlxStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for marking messages", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query, args, err := sqlx.In(`UPDATE messages SET processed = 1 WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build query for marking messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking messages as processed", "error", err)
		return fmt.Errorf("failed to mark messages as processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count", "error", err)
	} else if int(affected) != len(ids) {
		s.logger.DebugContext(ctx, "Some messages were not found while marking processed",
			"requested", len(ids),
			"affected", affected)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Marked messages as processed successfully", "count", len(ids), "affected", affected)
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
