// Package bot orchestrates the jobsift components: the Bot API listener, the
// MTProto session, live ingestion, the startup backfill and the scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/ingest"
)

// Listener receives Bot API updates until ctx is done; *tgbot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Session is the MTProto user session.
type Session interface {
	Run(ctx context.Context) error
	Ready() <-chan struct{}
}

// Backfiller scans archived channels.
type Backfiller interface {
	Scan(ctx context.Context) (int, error)
	Wait()
}

// Consumer persists live messages.
type Consumer interface {
	Consume(ctx context.Context, events <-chan ingest.Event) error
}

// Waiter is implemented by components with background work to drain.
type Waiter interface {
	Wait()
}

// Components groups what the orchestrator starts.
type Components struct {
	Listener  Listener
	Session   Session
	Scanner   Backfiller
	Live      Consumer
	Events    <-chan ingest.Event
	Runner    Waiter
	Scheduler *Scheduler
}

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger *slog.Logger
	cfg    *config.Config
	c      Components
}

// NewBot creates the orchestrator.
func NewBot(logger *slog.Logger, cfg *config.Config, c Components) *Bot {
	return &Bot{
		logger: logger.With("component", "bot_orchestrator"),
		cfg:    cfg,
		c:      c,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Cycles and scans started by commands are drained before it
// returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "Starting bot orchestrator")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.c.Listener.Start(gCtx)
		if gCtx.Err() == nil {
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		err := b.c.Session.Run(gCtx)
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("telegram session: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return b.c.Live.Consume(gCtx, b.c.Events)
	})

	g.Go(func() error {
		select {
		case <-b.c.Session.Ready():
		case <-gCtx.Done():
			return nil
		}
		b.startupBackfill(gCtx)

		if b.c.Scheduler == nil {
			return nil
		}
		if err := b.c.Scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		if err := b.c.Scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()

	b.c.Scanner.Wait()
	if b.c.Runner != nil {
		b.c.Runner.Wait()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}
	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}

// startupBackfill runs one scan once the session is ready. Its failure is
// logged and does not stop the service.
func (b *Bot) startupBackfill(ctx context.Context) {
	if !b.cfg.Backfill.OnStartup {
		return
	}
	n, err := b.c.Scanner.Scan(ctx)
	switch {
	case errors.Is(err, ingest.ErrScanInProgress):
		b.logger.InfoContext(ctx, "Startup backfill skipped, a scan is already running")
	case err != nil:
		b.logger.ErrorContext(ctx, "Startup backfill failed", "collected", n, "error", err)
	default:
		b.logger.InfoContext(ctx, "Startup backfill finished", "collected", n)
	}
}
