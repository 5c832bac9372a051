package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/jobsift/internal/classifier"
	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/database"
)

// ErrBusy is returned by Run when another cycle is in progress.
var ErrBusy = errors.New("classification cycle already running")

// Store is the part of the message store a cycle needs.
type Store interface {
	Marker
	FetchUnprocessed(ctx context.Context, limit int) ([]database.Message, error)
}

// Classifier turns a rendered prompt into a result.
type Classifier interface {
	Classify(ctx context.Context, prompt string) classifier.Result
}

// ReplyFunc delivers a cycle's user-facing message.
type ReplyFunc func(ctx context.Context, text string) error

// Runner executes classification cycles one at a time.
type Runner struct {
	store        Store
	classifier   Classifier
	reconciler   *Reconciler
	batchSize    int
	promptHeader string
	messages     config.MessagesConfig
	log          *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewRunner creates a runner fetching up to cfg.BatchSize messages per cycle.
func NewRunner(store Store, cls Classifier, cfg config.ClassifierConfig, messages config.MessagesConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:        store,
		classifier:   cls,
		reconciler:   NewReconciler(store, messages, log),
		batchSize:    cfg.BatchSize,
		promptHeader: cfg.PromptHeader,
		messages:     messages,
		log:          log.With("component", "runner"),
		sem:          semaphore.NewWeighted(1),
	}
}

// Run executes one cycle synchronously and returns ErrBusy if another cycle
// holds the runner.
func (r *Runner) Run(ctx context.Context, reply ReplyFunc) error {
	if !r.sem.TryAcquire(1) {
		return ErrBusy
	}
	defer r.sem.Release(1)
	return r.cycle(ctx, reply)
}

// Trigger starts a cycle in the background and reports whether it started.
// The cycle outlives ctx's cancellation; use Wait to join it.
func (r *Runner) Trigger(ctx context.Context, reply ReplyFunc) bool {
	if !r.sem.TryAcquire(1) {
		return false
	}
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		if err := r.cycle(detached, reply); err != nil {
			r.log.ErrorContext(detached, "Triggered cycle failed", "error", err)
		}
	}()
	return true
}

// Wait blocks until every triggered cycle has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) cycle(ctx context.Context, reply ReplyFunc) error {
	startTime := time.Now()
	cycleID := uuid.NewString()
	log := r.log.With("cycle_id", cycleID)

	batch, err := r.store.FetchUnprocessed(ctx, r.batchSize)
	if err != nil {
		log.ErrorContext(ctx, "Failed to fetch unprocessed messages", "error", err)
		r.send(ctx, log, reply, r.messages.ErrorGeneral)
		return fmt.Errorf("fetch unprocessed: %w", err)
	}
	if len(batch) == 0 {
		log.InfoContext(ctx, "No unprocessed messages")
		r.send(ctx, log, reply, r.messages.NothingToDo)
		return nil
	}

	log.InfoContext(ctx, "Classifying batch", "batch_size", len(batch),
		"first_id", batch[0].ID, "last_id", batch[len(batch)-1].ID)

	result := r.classifier.Classify(ctx, r.promptHeader+BuildPayload(batch))
	outcome, err := r.reconciler.With("cycle_id", cycleID).Reconcile(ctx, batch, result)
	if outcome.Reply != "" {
		r.send(ctx, log, reply, outcome.Reply)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to reconcile batch", "error", err)
		return err
	}

	log.InfoContext(ctx, "Cycle finished",
		"batch_size", len(batch),
		"resolved", outcome.Resolved,
		"marked", outcome.Marked,
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

func (r *Runner) send(ctx context.Context, log *slog.Logger, reply ReplyFunc, text string) {
	if reply == nil {
		return
	}
	if err := reply(ctx, text); err != nil {
		log.ErrorContext(ctx, "Failed to deliver cycle reply", "error", err)
	}
}
