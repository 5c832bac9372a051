package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/jobsift/internal/classifier"
	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/database"
)

// Marker flips the processed flag.
type Marker interface {
	MarkProcessed(ctx context.Context, ids []int64) error
}

// Outcome is what a reconciled cycle produced.
type Outcome struct {
	Reply    string
	Resolved int
	Marked   bool
}

// Reconciler maps classifier results back to the batch that produced them.
type Reconciler struct {
	store    Marker
	messages config.MessagesConfig
	log      *slog.Logger
}

// NewReconciler creates a reconciler replying with the configured messages.
func NewReconciler(store Marker, messages config.MessagesConfig, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, messages: messages, log: log.With("component", "reconciler")}
}

// With returns a copy of r whose log lines carry args.
func (r *Reconciler) With(args ...any) *Reconciler {
	c := *r
	c.log = r.log.With(args...)
	return &c
}

// Reconcile renders the reply for result. Any parsed answer, including one
// with no matches, marks the whole batch processed. Failed or unparseable
// answers leave the batch for the next cycle. A storage error is returned
// together with the rendered outcome.
func (r *Reconciler) Reconcile(ctx context.Context, batch []database.Message, result classifier.Result) (Outcome, error) {
	switch res := result.(type) {
	case classifier.TransportFailure:
		r.log.WarnContext(ctx, "Batch left unprocessed after classifier failure", "batch_size", len(batch), "error", res.Err)
		return Outcome{Reply: r.messages.ClassifierFailed}, nil

	case classifier.Unparseable:
		r.log.WarnContext(ctx, "Batch left unprocessed after unparseable answer", "batch_size", len(batch))
		return Outcome{Reply: r.messages.ClassifierUnparsable}, nil

	case classifier.Matches:
		out := Outcome{Reply: r.messages.NothingFound}
		if lines := r.digestLines(ctx, batch, res.Items); len(lines) > 0 {
			out.Reply = r.messages.DigestHeader + "\n" + strings.Join(lines, "\n")
			out.Resolved = len(lines)
		}
		if err := r.store.MarkProcessed(ctx, batchIDs(batch)); err != nil {
			return out, fmt.Errorf("mark batch processed: %w", err)
		}
		out.Marked = true
		r.log.InfoContext(ctx, "Batch reconciled", "batch_size", len(batch), "matches", len(res.Items), "resolved", out.Resolved)
		return out, nil

	default:
		return Outcome{}, fmt.Errorf("unexpected classifier result %T", result)
	}
}

// digestLines resolves matches in the order the classifier returned them;
// ids outside the batch are dropped.
func (r *Reconciler) digestLines(ctx context.Context, batch []database.Message, matches []classifier.Match) []string {
	if len(matches) == 0 {
		return nil
	}
	byID := make(map[int64]database.Message, len(batch))
	for _, m := range batch {
		byID[m.ID] = m
	}

	lines := make([]string, 0, len(matches))
	for _, match := range matches {
		m, ok := byID[match.ID]
		if !ok {
			r.log.DebugContext(ctx, "Dropping match outside the batch", "id", match.ID)
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s — %s", match.Summary, MessageLink(m.ChatID, m.ID)))
	}
	return lines
}

func batchIDs(batch []database.Message) []int64 {
	ids := make([]int64, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
	}
	return ids
}
