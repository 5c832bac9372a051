package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/jobsift/internal/ingest"
)

func newBackfillTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "backfill")

	return func(ctx context.Context) error {
		n, err := deps.Scanner.Scan(ctx)
		switch {
		case errors.Is(err, ingest.ErrScanInProgress):
			log.InfoContext(ctx, "Skipping backfill, a scan is already running")
			return nil
		case err != nil:
			return fmt.Errorf("backfill failed after %d messages: %w", n, err)
		}
		log.InfoContext(ctx, "Backfill collected messages", "collected", n)
		return nil
	}
}
