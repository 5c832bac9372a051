package tasks

import (
	"context"
	"errors"

	"github.com/edgard/jobsift/internal/pipeline"
)

// newClassifyTask runs a cycle and sends the digest to the admin. An empty
// backlog is not reported.
func newClassifyTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "classify")
	nothingToDo := deps.Config.Messages.NothingToDo

	return func(ctx context.Context) error {
		notify := func(ctx context.Context, text string) error {
			if text == nothingToDo || deps.Notify == nil {
				return nil
			}
			return deps.Notify(ctx, text)
		}

		err := deps.Runner.Run(ctx, notify)
		if errors.Is(err, pipeline.ErrBusy) {
			log.InfoContext(ctx, "Skipping scheduled classification, a cycle is already running")
			return nil
		}
		return err
	}
}
