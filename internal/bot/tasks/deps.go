// Package tasks implements the scheduled jobs: archived channel backfill,
// the classification digest and database maintenance.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/pipeline"
)

// Maintainer runs periodic storage upkeep.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// Scanner runs one archived channel scan.
type Scanner interface {
	Scan(ctx context.Context) (int, error)
}

// CycleRunner runs one classification cycle synchronously.
type CycleRunner interface {
	Run(ctx context.Context, reply pipeline.ReplyFunc) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   Maintainer
	Scanner Scanner
	Runner  CycleRunner
	// Notify delivers the scheduled digest to the admin.
	Notify pipeline.ReplyFunc
}
