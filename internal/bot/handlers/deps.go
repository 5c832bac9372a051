package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/database"
	"github.com/edgard/jobsift/internal/pipeline"
)

// CycleTrigger starts a classification cycle in the background.
type CycleTrigger interface {
	Trigger(ctx context.Context, reply pipeline.ReplyFunc) bool
}

// ScanTrigger starts an archived channel scan in the background.
type ScanTrigger interface {
	Trigger(ctx context.Context, report func(ctx context.Context, collected int, err error)) bool
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   database.Store
	Runner  CycleTrigger
	Scanner ScanTrigger
}
