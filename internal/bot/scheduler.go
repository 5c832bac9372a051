package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/jobsift/internal/bot/tasks"
	"github.com/edgard/jobsift/internal/config"
)

// Scheduler runs the enabled tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for the tasks in taskMap.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers every enabled task and starts ticking. A task whose
// schedule is rejected fails the start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	scheduled, err := s.registerJobs(ctx)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.running = true
	s.logger.InfoContext(ctx, "Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) registerJobs(ctx context.Context) (int, error) {
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.WarnContext(ctx, "No scheduler tasks configured")
		return 0, nil
	}

	names := make([]string, 0, len(s.cfg.Tasks))
	for name := range s.cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	scheduled := 0
	for _, taskName := range names {
		taskConfig := s.cfg.Tasks[taskName]
		if !taskConfig.Enabled {
			s.logger.InfoContext(ctx, "Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.WarnContext(ctx, "Scheduled task configured but not registered, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.wrap(ctx, taskName, taskFunc)),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return scheduled, fmt.Errorf("failed to schedule task %q with %q: %w", taskName, taskConfig.Schedule, err)
		}

		s.logger.InfoContext(ctx, "Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduled++
	}
	return scheduled, nil
}

// wrap runs fn with a context that outlives ctx's cancellation so a job in
// flight at shutdown finishes its current step.
func (s *Scheduler) wrap(ctx context.Context, name string, fn tasks.ScheduledTaskFunc) func() {
	base := context.WithoutCancel(ctx)
	return func() {
		s.logger.InfoContext(base, "Running scheduled task", "task_name", name)
		startTime := time.Now()
		if err := fn(base); err != nil {
			s.logger.ErrorContext(base, "Scheduled task failed", "task_name", name, "error", err)
		}
		s.logger.InfoContext(base, "Finished scheduled task",
			"task_name", name, "duration_ms", time.Since(startTime).Milliseconds())
	}
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}
	s.running = false
	return err
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	sort.Strings(names)
	return names
}
