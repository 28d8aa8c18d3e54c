package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/logger"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

// Maintenance is the engine side of the scheduled jobs.
type Maintenance interface {
	DailyStreakReset(ctx context.Context) (int, int64, error)
	PurgeProcessedActions(ctx context.Context) (int64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Janitor interface {
	Cleanup() int
}

type SchedulerOptions struct {
	// StreakResetAt is the offset past local midnight of the daily reset.
	StreakResetAt  time.Duration
	Location       *time.Location
	GCInterval     time.Duration
	HealthInterval time.Duration
	BackupInterval time.Duration
}

// Scheduler runs the periodic jobs on a BackgroundProcessManager.
type Scheduler struct {
	bpm     *utils.BackgroundProcessManager
	engine  Maintenance
	db      Pinger
	janitor Janitor
	backup  *BackupService
	opts    SchedulerOptions
}

// NewScheduler wires the jobs. janitor and backup may be nil.
func NewScheduler(bpm *utils.BackgroundProcessManager, engine Maintenance, db Pinger, janitor Janitor, backup *BackupService, opts SchedulerOptions) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = config.DefaultGCInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = config.DefaultHealthInterval
	}
	if opts.BackupInterval <= 0 {
		opts.BackupInterval = config.DefaultBackupInterval
	}
	return &Scheduler{bpm: bpm, engine: engine, db: db, janitor: janitor, backup: backup, opts: opts}
}

func (s *Scheduler) Start() {
	logger.LogSystem("Scheduler started",
		slog.String("streak_reset_at", s.opts.StreakResetAt.String()),
		slog.Duration("gc_interval", s.opts.GCInterval))
	s.bpm.StartDaily("streak-reset", "Daily streak reset", s.opts.StreakResetAt, s.opts.Location, s.ResetStreaks)
	s.bpm.StartInterval("action-gc", "Processed action cleanup", s.opts.GCInterval, s.PurgeActions)
	s.bpm.StartInterval("health", "Database health check", s.opts.HealthInterval, s.CheckHealth)
	if s.janitor != nil {
		s.bpm.StartInterval("cache-janitor", "Progress cache cleanup", config.CacheJanitorInterval, func(context.Context) {
			s.janitor.Cleanup()
		})
	}
	if s.backup != nil {
		s.bpm.StartInterval("backup", "Storage backup", s.opts.BackupInterval, s.Backup)
	}
}

func (s *Scheduler) ResetStreaks(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, config.BatchQueryTimeout)
	defer cancel()
	if _, _, err := s.engine.DailyStreakReset(ctx); err != nil {
		logger.LogError("Daily streak reset failed", err)
	}
}

func (s *Scheduler) PurgeActions(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, config.BatchQueryTimeout)
	defer cancel()
	n, err := s.engine.PurgeProcessedActions(ctx)
	if err != nil {
		logger.LogError("Processed action cleanup failed", err)
		return
	}
	if n > 0 {
		logger.LogSystem("Processed actions purged", slog.Int64("count", n))
	}
}

func (s *Scheduler) CheckHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, config.NetworkDialTimeout)
	defer cancel()
	start := time.Now()
	if err := s.db.Ping(ctx); err != nil {
		slog.Error("Database health check failed",
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}
	slog.Debug("Database healthy",
		slog.String("type", "db"),
		slog.Duration("took", time.Since(start)))
}

func (s *Scheduler) Backup(ctx context.Context) {
	if _, err := s.backup.Run(ctx); err != nil {
		logger.LogError("Backup failed", err)
	}
}
