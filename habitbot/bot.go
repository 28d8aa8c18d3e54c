package habitbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
		Processes: utils.NewBackgroundProcessManager(),
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	Repos         progress.Repositories
	Cache         progress.Cache
	Engine        *progress.Engine
	Habits        *services.HabitService
	ProfileImages *services.ProfileImageService
	Backup        *services.BackupService
	Publisher     *services.AMQPPublisher
	Limiter       *handlers.RateLimiter
	Stack         *handlers.Stack
	Processes     *utils.BackgroundProcessManager
}

// Init builds the progress engine and the services around it on top of db.
// Optional integrations (Redis, AMQP, object storage) are wired only when
// configured.
func (b *Bot) Init(ctx context.Context, db *database.DB) error {
	b.DB = db
	b.Repos = progress.NewRepositories(db.BunDB())

	c, err := NewCache(ctx, b.Cfg)
	if err != nil {
		return err
	}
	b.Cache = c

	opts := b.Cfg.ProgressOptions()
	opts.Cache = b.Cache

	if b.Cfg.Events.AMQPURL != "" {
		pub, err := services.NewAMQPPublisher(b.Cfg.Events.AMQPURL, b.Cfg.Events.Exchange)
		if err != nil {
			return err
		}
		b.Publisher = pub
		opts.Publisher = pub
	}

	b.Engine = progress.NewEngine(db.BunDB(), b.Repos, opts)
	b.Habits = services.NewHabitService(b.Repos.Users, b.Repos.Habits, b.Cache, b.Cfg.DefaultHabits, b.Cfg.Progress.DailyGoal)
	b.ProfileImages = services.NewProfileImageService()
	b.Limiter = handlers.NewRateLimiter(b.Cfg.API.RateLimit, b.Cfg.API.RateWindow.Duration)
	b.Stack = handlers.NewStack(b.Limiter, config.CommandExecutionTimeout)

	if b.Cfg.Storage.Configured() {
		store, err := services.NewS3Store(ctx, services.StorageOptions{
			Endpoint: b.Cfg.Storage.Endpoint,
			Region:   b.Cfg.Storage.Region,
			Bucket:   b.Cfg.Storage.Bucket,
			Key:      b.Cfg.Storage.Key,
			Secret:   b.Cfg.Storage.Secret,
			Prefix:   b.Cfg.Storage.Prefix,
		})
		if err != nil {
			return err
		}
		b.Backup = services.NewBackupService(store, b.Cfg.Storage.Bucket, b.Cfg.Storage.Prefix,
			b.Repos.Users, b.Repos.Habits, b.Repos.Completions, b.Repos.Badges)
	}
	return nil
}

// NewCache returns the configured cache backend.
func NewCache(ctx context.Context, cfg Config) (progress.Cache, error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		return progress.NewRedisCache(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
	default:
		size := cfg.Cache.Size
		if size <= 0 {
			size = config.CacheSize
		}
		return progress.NewMemoryCache(size)
	}
}

// StartScheduler registers the periodic jobs on the process manager.
func (b *Bot) StartScheduler() error {
	resetAt, err := ParseClock(b.Cfg.Scheduler.StreakResetAt)
	if err != nil {
		return fmt.Errorf("scheduler.streak_reset_at: %w", err)
	}
	var janitor services.Janitor
	if mc, ok := b.Cache.(*progress.MemoryCache); ok {
		janitor = mc
	}
	services.NewScheduler(b.Processes, b.Engine, b.DB, janitor, b.Backup, services.SchedulerOptions{
		StreakResetAt:  resetAt,
		Location:       b.Cfg.Location(),
		GCInterval:     b.Cfg.Scheduler.GCInterval.Duration,
		HealthInterval: b.Cfg.Scheduler.HealthInterval.Duration,
		BackupInterval: b.Cfg.Scheduler.BackupInterval.Duration,
	}).Start()

	b.Processes.StartInterval("rate-limit-sweep", "Rate limiter cleanup", config.CacheJanitorInterval, func(context.Context) {
		b.Limiter.Sweep()
	})
	return nil
}

// Close releases everything Init opened except the database.
func (b *Bot) Close() {
	if err := b.Processes.Shutdown(config.ShutdownTimeout); err != nil {
		slog.Warn("Background processes did not stop in time", slog.String("type", "sys"))
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			slog.Warn("Failed to close event publisher", slog.String("type", "sys"), slog.Any("error", err))
		}
	}
	if rc, ok := b.Cache.(*progress.RedisCache); ok {
		if err := rc.Close(); err != nil {
			slog.Warn("Failed to close redis cache", slog.String("type", "sys"), slog.Any("error", err))
		}
	}
}

// ResolveUser maps a Discord user to the internal user, registering it on first use.
func (b *Bot) ResolveUser(ctx context.Context, user discord.User) (*models.User, error) {
	return b.Habits.EnsureUser(ctx, user.ID.String(), user.Username)
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("HabitBot is now ready",
		slog.String("type", "sys"),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("your streaks | /habits"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.String("type", "sys"), slog.Any("error", err))
	}
}
