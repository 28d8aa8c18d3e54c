package habitbot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
)

const envPrefix = "HABITBOT_"

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig reads the TOML file at path on top of DefaultConfig, then applies
// .env and HABITBOT_* environment overrides. A missing file is only an error
// when the path was given explicitly.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", slog.String("type", "sys"), slog.Any("error", err))
	}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err = toml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath:
		slog.Warn("Config file not found, using defaults",
			slog.String("type", "sys"),
			slog.String("path", path))
	default:
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

const DefaultConfigPath = "config.toml"

type Config struct {
	Log           LogConfig            `toml:"log"`
	Bot           BotConfig            `toml:"bot"`
	DB            database.DBConfig    `toml:"db"`
	Progress      ProgressConfig       `toml:"progress"`
	Cache         CacheConfig          `toml:"cache"`
	Redis         RedisConfig          `toml:"redis"`
	Scheduler     SchedulerConfig      `toml:"scheduler"`
	Storage       StorageConfig        `toml:"storage"`
	Events        EventsConfig         `toml:"events"`
	API           APIConfig            `toml:"api"`
	Badges        []progress.BadgeDef  `toml:"badges"`
	DefaultHabits []services.HabitSeed `toml:"default_habits"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
	Enabled   bool           `toml:"enabled"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	AddSource bool       `toml:"add_source"`
}

type ProgressConfig struct {
	Timezone        string   `toml:"timezone"`
	LevelBase       int64    `toml:"level_base"`
	LevelGrowth     float64  `toml:"level_growth"`
	MaxLevel        int      `toml:"max_level"`
	BonusCap        int64    `toml:"bonus_cap"`
	StreakGapPolicy string   `toml:"streak_gap_policy"`
	TxTimeout       Duration `toml:"tx_timeout"`
	ActionRetention Duration `toml:"action_retention"`
	DailyGoal       int      `toml:"daily_goal"`
}

type CacheConfig struct {
	Backend string   `toml:"backend"`
	TTL     Duration `toml:"ttl"`
	Size    int      `toml:"size"`
}

type RedisConfig struct {
	URL    string `toml:"url"`
	Prefix string `toml:"prefix"`
}

type SchedulerConfig struct {
	StreakResetAt  string   `toml:"streak_reset_at"`
	GCInterval     Duration `toml:"gc_interval"`
	HealthInterval Duration `toml:"health_interval"`
	BackupInterval Duration `toml:"backup_interval"`
}

type StorageConfig struct {
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Prefix   string `toml:"prefix"`
}

// Configured reports whether backups can be uploaded.
func (s StorageConfig) Configured() bool {
	return s.Bucket != "" && s.Key != "" && s.Secret != ""
}

type EventsConfig struct {
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

type APIConfig struct {
	Enabled    bool     `toml:"enabled"`
	Address    string   `toml:"address"`
	JWTSecret  string   `toml:"jwt_secret"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow Duration `toml:"rate_window"`
}

// Duration decodes TOML strings such as "5m" or "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: slog.LevelInfo},
		Bot: BotConfig{Enabled: true},
		DB: database.DBConfig{
			Driver:   database.DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "habitbot",
			PoolSize: 10,
			Path:     "habitbot.db",
		},
		Progress: ProgressConfig{
			Timezone:        "UTC",
			LevelBase:       config.DefaultLevelBase,
			LevelGrowth:     config.DefaultLevelGrowth,
			MaxLevel:        config.DefaultMaxLevel,
			BonusCap:        config.DefaultBonusCap,
			StreakGapPolicy: string(progress.GapReset),
			TxTimeout:       Duration{config.DefaultTxTimeout},
			ActionRetention: Duration{config.DefaultActionRetention},
			DailyGoal:       config.DefaultDailyGoal,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     Duration{config.CacheExpiration},
			Size:    config.CacheSize,
		},
		Redis: RedisConfig{Prefix: "habitbot"},
		Scheduler: SchedulerConfig{
			StreakResetAt:  config.DefaultStreakResetAt,
			GCInterval:     Duration{config.DefaultGCInterval},
			HealthInterval: Duration{config.DefaultHealthInterval},
			BackupInterval: Duration{config.DefaultBackupInterval},
		},
		Storage: StorageConfig{Region: "us-east-1", Prefix: "backups/"},
		Events:  EventsConfig{Exchange: "habitbot.events"},
		API: APIConfig{
			Address:    config.DefaultAPIAddress,
			RateLimit:  config.UserRateLimit,
			RateWindow: Duration{config.RateLimitWindow},
		},
		Badges:        progress.DefaultBadges(),
		DefaultHabits: defaultHabitSeeds(),
	}
}

func defaultHabitSeeds() []services.HabitSeed {
	return []services.HabitSeed{
		{Name: "Reading", Description: "Read for at least 20 minutes", XPReward: 12, StreakBonus: 4},
		{Name: "Exercise", Description: "At least 30 minutes of physical activity", XPReward: 15, StreakBonus: 5},
		{Name: "Meditation", Description: "Meditate for 10 to 15 minutes", XPReward: 10, StreakBonus: 3},
		{Name: "Cold Shower", Description: "Finish the day with a cold shower", XPReward: 20, StreakBonus: 8},
	}
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("TOKEN", &c.Bot.Token)
	str("DB_DRIVER", &c.DB.Driver)
	str("DB_HOST", &c.DB.Host)
	str("DB_USER", &c.DB.User)
	str("DB_PASSWORD", &c.DB.Password)
	str("DB_NAME", &c.DB.Database)
	str("DB_PATH", &c.DB.Path)
	str("REDIS_URL", &c.Redis.URL)
	str("AMQP_URL", &c.Events.AMQPURL)
	str("STORAGE_KEY", &c.Storage.Key)
	str("STORAGE_SECRET", &c.Storage.Secret)
	str("STORAGE_BUCKET", &c.Storage.Bucket)
	str("JWT_SECRET", &c.API.JWTSecret)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Bot.Enabled && c.Bot.Token == "" {
		errs = append(errs, errors.New("bot.token is required when the bot is enabled"))
	}
	switch c.DB.Driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("db.driver must be %q or %q", database.DriverPostgres, database.DriverSQLite))
	}
	if _, err := time.LoadLocation(c.Progress.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("progress.timezone: %w", err))
	}
	if c.Progress.LevelBase <= 0 || c.Progress.LevelGrowth < 1 || c.Progress.MaxLevel < 2 {
		errs = append(errs, errors.New("progress level curve must have base > 0, growth >= 1 and max_level >= 2"))
	}
	if c.Progress.BonusCap < 0 {
		errs = append(errs, errors.New("progress.bonus_cap must not be negative"))
	}
	if _, err := progress.ParseGapPolicy(c.Progress.StreakGapPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Progress.DailyGoal <= 0 {
		errs = append(errs, errors.New("progress.daily_goal must be positive"))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}
	if _, err := ParseClock(c.Scheduler.StreakResetAt); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.streak_reset_at: %w", err))
	}
	if c.API.Enabled && c.API.JWTSecret == "" {
		errs = append(errs, errors.New("api.jwt_secret is required when the api is enabled"))
	}
	if err := progress.ValidateBadges(c.Badges); err != nil {
		errs = append(errs, err)
	}
	for _, seed := range c.DefaultHabits {
		if seed.XPReward < config.MinHabitXP || seed.XPReward > config.MaxHabitXP {
			errs = append(errs, fmt.Errorf("default habit %q: xp_reward out of range", seed.Name))
		}
	}
	return errors.Join(errs...)
}

// Location returns the time zone used to decide calendar days.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Progress.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ProgressOptions converts the [progress] section into engine options.
func (c *Config) ProgressOptions() progress.Options {
	policy, _ := progress.ParseGapPolicy(c.Progress.StreakGapPolicy)
	resetAt, _ := ParseClock(c.Scheduler.StreakResetAt)
	return progress.Options{
		Levels:          progress.NewLevelCalculator(c.Progress.LevelBase, c.Progress.LevelGrowth, c.Progress.MaxLevel),
		Streaks:         progress.StreakTracker{Policy: policy},
		Badges:          progress.NewBadgeEvaluator(c.Badges),
		BonusCap:        c.Progress.BonusCap,
		TxTimeout:       c.Progress.TxTimeout.Duration,
		ActionRetention: c.Progress.ActionRetention.Duration,
		CacheTTL:        c.Cache.TTL.Duration,
		StreakResetAt:   resetAt,
		Clock:           progress.NewSystemClock(c.Location()),
	}
}

// ParseClock parses an HH:MM wall clock time.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
