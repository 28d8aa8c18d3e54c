package config

import "time"

// UI and Display Constants
const (
	HabitsPerPage    = 10
	BadgesPerPage    = 6
	MaxButtonsPerRow = 5
	MaxHabitButtons  = 20

	// Colors
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00

	EmbedDefaultColor = 0x2B2D31
	RareBadgeColor    = 0xFFD700
	LevelUpColor      = 0x9B59B6

	ProgressBarWidth = 10
)

// Database and Performance Constants
const (
	DefaultQueryTimeout     = 30 * time.Second
	StatsQueryTimeout       = 10 * time.Second
	BatchQueryTimeout       = 30 * time.Second
	CommandExecutionTimeout = 10 * time.Second
	SlowCommandThreshold    = 2 * time.Second
	NetworkDialTimeout      = 5 * time.Second
	AutocompleteTimeout     = 2 * time.Second

	// Cache settings
	CacheExpiration      = 5 * time.Minute
	CacheSize            = 10000
	CacheJanitorInterval = 10 * time.Minute
	ProfileRenderTimeout = 30 * time.Second
)

// Progression Constants
const (
	DefaultLevelBase   = 100
	DefaultLevelGrowth = 1.2
	DefaultMaxLevel    = 100

	DefaultHabitXP     = 10
	DefaultStreakBonus = 2
	DefaultBonusCap    = 20
	DefaultDailyGoal   = 3

	MinHabitXP           = 1
	MaxHabitXP           = 100
	MaxStreakBonus       = 50
	MinHabitNameLength   = 2
	MaxHabitNameLength   = 200
	MaxActiveHabits      = 20
	MaxDescriptionLength = 500

	DefaultTxTimeout       = 5 * time.Second
	DefaultActionRetention = 60 * time.Minute
)

// Scheduler Constants
const (
	DefaultGCInterval     = 1 * time.Hour
	DefaultHealthInterval = 1 * time.Hour
	DefaultBackupInterval = 24 * time.Hour
	DefaultStreakResetAt  = "23:59"
	ShutdownTimeout       = 15 * time.Second
)

// API and Rate Limiting Constants
const (
	UserRateLimit   = 10
	RateLimitWindow = 1 * time.Minute

	RequestTimeout    = 30 * time.Second
	DefaultAPIAddress = ":8080"
	IdempotencyHeader = "Idempotency-Key"
	MaxIdempotencyKey = 128
)
