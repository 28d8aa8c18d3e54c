package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/logger"
)

var (
	configPath string
	version    = "dev"
	commit     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "habitbot",
	Short:         "Habit tracking Discord bot with streaks, levels and badges",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", habitbot.DefaultConfigPath, "path to config")
	addServeFlags(rootCmd)
}

// Execute runs the CLI. version and commit are stamped at build time.
func Execute(v, c string) {
	version, commit = v, c
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", slog.String("type", "sys"), slog.Any("error", err))
		os.Exit(1)
	}
}

// loadConfig reads the config and sets up logging. Maintenance commands pass
// serving=false so they run without a bot token or API secret.
func loadConfig(serving bool) (*habitbot.Config, error) {
	logger.Setup(slog.LevelInfo, false)

	cfg, err := habitbot.ReadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if !serving {
		cfg.Bot.Enabled = false
		cfg.API.Enabled = false
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.AddSource)
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *habitbot.Config) (*database.DB, error) {
	start := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("type", "db"),
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(start)))
		return nil, err
	}
	slog.Info("Database connected successfully",
		slog.String("type", "db"),
		slog.String("driver", cfg.DB.Driver),
		slog.Duration("took", time.Since(start)))

	if err = db.InitializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return db, nil
}

// newBot opens the database and builds the engine and services.
func newBot(ctx context.Context, cfg *habitbot.Config) (*habitbot.Bot, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b := habitbot.New(*cfg, version, commit)
	if err = b.Init(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}
