package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/api"
	"github.com/ellavondegurechaff/habitbot/habitbot/commands"
	"github.com/ellavondegurechaff/habitbot/habitbot/config"
)

var syncCommands bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Discord bot, the HTTP API and the scheduled jobs",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(c *cobra.Command) {
	c.Flags().BoolVar(&syncCommands, "sync-commands", false, "Whether to sync commands to discord")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if !cfg.Bot.Enabled && !cfg.API.Enabled {
		return errors.New("nothing to serve: enable [bot] or [api]")
	}

	slog.Info("Starting HabitBot",
		slog.String("type", "sys"),
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	b, err := newBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.DB.Close()
	defer b.Close()

	if err = b.StartScheduler(); err != nil {
		return err
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.New(api.Options{
			Engine:  b.Engine,
			Habits:  b.Habits,
			Limiter: b.Limiter,
			DB:      b.DB,
			Secret:  []byte(cfg.API.JWTSecret),
			Version: version,
		})
		go func() {
			slog.Info("HTTP API listening", slog.String("type", "sys"), slog.String("address", cfg.API.Address))
			if err := server.Listen(cfg.API.Address); err != nil {
				slog.Error("HTTP API stopped", slog.String("type", "sys"), slog.Any("error", err))
			}
		}()
		defer func() {
			if err := server.Shutdown(config.ShutdownTimeout); err != nil {
				slog.Warn("HTTP API shutdown", slog.String("type", "sys"), slog.Any("error", err))
			}
		}()
	}

	if cfg.Bot.Enabled {
		if err = startDiscord(b); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.Client.Close(ctx)
		}()
	}

	slog.Info("HabitBot is running. Press CTRL-C to exit.", slog.String("type", "sys"))
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...", slog.String("type", "sys"))
	return nil
}

func startDiscord(b *habitbot.Bot) error {
	h := handler.New()
	slow := b.Stack.WithTimeout(config.ProfileRenderTimeout)

	h.Command("/habits", b.Stack.Command("habits", commands.HabitsHandler(b)))
	h.Component("/complete/{owner}/{habit_id}", b.Stack.Component("complete", commands.CompleteComponentHandler(b)))
	h.Command("/done", b.Stack.Command("done", commands.DoneHandler(b)))
	h.Autocomplete("/done", commands.HabitAutocomplete(b, true))

	h.Route("/habit", func(r handler.Router) {
		r.Command("/add", b.Stack.Command("habit add", commands.HabitAddHandler(b)))
		r.Command("/rename", b.Stack.Command("habit rename", commands.HabitRenameHandler(b)))
		r.Command("/xp", b.Stack.Command("habit xp", commands.HabitXPHandler(b)))
		r.Command("/toggle", b.Stack.Command("habit toggle", commands.HabitToggleHandler(b)))
		r.Command("/goal", b.Stack.Command("habit goal", commands.HabitGoalHandler(b)))
		r.Autocomplete("/rename", commands.HabitAutocomplete(b, false))
		r.Autocomplete("/xp", commands.HabitAutocomplete(b, false))
		r.Autocomplete("/toggle", commands.HabitAutocomplete(b, false))
	})

	h.Command("/stats", b.Stack.Command("stats", commands.StatsHandler(b)))
	h.Command("/progress", b.Stack.Command("progress", commands.ProgressHandler(b)))
	h.Command("/badges", b.Stack.Command("badges", commands.BadgesHandler(b)))
	h.Command("/profile", slow.Command("profile", commands.ProfileHandler(b)))
	h.Command("/help", b.Stack.Command("help", commands.HelpHandler))
	h.Command("/version", b.Stack.Command("version", commands.VersionHandler(b)))

	if err := b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"))
		return err
	}

	if syncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", b.Cfg.Bot.DevGuilds))
		if err := handler.SyncCommands(b.Client, commands.Commands, b.Cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	return nil
}
