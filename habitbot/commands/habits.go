package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

var Habits = discord.SlashCommandCreate{
	Name:        "habits",
	Description: "Show today's habits and mark them done",
}

var Done = discord.SlashCommandCreate{
	Name:        "done",
	Description: "Mark a habit as done for today",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "habit",
			Description:  "The habit you completed",
			Required:     true,
			Autocomplete: true,
		},
	},
}

// ActionID derives the idempotency key of a Discord interaction. Discord
// redelivers an interaction with the same id, so a retry maps to the same key.
func ActionID(interactionID fmt.Stringer) string {
	return "discord:" + interactionID.String()
}

func HabitsHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		daily, err := b.Engine.GetDailyProgress(ctx, user.ID)
		if err != nil {
			return err
		}

		ownerID := e.User().ID.String()
		return e.CreateMessage(discord.MessageCreate{
			Embeds:     []discord.Embed{boardEmbed(e.User().Username, daily)},
			Components: boardComponents(ownerID, daily),
		})
	}
}

// CompleteComponentHandler handles the board buttons: /complete/{owner}/{habit_id}.
func CompleteComponentHandler(b *habitbot.Bot) handlers.ComponentFunc {
	return func(ctx context.Context, e *handler.ComponentEvent) error {
		if e.Vars["owner"] != e.User().ID.String() {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Description: "⚠️ This board belongs to someone else. Open your own with `/habits`.",
					Color:       config.WarningColor,
				}},
				Flags: discord.MessageFlagEphemeral,
			})
		}
		habitID, err := strconv.ParseInt(e.Vars["habit_id"], 10, 64)
		if err != nil {
			return &progress.ValidationError{Field: "habit", Reason: "malformed button"}
		}

		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		result, err := b.Engine.Complete(ctx, user.ID, habitID, ActionID(e.ID()))
		if err != nil {
			return err
		}

		resultEmbeds := []discord.Embed{resultEmbed(result, b.Engine.Levels(), uint64(e.ID()))}

		// The completion already committed; a failed board refresh only costs a stale view.
		if daily, derr := b.Engine.GetDailyProgress(ctx, user.ID); derr == nil {
			embeds := []discord.Embed{boardEmbed(e.User().Username, daily)}
			components := boardComponents(e.User().ID.String(), daily)
			if uerr := e.UpdateMessage(discord.MessageUpdate{Embeds: &embeds, Components: &components}); uerr == nil {
				if _, ferr := e.CreateFollowupMessage(discord.MessageCreate{Embeds: resultEmbeds}); ferr != nil {
					slog.Warn("Failed to send completion follow-up",
						slog.String("type", "component"),
						slog.Any("error", ferr))
				}
				return nil
			}
		}

		if err := e.CreateMessage(discord.MessageCreate{Embeds: resultEmbeds}); err != nil {
			slog.Warn("Failed to send completion result",
				slog.String("type", "component"),
				slog.Any("error", err))
		}
		return nil
	}
}

func DoneHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		habitID, err := resolveHabit(ctx, b, user.ID, e.SlashCommandInteractionData().String("habit"))
		if err != nil {
			return err
		}
		result, err := b.Engine.Complete(ctx, user.ID, habitID, ActionID(e.ID()))
		if err != nil {
			return err
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{resultEmbed(result, b.Engine.Levels(), uint64(e.ID()))},
		})
	}
}

// resolveHabit accepts either an autocomplete value (the habit id) or a typed name.
func resolveHabit(ctx context.Context, b *habitbot.Bot, userID int64, value string) (int64, error) {
	value = strings.TrimSpace(value)
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		if _, err := b.Habits.GetHabit(ctx, userID, id); err != nil {
			return 0, err
		}
		return id, nil
	}
	matches, err := b.Habits.SearchHabits(ctx, userID, value, false, 1)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 || value == "" {
		return 0, &progress.NotFoundError{Entity: "habit", ID: value}
	}
	return matches[0].ID, nil
}

// HabitAutocomplete suggests the user's habits for any focused "habit" option.
// Inactive habits are offered only when activeOnly is false.
func HabitAutocomplete(b *habitbot.Bot, activeOnly bool) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "habit" {
			return e.AutocompleteResult(nil)
		}

		query := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err == nil {
				query = s
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.AutocompleteTimeout)
		defer cancel()

		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			slog.Error("Failed to resolve user for autocomplete",
				slog.String("type", "autocomplete"),
				slog.Any("error", err))
			return e.AutocompleteResult(nil)
		}
		habits, err := b.Habits.SearchHabits(ctx, user.ID, query, activeOnly, 25)
		if err != nil {
			slog.Error("Failed to search habits",
				slog.String("type", "autocomplete"),
				slog.String("query", query),
				slog.Any("error", err))
			return e.AutocompleteResult(nil)
		}

		choices := make([]discord.AutocompleteChoice, 0, len(habits))
		for _, h := range habits {
			name := h.Name
			if !h.Active {
				name += " (paused)"
			}
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  name,
				Value: strconv.FormatInt(h.ID, 10),
			})
		}
		return e.AutocompleteResult(choices)
	}
}

// updateError replaces a deferred response with the classified error.
func updateError(e *handler.CommandEvent, err error) error {
	if uerr := utils.EH.UpdateWithError(e, err); uerr != nil {
		slog.Debug("Could not update deferred response",
			slog.String("type", "cmd"),
			slog.Any("error", uerr))
	}
	return nil
}
