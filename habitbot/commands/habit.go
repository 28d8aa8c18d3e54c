package commands

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

func ptr(v int) *int { return &v }

func habitOption(description string) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{
		Name:         "habit",
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

var Habit = discord.SlashCommandCreate{
	Name:        "habit",
	Description: "Manage your habits",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Start tracking a new habit",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "What you want to do every day",
					Required:    true,
					MinLength:   ptr(config.MinHabitNameLength),
					MaxLength:   ptr(config.MaxHabitNameLength),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "xp",
					Description: "XP earned per completion",
					Required:    false,
					MinValue:    ptr(config.MinHabitXP),
					MaxValue:    ptr(config.MaxHabitXP),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "streak_bonus",
					Description: "Extra XP per consecutive day",
					Required:    false,
					MinValue:    ptr(0),
					MaxValue:    ptr(config.MaxStreakBonus),
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "Optional details",
					Required:    false,
					MaxLength:   ptr(config.MaxDescriptionLength),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "rename",
			Description: "Rename a habit",
			Options: []discord.ApplicationCommandOption{
				habitOption("The habit to rename"),
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "The new name",
					Required:    true,
					MinLength:   ptr(config.MinHabitNameLength),
					MaxLength:   ptr(config.MaxHabitNameLength),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "xp",
			Description: "Change the XP a habit is worth",
			Options: []discord.ApplicationCommandOption{
				habitOption("The habit to change"),
				discord.ApplicationCommandOptionInt{
					Name:        "xp",
					Description: "XP earned per completion",
					Required:    true,
					MinValue:    ptr(config.MinHabitXP),
					MaxValue:    ptr(config.MaxHabitXP),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "streak_bonus",
					Description: "Extra XP per consecutive day",
					Required:    false,
					MinValue:    ptr(0),
					MaxValue:    ptr(config.MaxStreakBonus),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "toggle",
			Description: "Pause or resume a habit",
			Options: []discord.ApplicationCommandOption{
				habitOption("The habit to pause or resume"),
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "goal",
			Description: "Set how many habits you aim to finish each day",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "count",
					Description: "Habits per day",
					Required:    true,
					MinValue:    ptr(1),
					MaxValue:    ptr(config.MaxActiveHabits),
				},
			},
		},
	},
}

func HabitAddHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}

		in := services.NewHabit{
			Name:        data.String("name"),
			Description: data.String("description"),
			XPReward:    int64(config.DefaultHabitXP),
			StreakBonus: int64(config.DefaultStreakBonus),
		}
		if xp, ok := data.OptInt("xp"); ok {
			in.XPReward = int64(xp)
		}
		if bonus, ok := data.OptInt("streak_bonus"); ok {
			in.StreakBonus = int64(bonus)
		}

		habit, err := b.Habits.AddHabit(ctx, user.ID, in)
		if err != nil {
			return err
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Now tracking **%s** for %d XP (+%d per streak day).",
			habit.Name, habit.XPReward, habit.StreakBonus))
	}
}

func HabitRenameHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		habitID, err := resolveHabit(ctx, b, user.ID, data.String("habit"))
		if err != nil {
			return err
		}
		habit, err := b.Habits.RenameHabit(ctx, user.ID, habitID, data.String("name"))
		if err != nil {
			return err
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Renamed to **%s**.", habit.Name))
	}
}

func HabitXPHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		habitID, err := resolveHabit(ctx, b, user.ID, data.String("habit"))
		if err != nil {
			return err
		}
		current, err := b.Habits.GetHabit(ctx, user.ID, habitID)
		if err != nil {
			return err
		}
		bonus := current.StreakBonus
		if v, ok := data.OptInt("streak_bonus"); ok {
			bonus = int64(v)
		}
		habit, err := b.Habits.SetReward(ctx, user.ID, habitID, int64(data.Int("xp")), bonus)
		if err != nil {
			return err
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("**%s** is now worth %d XP (+%d per streak day).",
			habit.Name, habit.XPReward, habit.StreakBonus))
	}
}

func HabitToggleHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		habitID, err := resolveHabit(ctx, b, user.ID, e.SlashCommandInteractionData().String("habit"))
		if err != nil {
			return err
		}
		habit, err := b.Habits.ToggleHabit(ctx, user.ID, habitID)
		if err != nil {
			return err
		}
		if habit.Active {
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("**%s** is active again.", habit.Name))
		}
		return utils.EH.CreateInfoEmbed(e, fmt.Sprintf("⏸️ **%s** is paused. Its history is kept.", habit.Name))
	}
}

func HabitGoalHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		goal := e.SlashCommandInteractionData().Int("count")
		if goal == user.DailyGoal {
			return utils.EH.CreateUserError(e, fmt.Sprintf("Your daily goal is already %d.", goal))
		}
		if err := b.Habits.SetDailyGoal(ctx, user, goal); err != nil {
			return err
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Daily goal set to %d habits.", goal))
	}
}
