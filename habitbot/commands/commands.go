package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
)

var Commands = []discord.ApplicationCommandCreate{
	Habits,
	Done,
	Habit,
	Stats,
	Progress,
	Badges,
	Profile,
	Help,
	Version,
}

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the running version",
}

var Help = discord.SlashCommandCreate{
	Name:        "help",
	Description: "📖 List all commands",
}

func VersionHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(_ context.Context, e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Version: %s\nCommit: %s", b.Version, b.Commit),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}

func HelpHandler(_ context.Context, e *handler.CommandEvent) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{helpEmbed(Commands)},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func helpEmbed(cmds []discord.ApplicationCommandCreate) discord.Embed {
	var sb strings.Builder
	for _, c := range cmds {
		slash, ok := c.(discord.SlashCommandCreate)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "`/%s` %s\n", slash.Name, slash.Description)
		for _, opt := range slash.Options {
			if sub, ok := opt.(discord.ApplicationCommandOptionSubCommand); ok {
				fmt.Fprintf(&sb, "> `/%s %s` %s\n", slash.Name, sub.Name, sub.Description)
			}
		}
	}
	return discord.NewEmbedBuilder().
		SetTitle("📖 HabitBot commands").
		SetDescription(sb.String()).
		SetColor(config.InfoColor).
		SetFooter("Complete habits every day to grow your streak and level", "").
		Build()
}
