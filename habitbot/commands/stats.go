package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/habitbot/habitbot"
	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
)

var Stats = discord.SlashCommandCreate{
	Name:        "stats",
	Description: "Show your level, XP, streaks and badges",
}

var Progress = discord.SlashCommandCreate{
	Name:        "progress",
	Description: "Show what you have done today",
}

var Badges = discord.SlashCommandCreate{
	Name:        "badges",
	Description: "Browse all badges and the ones you earned",
}

var Profile = discord.SlashCommandCreate{
	Name:        "profile",
	Description: "Render your profile card",
}

func StatsHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		stats, err := b.Engine.GetStats(ctx, user.ID)
		if err != nil {
			return err
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{statsEmbed(e.User().Username, stats)},
		})
	}
}

func ProgressHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		daily, err := b.Engine.GetDailyProgress(ctx, user.ID)
		if err != nil {
			return err
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{progressEmbed(e.User().Username, daily, uint64(e.ID()))},
		})
	}
}

func BadgesHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return err
		}
		stats, err := b.Engine.GetStats(ctx, user.ID)
		if err != nil {
			return err
		}

		lines := badgeLines(b.Engine.Badges().Definitions(), stats.Badges)
		if len(lines) == 0 {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{Description: "No badges are configured.", Color: config.InfoColor}},
			})
		}
		totalPages := (len(lines) + config.BadgesPerPage - 1) / config.BadgesPerPage
		title := fmt.Sprintf("🏅 Badges · %d/%d earned", len(stats.Badges), len(lines))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * config.BadgesPerPage
				end := min(start+config.BadgesPerPage, len(lines))
				embed.
					SetTitle(title).
					SetDescription(strings.Join(lines[start:end], "\n\n")).
					SetColor(config.RareBadgeColor).
					SetFooter(fmt.Sprintf("Page %d/%d", page+1, totalPages), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

// ProfileHandler renders the profile card in a headless browser, which can
// take longer than a normal interaction; register it on a stack with a
// longer budget.
func ProfileHandler(b *habitbot.Bot) handlers.CommandFunc {
	return func(ctx context.Context, e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(false); err != nil {
			return fmt.Errorf("failed to defer response: %w", err)
		}

		user, err := b.ResolveUser(ctx, e.User())
		if err != nil {
			return updateError(e, err)
		}
		stats, err := b.Engine.GetStats(ctx, user.ID)
		if err != nil {
			return updateError(e, err)
		}
		daily, err := b.Engine.GetDailyProgress(ctx, user.ID)
		if err != nil {
			return updateError(e, err)
		}

		image, err := b.ProfileImages.GenerateProfileImage(ctx, services.BuildProfileData(e.User().Username, stats, daily))
		if err != nil {
			return updateError(e, err)
		}

		content := fmt.Sprintf("🎯 **%s's Profile**", e.User().Username)
		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Content: &content,
			Files: []*discord.File{{
				Name:        fmt.Sprintf("profile_%s.png", e.User().ID),
				Description: fmt.Sprintf("%s's profile card", e.User().Username),
				Reader:      bytes.NewReader(image),
			}},
		})
		return err
	}
}
