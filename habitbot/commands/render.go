package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

// completeButtonID encodes the board owner so nobody completes habits from
// someone else's board.
func completeButtonID(ownerID string, habitID int64) string {
	return fmt.Sprintf("/complete/%s/%d", ownerID, habitID)
}

func boardEmbed(username string, daily *progress.DailyProgress) discord.Embed {
	var sb strings.Builder
	if len(daily.Habits) == 0 {
		sb.WriteString("You have no active habits. Add one with `/habit add`.")
	}
	for _, h := range daily.Habits {
		mark := "⬜"
		if h.Done {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s **%s** · %d XP", mark, h.Name, h.XPReward)
		if h.CurrentStreak > 0 {
			fmt.Fprintf(&sb, " · 🔥 %d", h.CurrentStreak)
		}
		sb.WriteByte('\n')
	}

	color := config.EmbedDefaultColor
	if daily.GoalReached() {
		color = config.SuccessColor
	}
	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("📋 %s's habits for %s", username, daily.Day)).
		SetDescription(sb.String()).
		AddField("Today", fmt.Sprintf("%s %d/%d", utils.ProgressBar(int64(daily.Completed), int64(daily.Total), config.ProgressBarWidth), daily.Completed, daily.Total), true).
		AddField("Goal", fmt.Sprintf("%d/%d", min(daily.Completed, daily.Goal), daily.Goal), true).
		SetColor(color).
		SetFooter("Press a button to mark a habit done", "").
		Build()
}

// boardComponents renders one button per habit, done habits disabled.
func boardComponents(ownerID string, daily *progress.DailyProgress) []discord.ContainerComponent {
	var (
		rows    []discord.ContainerComponent
		buttons []discord.InteractiveComponent
	)
	for i, h := range daily.Habits {
		if i == config.MaxHabitButtons {
			break
		}
		label := h.Name
		if len([]rune(label)) > 70 {
			label = string([]rune(label)[:70])
		}
		btn := discord.NewSuccessButton(label, completeButtonID(ownerID, h.HabitID))
		if h.Done {
			btn = discord.NewSecondaryButton("✅ "+label, completeButtonID(ownerID, h.HabitID)).WithDisabled(true)
		}
		buttons = append(buttons, btn)
		if len(buttons) == config.MaxButtonsPerRow {
			rows = append(rows, discord.NewActionRow(buttons...))
			buttons = nil
		}
	}
	if len(buttons) > 0 {
		rows = append(rows, discord.NewActionRow(buttons...))
	}
	return rows
}

func resultEmbed(r *progress.Result, levels *progress.LevelCalculator, seed uint64) discord.Embed {
	kind := utils.MotivationCompleted
	switch {
	case r.LevelUp:
		kind = utils.MotivationLevelUp
	case len(r.Badges) > 0:
		kind = utils.MotivationBadge
	case r.CurrentStreak > 0 && r.CurrentStreak%7 == 0:
		kind = utils.MotivationStreak
	}

	xp := fmt.Sprintf("+%d XP", r.XPEarned)
	if r.BonusXP > 0 {
		xp += fmt.Sprintf(" (+%d badge bonus)", r.BonusXP)
	}

	lp := levels.Progress(r.TotalXP)
	eb := discord.NewEmbedBuilder().
		SetTitle("✅ "+r.HabitName).
		SetDescription(utils.Motivation(kind, seed)).
		AddField("XP", xp, true).
		AddField("Habit streak", fmt.Sprintf("🔥 %d", r.CurrentStreak), true).
		AddField("Daily streak", fmt.Sprintf("📅 %d", r.UserStreak), true).
		AddField(fmt.Sprintf("Level %d", lp.Level), levelLine(lp), false).
		SetColor(config.SuccessColor)

	if r.LevelUp {
		eb.SetColor(config.LevelUpColor).
			AddField("Level up!", fmt.Sprintf("%d → %d", r.PreviousLevel, r.NewLevel), false)
	}
	if len(r.Badges) > 0 {
		lines := make([]string, 0, len(r.Badges))
		for _, b := range r.Badges {
			lines = append(lines, fmt.Sprintf("%s **%s** (+%d XP)", b.Icon, b.Name, b.XPBonus))
		}
		eb.AddField("New badges", strings.Join(lines, "\n"), false)
	}
	return eb.Build()
}

func levelLine(lp progress.LevelProgress) string {
	if lp.Needed == 0 {
		return "Max level reached 🏆"
	}
	return fmt.Sprintf("%s %s/%s XP",
		utils.ProgressBar(lp.Into, lp.Needed, config.ProgressBarWidth),
		utils.FormatNumber(lp.Into), utils.FormatNumber(lp.Needed))
}

func statsEmbed(username string, s *progress.Stats) discord.Embed {
	badges := "None yet"
	if len(s.Badges) > 0 {
		icons := make([]string, 0, len(s.Badges))
		for _, b := range s.Badges {
			icons = append(icons, b.Icon)
		}
		badges = strings.Join(icons, " ")
	}
	last := s.LastActiveOn
	if last == "" {
		last = "never"
	}
	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("📊 %s's stats", username)).
		AddField(fmt.Sprintf("Level %d", s.Level.Level), levelLine(s.Level), false).
		AddField("Total XP", utils.FormatNumber(s.TotalXP), true).
		AddField("Completions", strconv.Itoa(s.TotalCompletions), true).
		AddField("Active habits", strconv.Itoa(s.ActiveHabits), true).
		AddField("Current streak", fmt.Sprintf("🔥 %d", s.CurrentStreak), true).
		AddField("Longest streak", fmt.Sprintf("🏆 %d", s.LongestStreak), true).
		AddField("Last active", last, true).
		AddField(fmt.Sprintf("Badges (%d)", len(s.Badges)), badges, false).
		SetColor(config.InfoColor).
		Build()
}

func progressEmbed(username string, d *progress.DailyProgress, seed uint64) discord.Embed {
	var sb strings.Builder
	for _, h := range d.Habits {
		if h.Done {
			fmt.Fprintf(&sb, "✅ %s · +%d XP\n", h.Name, h.XPEarned)
		} else {
			fmt.Fprintf(&sb, "⬜ %s\n", h.Name)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("No active habits.")
	}

	footer := utils.Motivation(utils.MotivationEncourage, seed)
	color := config.WarningColor
	if d.GoalReached() {
		footer = "Daily goal reached 🎉"
		color = config.SuccessColor
	}
	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("📅 %s · %s", username, d.Day)).
		SetDescription(sb.String()).
		AddField("Completed", fmt.Sprintf("%s %d/%d (%d%%)",
			utils.ProgressBar(int64(d.Completed), int64(d.Total), config.ProgressBarWidth),
			d.Completed, d.Total, utils.Percent(int64(d.Completed), int64(d.Total))), false).
		AddField("XP today", utils.FormatNumber(d.XPToday), true).
		AddField("Daily goal", fmt.Sprintf("%d/%d", min(d.Completed, d.Goal), d.Goal), true).
		SetColor(color).
		SetFooter(footer, "").
		Build()
}

// badgeLines lists every defined badge, earned ones first.
func badgeLines(defs []progress.BadgeDef, earned []progress.EarnedBadge) []string {
	have := make(map[string]progress.EarnedBadge, len(earned))
	for _, b := range earned {
		have[b.Code] = b
	}

	var done, locked []string
	for _, d := range defs {
		line := fmt.Sprintf("%s **%s** · %s %d", d.Icon, d.Name, metricLabel(d.Metric), d.Threshold)
		if d.Rare {
			line += " · rare"
		}
		if b, ok := have[d.Code]; ok {
			done = append(done, line+fmt.Sprintf("\n> earned %s", b.AwardedAt.Format("2006-01-02")))
			continue
		}
		locked = append(locked, "🔒 "+line)
	}
	return append(done, locked...)
}

func metricLabel(m progress.Metric) string {
	switch m {
	case progress.MetricTotalCompletions:
		return "completions"
	case progress.MetricUserStreak:
		return "day streak"
	case progress.MetricLongestStreak:
		return "longest streak"
	case progress.MetricHabitStreak, progress.MetricMinHabitStreak:
		return "habit streak"
	case progress.MetricLevel:
		return "level"
	case progress.MetricTotalXP:
		return "total XP"
	case progress.MetricAllDoneToday:
		return "all habits in a day"
	default:
		return string(m)
	}
}
