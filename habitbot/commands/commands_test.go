package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

func dailyWith(n, done int) *progress.DailyProgress {
	d := &progress.DailyProgress{Day: "2024-05-10", Goal: 3, Total: n, Completed: done}
	for i := 0; i < n; i++ {
		d.Habits = append(d.Habits, progress.HabitProgress{
			HabitID:  int64(i + 1),
			Name:     "Habit " + string(rune('A'+i)),
			XPReward: 10,
			Done:     i < done,
		})
	}
	return d
}

func TestActionID(t *testing.T) {
	assert.Equal(t, "discord:1234", ActionID(snowflake.ID(1234)))
}

func TestBoardComponents(t *testing.T) {
	tests := []struct {
		name     string
		habits   int
		wantRows []int
	}{
		{name: "no habits", habits: 0, wantRows: nil},
		{name: "one row", habits: 3, wantRows: []int{3}},
		{name: "exactly full row", habits: 5, wantRows: []int{5}},
		{name: "spills over", habits: 7, wantRows: []int{5, 2}},
		{name: "capped at twenty", habits: 23, wantRows: []int{5, 5, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := boardComponents("42", dailyWith(tt.habits, 0))
			var got []int
			for _, r := range rows {
				got = append(got, len(r.(discord.ActionRowComponent).Components()))
			}
			assert.Equal(t, tt.wantRows, got)
		})
	}
}

func TestBoardComponents_DoneHabitsDisabled(t *testing.T) {
	rows := boardComponents("42", dailyWith(2, 1))
	require.Len(t, rows, 1)
	buttons := rows[0].(discord.ActionRowComponent).Components()

	done := buttons[0].(discord.ButtonComponent)
	assert.True(t, done.Disabled)
	assert.Equal(t, "/complete/42/1", done.CustomID)

	open := buttons[1].(discord.ButtonComponent)
	assert.False(t, open.Disabled)
	assert.Equal(t, "/complete/42/2", open.CustomID)
}

func TestResultEmbed(t *testing.T) {
	levels := progress.NewLevelCalculator(100, 1.2, 100)

	plain := resultEmbed(&progress.Result{HabitName: "Reading", XPEarned: 12, TotalXP: 12, NewLevel: 1, PreviousLevel: 1, CurrentStreak: 1, UserStreak: 1}, levels, 0)
	assert.Equal(t, "✅ Reading", plain.Title)
	assert.Equal(t, "+12 XP", plain.Fields[0].Value)
	assert.Len(t, plain.Fields, 4)

	leveled := resultEmbed(&progress.Result{
		HabitName:     "Exercise",
		XPEarned:      15,
		BonusXP:       50,
		TotalXP:       105,
		PreviousLevel: 1,
		NewLevel:      2,
		LevelUp:       true,
		Badges:        []progress.BadgeDef{{Code: "first_habit", Name: "First Step", Icon: "🎯", XPBonus: 50}},
	}, levels, 0)
	assert.Equal(t, "+15 XP (+50 badge bonus)", leveled.Fields[0].Value)

	var names []string
	for _, f := range leveled.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Level up!")
	assert.Contains(t, names, "New badges")
	assert.Contains(t, leveled.Fields[len(leveled.Fields)-1].Value, "First Step")
}

func TestLevelLine(t *testing.T) {
	assert.Equal(t, "Max level reached 🏆", levelLine(progress.LevelProgress{Level: 100}))
	assert.Contains(t, levelLine(progress.LevelProgress{Level: 2, Into: 50, Needed: 120}), "50/120 XP")
}

func TestProgressEmbed(t *testing.T) {
	d := dailyWith(3, 3)
	d.Habits[0].XPEarned = 14
	e := progressEmbed("sam", d, 0)
	assert.Contains(t, e.Description, "✅ Habit A · +14 XP")
	assert.Equal(t, "Daily goal reached 🎉", e.Footer.Text)

	e = progressEmbed("sam", dailyWith(3, 1), 0)
	assert.Contains(t, e.Description, "⬜ Habit C")
	assert.NotEqual(t, "Daily goal reached 🎉", e.Footer.Text)
}

func TestBadgeLines(t *testing.T) {
	defs := progress.DefaultBadges()
	earned := []progress.EarnedBadge{{Code: "week_streak", AwardedAt: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}}

	lines := badgeLines(defs, earned)
	require.Len(t, lines, len(defs))
	assert.Contains(t, lines[0], "Perfect Week")
	assert.Contains(t, lines[0], "earned 2024-05-10")
	for _, l := range lines[1:] {
		assert.True(t, strings.HasPrefix(l, "🔒 "), l)
	}
}

func TestHelpEmbedListsSubcommands(t *testing.T) {
	e := helpEmbed(Commands)
	assert.Contains(t, e.Description, "`/habits`")
	assert.Contains(t, e.Description, "`/habit add`")
	assert.Contains(t, e.Description, "`/habit goal`")
}
