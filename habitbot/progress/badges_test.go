package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(defs []BadgeDef) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Code)
	}
	return out
}

func TestBadgeEvaluator_Evaluate(t *testing.T) {
	eval := NewBadgeEvaluator(DefaultBadges())

	tests := []struct {
		name string
		snap Snapshot
		held map[string]bool
		want []string
	}{
		{
			name: "first completion",
			snap: Snapshot{TotalCompletions: 1, Level: 1, UserStreak: 1, LongestStreak: 1,
				Habits: []HabitSnapshot{{ID: 1, Name: "reading", CurrentStreak: 1, DoneToday: true}, {ID: 2, Name: "exercise"}}},
			want: []string{"first_habit"},
		},
		{
			name: "perfect day",
			snap: Snapshot{TotalCompletions: 2, Level: 1, UserStreak: 1,
				Habits: []HabitSnapshot{{ID: 1, CurrentStreak: 1, DoneToday: true}, {ID: 2, CurrentStreak: 1, DoneToday: true}}},
			held: map[string]bool{"first_habit": true},
			want: []string{"perfect_day"},
		},
		{
			name: "no active habits is never a perfect day",
			snap: Snapshot{TotalCompletions: 5},
			held: map[string]bool{"first_habit": true},
			want: nil,
		},
		{
			name: "week streak and named habit streak",
			snap: Snapshot{TotalCompletions: 20, Level: 3, UserStreak: 7, LongestStreak: 7, CompletedHabit: 2,
				Habits: []HabitSnapshot{{ID: 1, Name: "Reading", CurrentStreak: 3}, {ID: 2, Name: "Exercise", CurrentStreak: 7, DoneToday: true}}},
			held: map[string]bool{"first_habit": true},
			want: []string{"week_streak", "exercise_week"},
		},
		{
			name: "every habit at seven days",
			snap: Snapshot{TotalCompletions: 14, Level: 3, UserStreak: 7, LongestStreak: 7,
				Habits: []HabitSnapshot{{ID: 1, Name: "a", CurrentStreak: 7, DoneToday: true}, {ID: 2, Name: "b", CurrentStreak: 8, DoneToday: true}}},
			held: map[string]bool{"first_habit": true, "week_streak": true, "perfect_day": true},
			want: []string{"healthy_week"},
		},
		{
			name: "level badges",
			snap: Snapshot{TotalCompletions: 50, Level: 10},
			held: map[string]bool{"first_habit": true},
			want: []string{"level_5", "level_10"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eval.Evaluate(tt.snap, tt.held)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestBadgeEvaluator_HeldBadgesNeverReturned(t *testing.T) {
	eval := NewBadgeEvaluator(DefaultBadges())
	snap := Snapshot{TotalCompletions: 500, Level: 25, UserStreak: 120, LongestStreak: 120,
		Habits: []HabitSnapshot{{ID: 1, Name: "exercise", CurrentStreak: 120, DoneToday: true}}}

	held := make(map[string]bool)
	first := eval.Evaluate(snap, held)
	assert.Len(t, first, len(DefaultBadges()))
	for _, d := range first {
		held[d.Code] = true
	}

	assert.Empty(t, eval.Evaluate(snap, held))
	// evaluating again does not mutate anything
	assert.Equal(t, codes(first), codes(eval.Evaluate(snap, map[string]bool{})))
}

func TestValidateBadges(t *testing.T) {
	assert.NoError(t, ValidateBadges(DefaultBadges()))

	err := ValidateBadges([]BadgeDef{
		{Code: "a", Metric: MetricLevel, Threshold: 1},
		{Code: "a", Metric: MetricLevel, Threshold: 1},
		{Code: "b", Metric: "karma", Threshold: 1},
		{Code: "c", Metric: MetricLevel, Threshold: 0},
	})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), `"a" defined twice`)
		assert.Contains(t, err.Error(), `unknown metric "karma"`)
		assert.Contains(t, err.Error(), `badge "c"`)
	}
}
