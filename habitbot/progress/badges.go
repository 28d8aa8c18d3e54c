package progress

import (
	"errors"
	"fmt"
	"strings"
)

type Metric string

const (
	MetricTotalCompletions Metric = "total_completions"
	MetricUserStreak       Metric = "user_streak"
	MetricLongestStreak    Metric = "longest_streak"
	MetricHabitStreak      Metric = "habit_streak"
	MetricMinHabitStreak   Metric = "min_habit_streak"
	MetricLevel            Metric = "level"
	MetricTotalXP          Metric = "total_xp"
	MetricAllDoneToday     Metric = "all_done_today"
)

// BadgeDef is one declarative badge rule: awarded once the metric reaches threshold.
type BadgeDef struct {
	Code      string `toml:"code" json:"code"`
	Name      string `toml:"name" json:"name"`
	Icon      string `toml:"icon" json:"icon"`
	Rare      bool   `toml:"rare" json:"rare"`
	XPBonus   int64  `toml:"xp_bonus" json:"xp_bonus"`
	Metric    Metric `toml:"metric" json:"metric"`
	Threshold int64  `toml:"threshold" json:"threshold"`
	// Habit narrows habit_streak to the habit with this name.
	Habit string `toml:"habit" json:"habit,omitempty"`
}

func DefaultBadges() []BadgeDef {
	return []BadgeDef{
		{Code: "first_habit", Name: "First Step", Icon: "🎯", XPBonus: 50, Metric: MetricTotalCompletions, Threshold: 1},
		{Code: "week_streak", Name: "Perfect Week", Icon: "🔥", XPBonus: 100, Metric: MetricUserStreak, Threshold: 7},
		{Code: "month_streak", Name: "Consistency Master", Icon: "👑", Rare: true, XPBonus: 500, Metric: MetricUserStreak, Threshold: 30},
		{Code: "level_5", Name: "Apprentice", Icon: "⭐", XPBonus: 200, Metric: MetricLevel, Threshold: 5},
		{Code: "level_10", Name: "Veteran", Icon: "🌟", XPBonus: 500, Metric: MetricLevel, Threshold: 10},
		{Code: "level_20", Name: "Master", Icon: "💎", Rare: true, XPBonus: 1000, Metric: MetricLevel, Threshold: 20},
		{Code: "perfect_day", Name: "Perfect Day", Icon: "✨", XPBonus: 150, Metric: MetricAllDoneToday, Threshold: 1},
		{Code: "exercise_week", Name: "Athlete of the Week", Icon: "🏃", Rare: true, XPBonus: 300, Metric: MetricHabitStreak, Threshold: 7, Habit: "exercise"},
		{Code: "healthy_week", Name: "Healthy Week", Icon: "🌱", Rare: true, XPBonus: 300, Metric: MetricMinHabitStreak, Threshold: 7},
		{Code: "habit_master", Name: "Habit Master", Icon: "🏆", XPBonus: 1000, Metric: MetricTotalCompletions, Threshold: 100},
		{Code: "streak_legend", Name: "Streak Legend", Icon: "⚡", Rare: true, XPBonus: 2000, Metric: MetricLongestStreak, Threshold: 100},
	}
}

// ValidateBadges rejects duplicate codes, unknown metrics and negative values.
func ValidateBadges(defs []BadgeDef) error {
	seen := make(map[string]bool, len(defs))
	var errs []error
	for _, d := range defs {
		switch {
		case d.Code == "":
			errs = append(errs, errors.New("badge code must not be empty"))
		case seen[d.Code]:
			errs = append(errs, fmt.Errorf("badge %q defined twice", d.Code))
		}
		seen[d.Code] = true

		switch d.Metric {
		case MetricTotalCompletions, MetricUserStreak, MetricLongestStreak, MetricHabitStreak,
			MetricMinHabitStreak, MetricLevel, MetricTotalXP, MetricAllDoneToday:
		default:
			errs = append(errs, fmt.Errorf("badge %q: unknown metric %q", d.Code, d.Metric))
		}
		if d.Threshold <= 0 || d.XPBonus < 0 {
			errs = append(errs, fmt.Errorf("badge %q: threshold must be positive and xp_bonus not negative", d.Code))
		}
	}
	return errors.Join(errs...)
}

// HabitSnapshot is the part of a habit the badge rules look at.
type HabitSnapshot struct {
	ID            int64
	Name          string
	CurrentStreak int
	DoneToday     bool
}

// Snapshot is the user's state after the XP and streaks of a completion are applied.
type Snapshot struct {
	TotalXP          int64
	Level            int
	UserStreak       int
	LongestStreak    int
	TotalCompletions int64
	// Habits are the user's active habits.
	Habits         []HabitSnapshot
	CompletedHabit int64
}

type BadgeEvaluator struct {
	defs []BadgeDef
}

func NewBadgeEvaluator(defs []BadgeDef) *BadgeEvaluator {
	cp := make([]BadgeDef, len(defs))
	copy(cp, defs)
	return &BadgeEvaluator{defs: cp}
}

// Definitions returns the configured rules in evaluation order.
func (e *BadgeEvaluator) Definitions() []BadgeDef {
	out := make([]BadgeDef, len(e.defs))
	copy(out, e.defs)
	return out
}

// Evaluate returns the badges s qualifies for that are not in held, in
// definition order. It has no side effects.
func (e *BadgeEvaluator) Evaluate(s Snapshot, held map[string]bool) []BadgeDef {
	var earned []BadgeDef
	for _, d := range e.defs {
		if held[d.Code] {
			continue
		}
		if s.metric(d) >= d.Threshold {
			earned = append(earned, d)
		}
	}
	return earned
}

func (s Snapshot) metric(d BadgeDef) int64 {
	switch d.Metric {
	case MetricTotalCompletions:
		return s.TotalCompletions
	case MetricUserStreak:
		return int64(s.UserStreak)
	case MetricLongestStreak:
		return int64(s.LongestStreak)
	case MetricLevel:
		return int64(s.Level)
	case MetricTotalXP:
		return s.TotalXP
	case MetricHabitStreak:
		for _, h := range s.Habits {
			if d.Habit == "" && h.ID == s.CompletedHabit {
				return int64(h.CurrentStreak)
			}
			if d.Habit != "" && strings.EqualFold(h.Name, d.Habit) {
				return int64(h.CurrentStreak)
			}
		}
		return 0
	case MetricMinHabitStreak:
		if len(s.Habits) == 0 {
			return 0
		}
		lowest := s.Habits[0].CurrentStreak
		for _, h := range s.Habits[1:] {
			if h.CurrentStreak < lowest {
				lowest = h.CurrentStreak
			}
		}
		return int64(lowest)
	case MetricAllDoneToday:
		if len(s.Habits) == 0 {
			return 0
		}
		for _, h := range s.Habits {
			if !h.DoneToday {
				return 0
			}
		}
		return 1
	}
	return 0
}
