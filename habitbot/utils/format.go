package utils

import (
	"strconv"
	"strings"
)

func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if n < 0 {
		str = str[1:]
	}

	var result []byte
	for i := len(str) - 1; i >= 0; i-- {
		if (len(str)-i-1)%3 == 0 && i != len(str)-1 {
			result = append([]byte{','}, result...)
		}
		result = append([]byte{str[i]}, result...)
	}

	if n < 0 {
		return "-" + string(result)
	}
	return string(result)
}

// ProgressBar renders done/total as a fixed-width bar of filled and empty cells.
func ProgressBar(done, total int64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		if done > total {
			done = total
		}
		if done > 0 {
			filled = int(done * int64(width) / total)
		}
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

// Percent is done/total rounded down, 0 for an empty total.
func Percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}

type MotivationKind string

const (
	MotivationCompleted MotivationKind = "habit_completed"
	MotivationStreak    MotivationKind = "streak_milestone"
	MotivationLevelUp   MotivationKind = "level_up"
	MotivationBadge     MotivationKind = "badge_earned"
	MotivationEncourage MotivationKind = "encouragement"
	MotivationSetback   MotivationKind = "setback"
)

var motivations = map[MotivationKind][]string{
	MotivationCompleted: {
		"🎉 Nice work, you are getting stronger every day!",
		"🔥 Incredible! Keep it going!",
		"⭐ You are building a better future!",
		"💎 Every win brings you closer to your goals!",
	},
	MotivationStreak: {
		"🔥 Your streak is on fire!",
		"⚡ Your consistency is inspiring!",
		"🏆 You are turning into a habit machine!",
		"🚀 Nothing can stop you now!",
	},
	MotivationLevelUp: {
		"🌟 Level up! You are evolving!",
		"🎊 Congratulations, new level reached!",
		"💫 Every level is a new achievement!",
	},
	MotivationBadge: {
		"🏆 New achievement unlocked!",
		"🎖️ You earned this one!",
		"👑 You are becoming a master!",
	},
	MotivationEncourage: {
		"💪 You are stronger than you think!",
		"🌟 Believe in your potential!",
		"🎯 Focus on progress, not perfection!",
	},
	MotivationSetback: {
		"💙 Don't worry, tomorrow is a new day!",
		"🔄 Starting over is part of the process!",
	},
}

// Motivation picks a line of kind. The same seed always gives the same line.
func Motivation(kind MotivationKind, seed uint64) string {
	lines := motivations[kind]
	if len(lines) == 0 {
		return ""
	}
	return lines[seed%uint64(len(lines))]
}
