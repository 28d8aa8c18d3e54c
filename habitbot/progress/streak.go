package progress

import "fmt"

// GapPolicy decides what a completion after a missed day does to a streak.
type GapPolicy string

const (
	// GapReset restarts the streak at 1 when the previous completion was not yesterday.
	GapReset GapPolicy = "reset"
	// GapContinue keeps counting regardless of missed days.
	GapContinue GapPolicy = "continue"
)

func ParseGapPolicy(s string) (GapPolicy, error) {
	switch GapPolicy(s) {
	case GapReset, "":
		return GapReset, nil
	case GapContinue:
		return GapContinue, nil
	}
	return "", fmt.Errorf("unknown streak gap policy %q", s)
}

// StreakState is the streak of a habit or of a user's daily activity.
type StreakState struct {
	Current int
	Longest int
	LastDay string
}

type StreakTracker struct {
	Policy GapPolicy
}

// Advance applies one completion on today. A state already advanced today is
// returned unchanged with delta 0.
func (t StreakTracker) Advance(s StreakState, today string) (StreakState, int) {
	if s.LastDay == today {
		return s, 0
	}

	next := s
	switch {
	case t.Policy == GapContinue, s.LastDay != "" && s.LastDay == PreviousDay(today):
		next.Current = s.Current + 1
	default:
		next.Current = 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.LastDay = today
	return next, next.Current - s.Current
}
