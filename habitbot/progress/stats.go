package progress

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type Stats struct {
	UserID           int64         `json:"user_id"`
	TotalXP          int64         `json:"total_xp"`
	Level            LevelProgress `json:"level"`
	CurrentStreak    int           `json:"current_streak"`
	LongestStreak    int           `json:"longest_streak"`
	TotalCompletions int           `json:"total_completions"`
	ActiveHabits     int           `json:"active_habits"`
	Badges           []EarnedBadge `json:"badges"`
	LastActiveOn     string        `json:"last_active_on,omitempty"`
}

type EarnedBadge struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Rare      bool      `json:"rare"`
	XPBonus   int64     `json:"xp_bonus"`
	AwardedAt time.Time `json:"awarded_at"`
}

type HabitProgress struct {
	HabitID       int64  `json:"habit_id"`
	Name          string `json:"name"`
	XPReward      int64  `json:"xp_reward"`
	CurrentStreak int    `json:"current_streak"`
	Done          bool   `json:"done"`
	XPEarned      int64  `json:"xp_earned"`
}

type DailyProgress struct {
	UserID    int64           `json:"user_id"`
	Day       string          `json:"day"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Goal      int             `json:"goal"`
	XPToday   int64           `json:"xp_today"`
	Habits    []HabitProgress `json:"habits"`
}

// GoalReached reports whether the user's daily goal is met.
func (d DailyProgress) GoalReached() bool {
	return d.Goal > 0 && d.Completed >= d.Goal
}

// GetStats returns the user's aggregate view, cached until the next
// completion invalidates it.
func (e *Engine) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	stats, err := Cached(ctx, e.opts.Cache, StatsKey(userID), e.opts.CacheTTL, func(ctx context.Context) (*Stats, error) {
		return e.computeStats(ctx, userID)
	})
	if err != nil {
		return nil, classify("get stats", err)
	}
	return stats, nil
}

func (e *Engine) computeStats(ctx context.Context, userID int64) (*Stats, error) {
	user, err := e.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		total  int
		active int
		badges []*models.Badge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = e.repos.Completions.CountByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = e.repos.Habits.CountActive(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		badges, err = e.repos.Badges.ListByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{
		UserID:           user.ID,
		TotalXP:          user.TotalXP,
		Level:            e.opts.Levels.Progress(user.TotalXP),
		CurrentStreak:    user.CurrentStreak,
		LongestStreak:    user.LongestStreak,
		TotalCompletions: total,
		ActiveHabits:     active,
		LastActiveOn:     user.LastActiveOn,
		Badges:           make([]EarnedBadge, 0, len(badges)),
	}
	for _, b := range badges {
		stats.Badges = append(stats.Badges, EarnedBadge{
			Code:      b.Code,
			Name:      b.Name,
			Icon:      b.Icon,
			Rare:      b.IsRare,
			XPBonus:   b.XPBonus,
			AwardedAt: b.AwardedAt,
		})
	}
	return stats, nil
}

// GetDailyProgress returns today's completion state for every active habit.
func (e *Engine) GetDailyProgress(ctx context.Context, userID int64) (*DailyProgress, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	today := Today(e.opts.Clock)
	daily, err := Cached(ctx, e.opts.Cache, DailyProgressKey(userID, today), e.opts.CacheTTL, func(ctx context.Context) (*DailyProgress, error) {
		return e.computeDailyProgress(ctx, userID, today)
	})
	if err != nil {
		return nil, classify("get daily progress", err)
	}
	return daily, nil
}

func (e *Engine) computeDailyProgress(ctx context.Context, userID int64, day string) (*DailyProgress, error) {
	user, err := e.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		habits      []*models.Habit
		completions []*models.Completion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = e.repos.Habits.ListByUser(gctx, userID, true)
		return err
	})
	g.Go(func() error {
		var err error
		completions, err = e.repos.Completions.ListByUserDay(gctx, userID, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	earned := make(map[int64]int64, len(completions))
	for _, c := range completions {
		earned[c.HabitID] = c.XPAwarded
	}

	daily := &DailyProgress{
		UserID: userID,
		Day:    day,
		Total:  len(habits),
		Goal:   user.DailyGoal,
		Habits: make([]HabitProgress, 0, len(habits)),
	}
	for _, h := range habits {
		xp, done := earned[h.ID]
		streak := h.CurrentStreak
		if !done && h.LastCompletedOn != PreviousDay(day) && e.opts.Streaks.Policy == GapReset {
			streak = 0
		}
		if done {
			daily.Completed++
			daily.XPToday += xp
		}
		daily.Habits = append(daily.Habits, HabitProgress{
			HabitID:       h.ID,
			Name:          h.Name,
			XPReward:      h.XPReward,
			CurrentStreak: streak,
			Done:          done,
			XPEarned:      xp,
		})
	}
	return daily, nil
}

// DailyStreakReset zeroes the streaks of users and habits whose last
// completion is older than the day the reset closes. It is idempotent and
// safe to run more than once a day.
func (e *Engine) DailyStreakReset(ctx context.Context) (users int, habits int64, err error) {
	start := time.Now()
	closed := ClosedDay(e.opts.Clock.Now(), e.opts.Clock.Location(), e.opts.StreakResetAt)

	if e.opts.Streaks.Policy == GapContinue {
		return 0, 0, nil
	}

	ids, err := e.repos.Users.ResetMissedStreaks(ctx, closed)
	if err != nil {
		return 0, 0, classify("reset user streaks", err)
	}
	habits, err = e.repos.Habits.ResetMissedStreaks(ctx, closed)
	if err != nil {
		return len(ids), 0, classify("reset habit streaks", err)
	}

	for _, id := range ids {
		if err := e.opts.Cache.Invalidate(ctx, id); err != nil {
			slog.Warn("Failed to invalidate progress cache",
				slog.String("type", "sys"),
				slog.Int64("user_id", id),
				slog.Any("error", err))
		}
	}

	slog.Info("Daily streak reset finished",
		slog.String("type", "progress"),
		slog.String("closed", closed),
		slog.Int("users", len(ids)),
		slog.Int64("habits", habits),
		slog.Duration("took", time.Since(start)))
	return len(ids), habits, nil
}

// PurgeProcessedActions drops idempotency records older than the retention window.
func (e *Engine) PurgeProcessedActions(ctx context.Context) (int64, error) {
	n, err := e.guard.Purge(ctx, e.opts.Clock.Now(), e.opts.ActionRetention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("Processed actions purged",
			slog.String("type", "progress"),
			slog.Int64("removed", n))
	}
	return n, nil
}
