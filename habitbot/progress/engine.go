package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
)

// CompletionEvent is published after a completion commits.
type CompletionEvent struct {
	UserID     int64     `json:"user_id"`
	HabitID    int64     `json:"habit_id"`
	ActionID   string    `json:"action_id"`
	Day        string    `json:"day"`
	XPEarned   int64     `json:"xp_earned"`
	BonusXP    int64     `json:"bonus_xp"`
	TotalXP    int64     `json:"total_xp"`
	Level      int       `json:"level"`
	LevelUp    bool      `json:"level_up"`
	Streak     int       `json:"streak"`
	Badges     []string  `json:"badges,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	PublishCompletion(ctx context.Context, event CompletionEvent) error
}

type Repositories struct {
	Users       repositories.UserRepository
	Habits      repositories.HabitRepository
	Completions repositories.CompletionRepository
	Badges      repositories.BadgeRepository
	Actions     repositories.ActionRepository
}

func NewRepositories(db *bun.DB) Repositories {
	return Repositories{
		Users:       repositories.NewUserRepository(db),
		Habits:      repositories.NewHabitRepository(db),
		Completions: repositories.NewCompletionRepository(db),
		Badges:      repositories.NewBadgeRepository(db),
		Actions:     repositories.NewActionRepository(db),
	}
}

type Options struct {
	Levels          *LevelCalculator
	Streaks         StreakTracker
	Badges          *BadgeEvaluator
	BonusCap        int64
	TxTimeout       time.Duration
	ActionRetention time.Duration
	CacheTTL        time.Duration
	// StreakResetAt is the offset past midnight the daily streak reset is
	// scheduled at. Zero means midnight.
	StreakResetAt time.Duration
	Clock         Clock
	Cache         Cache
	Publisher     EventPublisher
}

func (o *Options) setDefaults() {
	if o.Levels == nil {
		o.Levels = NewLevelCalculator(config.DefaultLevelBase, config.DefaultLevelGrowth, config.DefaultMaxLevel)
	}
	if o.Streaks.Policy == "" {
		o.Streaks.Policy = GapReset
	}
	if o.Badges == nil {
		o.Badges = NewBadgeEvaluator(DefaultBadges())
	}
	if o.TxTimeout <= 0 {
		o.TxTimeout = config.DefaultTxTimeout
	}
	if o.ActionRetention <= 0 {
		o.ActionRetention = config.DefaultActionRetention
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = config.CacheExpiration
	}
	if o.Clock == nil {
		o.Clock = NewSystemClock(time.UTC)
	}
	if o.Cache == nil {
		o.Cache = NopCache{}
	}
}

// Engine applies completions and serves the aggregate views built on them.
type Engine struct {
	txm   *database.TransactionManager
	repos Repositories
	guard *Guard
	opts  Options
}

func NewEngine(db *bun.DB, repos Repositories, opts Options) *Engine {
	opts.setDefaults()
	return &Engine{
		txm:   database.NewTransactionManager(db),
		repos: repos,
		guard: NewGuard(repos.Actions),
		opts:  opts,
	}
}

func (e *Engine) Levels() *LevelCalculator { return e.opts.Levels }

func (e *Engine) Badges() *BadgeEvaluator { return e.opts.Badges }

func (e *Engine) Clock() Clock { return e.opts.Clock }

// Result describes what one accepted completion changed.
type Result struct {
	HabitID       int64      `json:"habit_id"`
	HabitName     string     `json:"habit_name"`
	Day           string     `json:"day"`
	XPEarned      int64      `json:"xp_earned"`
	BonusXP       int64      `json:"bonus_xp"`
	TotalXP       int64      `json:"total_xp"`
	PreviousLevel int        `json:"previous_level"`
	NewLevel      int        `json:"new_level"`
	LevelUp       bool       `json:"level_up"`
	CurrentStreak int        `json:"current_streak"`
	UserStreak    int        `json:"user_streak"`
	Badges        []BadgeDef `json:"badges"`
}

// XPFor is the reward for completing habit with prevStreak consecutive days
// already behind it: base plus a per-day bonus, capped.
func (e *Engine) XPFor(xpReward, streakBonus int64, prevStreak int) int64 {
	if prevStreak < 0 {
		prevStreak = 0
	}
	bonus := int64(prevStreak) * streakBonus
	if e.opts.BonusCap >= 0 && bonus > e.opts.BonusCap {
		bonus = e.opts.BonusCap
	}
	return xpReward + bonus
}

// Complete applies one completion of habitID by userID, deduplicated by
// actionID. Every write happens in one transaction; on any error nothing is
// visible. A replayed actionID or a habit already done today returns
// DuplicateActionError.
func (e *Engine) Complete(ctx context.Context, userID, habitID int64, actionID string) (*Result, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if habitID <= 0 {
		return nil, &ValidationError{Field: "habit_id", Reason: "must be positive"}
	}

	start := time.Now()
	now := e.opts.Clock.Now()
	today := DayOf(now, e.opts.Clock.Location())

	var result *Result
	err := e.txm.WithTransaction(ctx, database.StandardTransactionOptions(e.opts.TxTimeout), func(ctx context.Context, tx bun.Tx) error {
		if err := e.guard.Admit(ctx, tx, actionID, userID, now); err != nil {
			return err
		}

		user, err := e.repos.Users.GetForUpdateTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		habit, err := e.repos.Habits.GetForUserTx(ctx, tx, userID, habitID)
		if err != nil {
			return err
		}
		if !habit.Active {
			return &ValidationError{Field: "habit_id", Reason: "habit is inactive"}
		}

		done, err := e.repos.Completions.ExistsTx(ctx, tx, userID, habitID, today)
		if err != nil {
			return err
		}
		if done {
			return &DuplicateActionError{ActionID: actionID, Reason: ReasonAlreadyCompletedToday}
		}

		result, err = e.apply(ctx, tx, user, habit, actionID, today, now)
		return err
	})
	if err != nil {
		err = classify("complete habit", err)
		e.logFailure(userID, habitID, actionID, err, time.Since(start))
		return nil, err
	}

	if err := e.opts.Cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("Failed to invalidate progress cache",
			slog.String("type", "sys"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	}
	e.publish(ctx, userID, actionID, now, result)

	slog.Info("Habit completed",
		slog.String("type", "progress"),
		slog.Int64("user_id", userID),
		slog.Int64("habit_id", habitID),
		slog.Int64("xp", result.XPEarned),
		slog.Int64("bonus_xp", result.BonusXP),
		slog.Int("level", result.NewLevel),
		slog.Int("streak", result.CurrentStreak),
		slog.Int("badges", len(result.Badges)),
		slog.String("status", "success"),
		slog.Duration("took", time.Since(start)))
	return result, nil
}

// apply runs inside the transaction after the guard and the same-day check.
func (e *Engine) apply(ctx context.Context, tx bun.Tx, user *models.User, habit *models.Habit, actionID, today string, now time.Time) (*Result, error) {
	prevLevel := e.opts.Levels.LevelFor(user.TotalXP)

	habitStreak, _ := e.opts.Streaks.Advance(StreakState{
		Current: habit.CurrentStreak,
		Longest: habit.LongestStreak,
		LastDay: habit.LastCompletedOn,
	}, today)
	userStreak, _ := e.opts.Streaks.Advance(StreakState{
		Current: user.CurrentStreak,
		Longest: user.LongestStreak,
		LastDay: user.LastActiveOn,
	}, today)

	xp := e.XPFor(habit.XPReward, habit.StreakBonus, habitStreak.Current-1)

	habit.CurrentStreak = habitStreak.Current
	habit.LongestStreak = habitStreak.Longest
	habit.LastCompletedOn = today
	habit.TotalCompletions++

	user.CurrentStreak = userStreak.Current
	user.LongestStreak = userStreak.Longest
	user.LastActiveOn = today
	user.TotalXP += xp
	user.Level = e.opts.Levels.LevelFor(user.TotalXP)

	awarded, bonus, err := e.awardBadges(ctx, tx, user, habit, today)
	if err != nil {
		return nil, err
	}

	err = e.repos.Completions.CreateTx(ctx, tx, &models.Completion{
		UserID:      user.ID,
		HabitID:     habit.ID,
		Day:         today,
		XPAwarded:   xp,
		ActionID:    actionID,
		CompletedAt: now.UTC(),
	})
	if repositories.IsConflict(err) {
		return nil, &DuplicateActionError{ActionID: actionID, Reason: ReasonAlreadyCompletedToday}
	}
	if err != nil {
		return nil, err
	}
	if err := e.repos.Habits.UpdateProgressTx(ctx, tx, habit); err != nil {
		return nil, err
	}
	if err := e.repos.Users.UpdateProgressTx(ctx, tx, user); err != nil {
		return nil, err
	}

	return &Result{
		HabitID:       habit.ID,
		HabitName:     habit.Name,
		Day:           today,
		XPEarned:      xp,
		BonusXP:       bonus,
		TotalXP:       user.TotalXP,
		PreviousLevel: prevLevel,
		NewLevel:      user.Level,
		LevelUp:       user.Level > prevLevel,
		CurrentStreak: habit.CurrentStreak,
		UserStreak:    user.CurrentStreak,
		Badges:        awarded,
	}, nil
}

// awardBadges evaluates until no new badge qualifies, since a badge bonus can
// raise the level and unlock a level badge.
func (e *Engine) awardBadges(ctx context.Context, tx bun.Tx, user *models.User, completed *models.Habit, today string) ([]BadgeDef, int64, error) {
	held, err := e.repos.Badges.ListByUserTx(ctx, tx, user.ID)
	if err != nil {
		return nil, 0, err
	}
	heldCodes := make(map[string]bool, len(held))
	for _, b := range held {
		heldCodes[b.Code] = true
	}

	snap, err := e.snapshot(ctx, tx, user, completed, today)
	if err != nil {
		return nil, 0, err
	}

	var awarded []BadgeDef
	var bonus int64
	for {
		earned := e.opts.Badges.Evaluate(snap, heldCodes)
		if len(earned) == 0 {
			break
		}
		for _, def := range earned {
			heldCodes[def.Code] = true
			inserted, err := e.repos.Badges.AwardTx(ctx, tx, &models.Badge{
				UserID:  user.ID,
				Code:    def.Code,
				Name:    def.Name,
				Icon:    def.Icon,
				IsRare:  def.Rare,
				XPBonus: def.XPBonus,
			})
			if err != nil {
				return nil, 0, err
			}
			if !inserted {
				continue
			}
			awarded = append(awarded, def)
			bonus += def.XPBonus
			user.TotalXP += def.XPBonus
		}
		user.Level = e.opts.Levels.LevelFor(user.TotalXP)
		snap.TotalXP = user.TotalXP
		snap.Level = user.Level
	}
	return awarded, bonus, nil
}

// snapshot counts the pending completion as already done.
func (e *Engine) snapshot(ctx context.Context, tx bun.Tx, user *models.User, completed *models.Habit, today string) (Snapshot, error) {
	habits, err := e.repos.Habits.ListByUserTx(ctx, tx, user.ID, true)
	if err != nil {
		return Snapshot{}, err
	}
	todays, err := e.repos.Completions.ListByUserDayTx(ctx, tx, user.ID, today)
	if err != nil {
		return Snapshot{}, err
	}
	total, err := e.repos.Completions.CountByUserTx(ctx, tx, user.ID)
	if err != nil {
		return Snapshot{}, err
	}

	doneToday := make(map[int64]bool, len(todays)+1)
	for _, c := range todays {
		doneToday[c.HabitID] = true
	}
	doneToday[completed.ID] = true

	snap := Snapshot{
		TotalXP:          user.TotalXP,
		Level:            user.Level,
		UserStreak:       user.CurrentStreak,
		LongestStreak:    user.LongestStreak,
		TotalCompletions: int64(total) + 1,
		CompletedHabit:   completed.ID,
		Habits:           make([]HabitSnapshot, 0, len(habits)),
	}
	for _, h := range habits {
		streak := h.CurrentStreak
		if h.ID == completed.ID {
			streak = completed.CurrentStreak
		} else if h.LastCompletedOn != today && h.LastCompletedOn != PreviousDay(today) && e.opts.Streaks.Policy == GapReset {
			// a broken streak that the nightly sweep has not zeroed yet
			streak = 0
		}
		snap.Habits = append(snap.Habits, HabitSnapshot{
			ID:            h.ID,
			Name:          h.Name,
			CurrentStreak: streak,
			DoneToday:     doneToday[h.ID],
		})
	}
	return snap, nil
}

func (e *Engine) publish(ctx context.Context, userID int64, actionID string, now time.Time, r *Result) {
	if e.opts.Publisher == nil {
		return
	}
	codes := make([]string, 0, len(r.Badges))
	for _, b := range r.Badges {
		codes = append(codes, b.Code)
	}
	event := CompletionEvent{
		UserID:     userID,
		HabitID:    r.HabitID,
		ActionID:   actionID,
		Day:        r.Day,
		XPEarned:   r.XPEarned,
		BonusXP:    r.BonusXP,
		TotalXP:    r.TotalXP,
		Level:      r.NewLevel,
		LevelUp:    r.LevelUp,
		Streak:     r.CurrentStreak,
		Badges:     codes,
		OccurredAt: now.UTC(),
	}
	if err := e.opts.Publisher.PublishCompletion(ctx, event); err != nil {
		slog.Warn("Failed to publish completion event",
			slog.String("type", "sys"),
			slog.Int64("user_id", userID),
			slog.String("action_id", actionID),
			slog.Any("error", err))
	}
}

func (e *Engine) logFailure(userID, habitID int64, actionID string, err error, took time.Duration) {
	attrs := []any{
		slog.String("type", "progress"),
		slog.Int64("user_id", userID),
		slog.Int64("habit_id", habitID),
		slog.String("action_id", actionID),
		slog.Duration("took", took),
	}
	switch {
	case IsDuplicate(err):
		slog.Info("Completion not applied", append(attrs, slog.String("reason", err.Error()), slog.String("status", "duplicate"))...)
	case IsInfrastructure(err):
		slog.Error("Completion failed", append(attrs, slog.Any("error", err), slog.String("status", "failed"))...)
	default:
		slog.Warn("Completion rejected", append(attrs, slog.Any("error", err), slog.String("status", "rejected"))...)
	}
}
