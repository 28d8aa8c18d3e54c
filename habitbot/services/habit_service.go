package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

// HabitSeed is one habit every new user starts with.
type HabitSeed struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	XPReward    int64  `toml:"xp_reward"`
	StreakBonus int64  `toml:"streak_bonus"`
}

// HabitService manages users and their habit definitions. Progress itself
// only ever changes through progress.Engine.
type HabitService struct {
	users     repositories.UserRepository
	habits    repositories.HabitRepository
	cache     progress.Cache
	seeds     []HabitSeed
	dailyGoal int
}

func NewHabitService(users repositories.UserRepository, habits repositories.HabitRepository, cache progress.Cache, seeds []HabitSeed, dailyGoal int) *HabitService {
	if cache == nil {
		cache = progress.NopCache{}
	}
	if dailyGoal <= 0 {
		dailyGoal = config.DefaultDailyGoal
	}
	return &HabitService{
		users:     users,
		habits:    habits,
		cache:     cache,
		seeds:     seeds,
		dailyGoal: dailyGoal,
	}
}

// EnsureUser returns the user for discordID, registering it with the default
// habits on first contact.
func (s *HabitService) EnsureUser(ctx context.Context, discordID, username string) (*models.User, error) {
	if strings.TrimSpace(discordID) == "" {
		return nil, &progress.ValidationError{Field: "discord_id", Reason: "must not be empty"}
	}

	user, err := s.users.GetByDiscordID(ctx, discordID)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFound(err) {
		return nil, &progress.InfrastructureError{Op: "get user", Err: err}
	}

	user = &models.User{
		DiscordID: discordID,
		Username:  username,
		Level:     1,
		DailyGoal: s.dailyGoal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repositories.IsConflict(err) {
			// registered concurrently by another interaction
			return s.users.GetByDiscordID(ctx, discordID)
		}
		return nil, &progress.InfrastructureError{Op: "create user", Err: err}
	}

	habits := make([]*models.Habit, 0, len(s.seeds))
	for _, seed := range s.seeds {
		habits = append(habits, &models.Habit{
			UserID:      user.ID,
			Name:        seed.Name,
			Description: seed.Description,
			XPReward:    seed.XPReward,
			StreakBonus: seed.StreakBonus,
		})
	}
	if err := s.habits.CreateMany(ctx, habits); err != nil {
		return nil, &progress.InfrastructureError{Op: "seed habits", Err: err}
	}

	slog.Info("User registered",
		slog.String("type", "db"),
		slog.String("discord_id", discordID),
		slog.Int64("user_id", user.ID),
		slog.Int("habits", len(habits)))
	return user, nil
}

func (s *HabitService) ListHabits(ctx context.Context, userID int64, activeOnly bool) ([]*models.Habit, error) {
	habits, err := progress.Cached(ctx, s.cache, progress.HabitsKey(userID, activeOnly), config.CacheExpiration,
		func(ctx context.Context) ([]*models.Habit, error) {
			return s.habits.ListByUser(ctx, userID, activeOnly)
		})
	if err != nil {
		return nil, &progress.InfrastructureError{Op: "list habits", Err: err}
	}
	return habits, nil
}

// GetHabit returns the habit only when userID owns it.
func (s *HabitService) GetHabit(ctx context.Context, userID, habitID int64) (*models.Habit, error) {
	habit, err := s.habits.GetByID(ctx, habitID)
	if repositories.IsNotFound(err) || (err == nil && habit.UserID != userID) {
		return nil, &progress.NotFoundError{Entity: "habit", ID: habitID}
	}
	if err != nil {
		return nil, &progress.InfrastructureError{Op: "get habit", Err: err}
	}
	return habit, nil
}

type NewHabit struct {
	Name        string
	Description string
	XPReward    int64
	StreakBonus int64
}

func (s *HabitService) AddHabit(ctx context.Context, userID int64, in NewHabit) (*models.Habit, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Description) > config.MaxDescriptionLength {
		return nil, &progress.ValidationError{Field: "description", Reason: fmt.Sprintf("at most %d characters", config.MaxDescriptionLength)}
	}
	if err := validateReward(in.XPReward, in.StreakBonus); err != nil {
		return nil, err
	}

	existing, err := s.habits.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, &progress.InfrastructureError{Op: "list habits", Err: err}
	}
	active := 0
	for _, h := range existing {
		if sameName(h.Name, name) {
			return nil, &progress.ValidationError{Field: "name", Reason: fmt.Sprintf("you already have a habit called %q", h.Name)}
		}
		if h.Active {
			active++
		}
	}
	if active >= config.MaxActiveHabits {
		return nil, &progress.ValidationError{Field: "habits", Reason: fmt.Sprintf("at most %d active habits", config.MaxActiveHabits)}
	}

	habit := &models.Habit{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		XPReward:    in.XPReward,
		StreakBonus: in.StreakBonus,
	}
	if err := s.habits.Create(ctx, habit); err != nil {
		return nil, &progress.InfrastructureError{Op: "create habit", Err: err}
	}
	s.invalidate(ctx, userID)
	return habit, nil
}

func (s *HabitService) RenameHabit(ctx context.Context, userID, habitID int64, name string) (*models.Habit, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	habit, err := s.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	habit.Name = name
	return s.save(ctx, habit)
}

func (s *HabitService) SetReward(ctx context.Context, userID, habitID, xpReward, streakBonus int64) (*models.Habit, error) {
	if err := validateReward(xpReward, streakBonus); err != nil {
		return nil, err
	}
	habit, err := s.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	habit.XPReward = xpReward
	habit.StreakBonus = streakBonus
	return s.save(ctx, habit)
}

// ToggleHabit pauses an active habit or resumes a paused one. Streaks are
// kept while paused.
func (s *HabitService) ToggleHabit(ctx context.Context, userID, habitID int64) (*models.Habit, error) {
	habit, err := s.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if !habit.Active {
		active, err := s.habits.CountActive(ctx, userID)
		if err != nil {
			return nil, &progress.InfrastructureError{Op: "count habits", Err: err}
		}
		if active >= config.MaxActiveHabits {
			return nil, &progress.ValidationError{Field: "habits", Reason: fmt.Sprintf("at most %d active habits", config.MaxActiveHabits)}
		}
	}
	habit.Active = !habit.Active
	return s.save(ctx, habit)
}

func (s *HabitService) SetDailyGoal(ctx context.Context, user *models.User, goal int) error {
	if goal < 1 || goal > config.MaxActiveHabits {
		return &progress.ValidationError{Field: "goal", Reason: fmt.Sprintf("must be between 1 and %d", config.MaxActiveHabits)}
	}
	if err := s.users.UpdateProfile(ctx, user.ID, user.Username, goal); err != nil {
		return &progress.InfrastructureError{Op: "update daily goal", Err: err}
	}
	s.invalidate(ctx, user.ID)
	return nil
}

type habitSource []*models.Habit

func (h habitSource) String(i int) string { return strings.ToLower(h[i].Name) }
func (h habitSource) Len() int            { return len(h) }

// SearchHabits ranks the user's habits by fuzzy match against query. An empty
// query returns them in stored order.
func (s *HabitService) SearchHabits(ctx context.Context, userID int64, query string, activeOnly bool, limit int) ([]*models.Habit, error) {
	habits, err := s.ListHabits(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var out []*models.Habit
	if query == "" {
		out = habits
	} else {
		for _, m := range fuzzy.FindFrom(query, habitSource(habits)) {
			out = append(out, habits[m.Index])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *HabitService) save(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	if err := s.habits.Update(ctx, habit); err != nil {
		if repositories.IsNotFound(err) {
			return nil, &progress.NotFoundError{Entity: "habit", ID: habit.ID}
		}
		return nil, &progress.InfrastructureError{Op: "update habit", Err: err}
	}
	s.invalidate(ctx, habit.UserID)
	return habit, nil
}

func (s *HabitService) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("Failed to invalidate habit cache",
			slog.String("type", "sys"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	}
}

var folder = cases.Fold()

// sameName compares habit names the way users read them, so "Café" written
// with a combining accent collides with the precomposed form.
func sameName(a, b string) bool {
	return folder.String(norm.NFC.String(a)) == folder.String(norm.NFC.String(b))
}

// cleanName NFC-normalizes name, drops control characters and collapses runs
// of whitespace.
func cleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, norm.NFC.String(name))
	return strings.Join(strings.Fields(name), " ")
}

func validateName(name string) (string, error) {
	name = cleanName(name)
	n := utf8.RuneCountInString(name)
	if n < config.MinHabitNameLength || n > config.MaxHabitNameLength {
		return "", &progress.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("must be %d to %d characters", config.MinHabitNameLength, config.MaxHabitNameLength),
		}
	}
	return name, nil
}

func validateReward(xpReward, streakBonus int64) error {
	if xpReward < config.MinHabitXP || xpReward > config.MaxHabitXP {
		return &progress.ValidationError{
			Field:  "xp_reward",
			Reason: fmt.Sprintf("must be between %d and %d", config.MinHabitXP, config.MaxHabitXP),
		}
	}
	if streakBonus < 0 || streakBonus > config.MaxStreakBonus {
		return &progress.ValidationError{
			Field:  "streak_bonus",
			Reason: fmt.Sprintf("must be between 0 and %d", config.MaxStreakBonus),
		}
	}
	return nil
}
