package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/dbtest"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

func inTx(t *testing.T, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	t.Helper()
	return db.RunInTx(context.Background(), nil, fn)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	users := NewUserRepository(db)

	u := &models.User{DiscordID: "42", Username: "sam"}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, 1, u.Level)

	err := users.Create(ctx, &models.User{DiscordID: "42"})
	assert.True(t, IsConflict(err), "discord id is unique: %v", err)

	got, err := users.GetByDiscordID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.GetByDiscordID(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, users.UpdateProfile(ctx, u.ID, "", 5))
	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam", got.Username, "empty username leaves it unchanged")
	assert.Equal(t, 5, got.DailyGoal)
}

func TestUserRepository_UpdateProgressAndReset(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	users := NewUserRepository(db)

	active := &models.User{DiscordID: "1"}
	lapsed := &models.User{DiscordID: "2"}
	fresh := &models.User{DiscordID: "3"}
	for _, u := range []*models.User{active, lapsed, fresh} {
		require.NoError(t, users.Create(ctx, u))
	}

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		for u, day := range map[*models.User]string{active: "2024-05-09", lapsed: "2024-05-07"} {
			locked, err := users.GetForUpdateTx(ctx, tx, u.ID)
			if err != nil {
				return err
			}
			locked.TotalXP, locked.CurrentStreak, locked.LongestStreak, locked.LastActiveOn = 50, 3, 3, day
			if err := users.UpdateProgressTx(ctx, tx, locked); err != nil {
				return err
			}
		}
		return nil
	}))

	ids, err := users.ResetMissedStreaks(ctx, "2024-05-09")
	require.NoError(t, err)
	assert.Equal(t, []int64{lapsed.ID}, ids)

	got, err := users.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 3, got.LongestStreak)
	assert.EqualValues(t, 50, got.TotalXP)

	got, err = users.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStreak)
}

func TestUserRepository_ResetMissedStreaks(t *testing.T) {
	const day = "2024-05-10"
	tests := []struct {
		name      string
		streak    int
		lastDay   string
		wantReset bool
	}{
		{name: "missed the closed day", streak: 4, lastDay: "2024-05-09", wantReset: true},
		{name: "never active", streak: 1, lastDay: "", wantReset: true},
		{name: "active on the closed day", streak: 4, lastDay: day},
		{name: "already advanced past it", streak: 5, lastDay: "2024-05-11"},
		{name: "no streak", streak: 0, lastDay: "2024-05-01"},
	}

	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	users := NewUserRepository(db)

	byName := make(map[string]*models.User, len(tests))
	var want []int64
	for i, tt := range tests {
		u := &models.User{DiscordID: fmt.Sprintf("reset-%d", i), CurrentStreak: tt.streak, LongestStreak: tt.streak, LastActiveOn: tt.lastDay}
		require.NoError(t, users.Create(ctx, u))
		byName[tt.name] = u
		if tt.wantReset {
			want = append(want, u.ID)
		}
	}

	ids, err := users.ResetMissedStreaks(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, want, ids)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := users.GetByID(ctx, byName[tt.name].ID)
			require.NoError(t, err)
			if tt.wantReset {
				assert.Zero(t, got.CurrentStreak)
			} else {
				assert.Equal(t, tt.streak, got.CurrentStreak)
			}
			assert.Equal(t, tt.streak, got.LongestStreak)
		})
	}

	ids, err = users.ResetMissedStreaks(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestHabitRepository(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	users := NewUserRepository(db)
	habits := NewHabitRepository(db)

	u := &models.User{DiscordID: "1"}
	require.NoError(t, users.Create(ctx, u))
	require.NoError(t, habits.CreateMany(ctx, []*models.Habit{
		{UserID: u.ID, Name: "Reading", XPReward: 10, Active: true},
		{UserID: u.ID, Name: "Exercise", XPReward: 15, Active: true},
	}))

	list, err := habits.ListByUser(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Reading", list[0].Name)

	list[1].Active = false
	require.NoError(t, habits.Update(ctx, list[1]))

	n, err := habits.CountActive(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := habits.ListByUser(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		h, err := habits.GetForUserTx(ctx, tx, u.ID, list[0].ID)
		if err != nil {
			return err
		}
		h.CurrentStreak, h.LongestStreak, h.TotalCompletions, h.LastCompletedOn = 2, 2, 2, "2024-05-07"
		return habits.UpdateProgressTx(ctx, tx, h)
	}))

	err = inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		_, err := habits.GetForUserTx(ctx, tx, u.ID+1, list[0].ID)
		return err
	})
	assert.True(t, IsNotFound(err), "habits are scoped to their owner")

	reset, err := habits.ResetMissedStreaks(ctx, "2024-05-09")
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	h, err := habits.GetByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.CurrentStreak)
	assert.Equal(t, 2, h.LongestStreak)
	assert.EqualValues(t, 2, h.TotalCompletions)
}

func TestCompletionRepository_OnePerDay(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	completions := NewCompletionRepository(db)

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		return completions.CreateTx(ctx, tx, &models.Completion{UserID: 1, HabitID: 1, Day: "2024-05-10", XPAwarded: 10, ActionID: "a"})
	}))

	err := inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		exists, err := completions.ExistsTx(ctx, tx, 1, 1, "2024-05-10")
		require.NoError(t, err)
		assert.True(t, exists)
		return completions.CreateTx(ctx, tx, &models.Completion{UserID: 1, HabitID: 1, Day: "2024-05-10", XPAwarded: 10, ActionID: "b"})
	})
	assert.True(t, IsConflict(err), "%v", err)

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
		return completions.CreateTx(ctx, tx, &models.Completion{UserID: 1, HabitID: 1, Day: "2024-05-11", XPAwarded: 12, ActionID: "c"})
	}))

	n, err := completions.CountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	day, err := completions.ListByUserDay(ctx, 1, "2024-05-11")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.EqualValues(t, 12, day[0].XPAwarded)
}

func TestBadgeRepository_AwardOnce(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	badges := NewBadgeRepository(db)

	award := func() bool {
		var written bool
		require.NoError(t, inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
			var err error
			written, err = badges.AwardTx(ctx, tx, &models.Badge{UserID: 1, Code: "first_habit", Name: "First Step", XPBonus: 50})
			return err
		}))
		return written
	}
	assert.True(t, award())
	assert.False(t, award())

	list, err := badges.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestActionRepository(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	actions := NewActionRepository(db)
	now := time.Now()

	insert := func(id string, at time.Time) error {
		return inTx(t, db, func(ctx context.Context, tx bun.Tx) error {
			return actions.InsertTx(ctx, tx, &models.ProcessedAction{ActionID: id, UserID: 1, CreatedAt: at})
		})
	}
	require.NoError(t, insert("discord:1", now.Add(-2*time.Hour)))
	require.NoError(t, insert("discord:2", now))
	assert.True(t, IsConflict(insert("discord:1", now)))

	n, err := actions.DeleteOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, insert("discord:1", now), "purged ids can be reused")
}
