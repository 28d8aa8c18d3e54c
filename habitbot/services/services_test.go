package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/dbtest"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

type memoryStore struct {
	key  string
	body []byte
	err  error
}

func (m *memoryStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.key = aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestBackupService_Run(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t).BunDB()
	users := repositories.NewUserRepository(db)
	habits := repositories.NewHabitRepository(db)

	u := &models.User{DiscordID: "1"}
	require.NoError(t, users.Create(ctx, u))
	require.NoError(t, habits.Create(ctx, &models.Habit{UserID: u.ID, Name: "Reading", XPReward: 10}))

	store := &memoryStore{}
	svc := NewBackupService(store, "bucket", "backups/", users, habits,
		repositories.NewCompletionRepository(db), repositories.NewBadgeRepository(db))
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC) }

	key, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backups/habitbot-20240510T093000Z.json.gz", key)
	assert.Equal(t, key, store.key)

	zr, err := gzip.NewReader(bytes.NewReader(store.body))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.NewDecoder(zr).Decode(&snap))
	assert.Len(t, snap.Users, 1)
	assert.Len(t, snap.Habits, 1)
	assert.Equal(t, "Reading", snap.Habits[0].Name)
}

func TestBackupService_UploadFailure(t *testing.T) {
	db := dbtest.New(t).BunDB()
	store := &memoryStore{err: errors.New("access denied")}
	svc := NewBackupService(store, "bucket", "", repositories.NewUserRepository(db), repositories.NewHabitRepository(db),
		repositories.NewCompletionRepository(db), repositories.NewBadgeRepository(db))

	_, err := svc.Run(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestProfileImageService_RenderHTML(t *testing.T) {
	svc := NewProfileImageService()
	stats := &progress.Stats{
		TotalXP:       150,
		Level:         progress.LevelProgress{Level: 2, Into: 50, Needed: 120, NextAt: 220},
		CurrentStreak: 4,
		LongestStreak: 9,
		Badges:        []progress.EarnedBadge{{Code: "first_habit", Name: "First Step", Icon: "🎯"}},
	}
	daily := &progress.DailyProgress{Completed: 1, Total: 3}

	data := BuildProfileData("<sam>", stats, daily)
	assert.Equal(t, "<", data.AvatarLetter)
	assert.Equal(t, 41, data.LevelPercent)

	html, err := svc.RenderHTML(data)
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;sam&gt;")
	assert.Contains(t, html, "Level 2")
	assert.Contains(t, html, "1/3")
	assert.Contains(t, html, "🎯")
	assert.False(t, strings.Contains(html, "<sam>"))
}

type fakeMaintenance struct {
	resets, purges int32
}

func (f *fakeMaintenance) DailyStreakReset(context.Context) (int, int64, error) {
	atomic.AddInt32(&f.resets, 1)
	return 0, 0, nil
}

func (f *fakeMaintenance) PurgeProcessedActions(context.Context) (int64, error) {
	atomic.AddInt32(&f.purges, 1)
	return 0, errors.New("locked")
}

type fakePinger struct{ pings int32 }

func (f *fakePinger) Ping(context.Context) error {
	atomic.AddInt32(&f.pings, 1)
	return nil
}

func TestScheduler_RunsJobs(t *testing.T) {
	bpm := utils.NewBackgroundProcessManager()
	engine := &fakeMaintenance{}
	db := &fakePinger{}

	s := NewScheduler(bpm, engine, db, nil, nil, SchedulerOptions{
		StreakResetAt:  time.Hour,
		GCInterval:     5 * time.Millisecond,
		HealthInterval: 5 * time.Millisecond,
	})
	s.Start()
	assert.Equal(t, 3, bpm.GetProcessCount())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.purges) > 1 && atomic.LoadInt32(&db.pings) > 1
	}, time.Second, 5*time.Millisecond)

	s.ResetStreaks(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&engine.resets))
	require.NoError(t, bpm.Shutdown(time.Second))
}
