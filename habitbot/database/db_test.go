package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/dbtest"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

func TestInitializeSchema_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, db.InitializeSchema(context.Background()))
	assert.False(t, db.IsPostgres())
	require.NoError(t, db.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	action := &models.ProcessedAction{ActionID: "discord:1", UserID: 1, CreatedAt: time.Now()}
	_, err := db.BunDB().NewInsert().Model(action).Exec(ctx)
	require.NoError(t, err)

	_, err = db.BunDB().NewInsert().Model(&models.ProcessedAction{ActionID: "discord:1", UserID: 1, CreatedAt: time.Now()}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	first := &models.Completion{UserID: 1, HabitID: 2, Day: "2024-05-01", XPAwarded: 10, ActionID: "a"}
	_, err = db.BunDB().NewInsert().Model(first).Exec(ctx)
	require.NoError(t, err)
	_, err = db.BunDB().NewInsert().Model(&models.Completion{UserID: 1, HabitID: 2, Day: "2024-05-01", XPAwarded: 10, ActionID: "b"}).Exec(ctx)
	assert.True(t, database.IsUniqueViolation(err))

	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("connection reset")))
}
