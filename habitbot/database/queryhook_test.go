package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/logger"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(logger.NewHandlerWithOptions(logger.Options{Output: &buf, NoColor: true, Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestQueryLogger(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		err   error
		age   time.Duration
		want  string
	}{
		{name: "failure", level: slog.LevelInfo, err: errors.New("connection reset"), want: "Query failed"},
		{name: "no rows", level: slog.LevelInfo, err: fmt.Errorf("select: %w", sql.ErrNoRows)},
		{name: "rollback after commit", level: slog.LevelInfo, err: fmt.Errorf("rollback: %w", sql.ErrTxDone)},
		{name: "slow", level: slog.LevelInfo, age: time.Second, want: "Slow query"},
		{name: "fast at info", level: slog.LevelInfo},
		{name: "fast at debug", level: slog.LevelDebug, want: "Query executed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t, tt.level)
			queryLogger{slow: slowQueryThreshold}.AfterQuery(context.Background(), &bun.QueryEvent{
				Query:     "SELECT 1",
				StartTime: time.Now().Add(-tt.age),
				Err:       tt.err,
			})
			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestTruncateQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
		want  string
	}{
		{name: "short", query: "SELECT 1", limit: 16, want: "SELECT 1"},
		{name: "exact", query: "SELECT 1", limit: 8, want: "SELECT 1"},
		{name: "ascii cut", query: "SELECT 12345", limit: 8, want: "SELECT 1..."},
		{name: "inside a rune", query: "name = 'café'", limit: 12, want: "name = 'caf..."},
		{name: "on a rune boundary", query: "name = 'café'", limit: 13, want: "name = 'café..."},
		{name: "inside an emoji", query: "'🔥🔥'", limit: 3, want: "'..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateQuery(tt.query, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestQueryLogger_LongMultibyteQuery(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)
	query := "SELECT '" + strings.Repeat("é", maxLoggedQuery) + "'"
	queryLogger{slow: slowQueryThreshold}.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     query,
		StartTime: time.Now(),
	})
	assert.Contains(t, buf.String(), "Query executed")
	assert.True(t, utf8.ValidString(buf.String()))
}

func TestWithTransaction_FinishedTxIsNotLogged(t *testing.T) {
	db, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	buf := captureLogs(t, slog.LevelInfo)
	tm := NewTransactionManager(db.BunDB())
	ctx := context.Background()

	err = tm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.NotContains(t, buf.String(), "Query failed")
}
