package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/logger"
)

const (
	slowQueryThreshold = 500 * time.Millisecond
	maxLoggedQuery     = 512
)

// queryLogger reports failed and slow queries. Missing rows and unique
// violations are how the repositories signal not found and duplicates, so
// they are not failures here.
type queryLogger struct {
	slow time.Duration
}

var _ bun.QueryHook = queryLogger{}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)
	query := truncateQuery(event.Query, maxLoggedQuery)

	switch {
	case unexpectedErr(event.Err):
		logger.LogQuery(query, took, event.Err)
	case took > h.slow:
		slog.Warn("Slow query",
			slog.String("type", "db"),
			slog.Duration("took", took),
			slog.String("query", query))
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		logger.LogQuery(query, took, nil)
	}
}

// truncateQuery cuts query to at most limit bytes without splitting a rune.
func truncateQuery(query string, limit int) string {
	if len(query) <= limit {
		return query
	}
	n := limit
	for n > 0 && !utf8.RuneStart(query[n]) {
		n--
	}
	return query[:n] + "..."
}

func unexpectedErr(err error) bool {
	return err != nil &&
		!errors.Is(err, sql.ErrNoRows) &&
		!errors.Is(err, sql.ErrTxDone) &&
		!errors.Is(err, context.Canceled) &&
		!IsUniqueViolation(err)
}
