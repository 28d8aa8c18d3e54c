// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/ellavondegurechaff/habitbot/habitbot/database"
)

// New returns an initialized in-memory SQLite store closed at test cleanup.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.InitializeSchema(context.Background()); err != nil {
		t.Fatalf("initialize schema: %v", err)
	}
	return db
}
