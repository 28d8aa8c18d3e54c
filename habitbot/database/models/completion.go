package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Completion is one accepted completion event. Day is the calendar day
// (YYYY-MM-DD) in the configured time zone; the unique group enforces one
// completion per user, habit and day.
type Completion struct {
	bun.BaseModel `bun:"table:completions,alias:c"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull,unique:completions_user_habit_day"`
	HabitID     int64     `bun:"habit_id,notnull,unique:completions_user_habit_day"`
	Day         string    `bun:"day,notnull,unique:completions_user_habit_day"`
	XPAwarded   int64     `bun:"xp_awarded,notnull"`
	ActionID    string    `bun:"action_id,notnull"`
	CompletedAt time.Time `bun:"completed_at,notnull,default:current_timestamp"`
}
