package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProcessedAction records a transport action id that has already been applied.
type ProcessedAction struct {
	bun.BaseModel `bun:"table:processed_actions,alias:pa"`

	ActionID  string    `bun:"action_id,pk"`
	UserID    int64     `bun:"user_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
