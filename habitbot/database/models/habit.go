package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Habit belongs to one user. Inactive habits are soft-deleted and keep their history.
type Habit struct {
	bun.BaseModel `bun:"table:habits,alias:h"`

	ID               int64     `bun:"id,pk,autoincrement"`
	UserID           int64     `bun:"user_id,notnull"`
	Name             string    `bun:"name,notnull"`
	Description      string    `bun:"description,notnull,default:''"`
	XPReward         int64     `bun:"xp_reward,notnull"`
	StreakBonus      int64     `bun:"streak_bonus,notnull,default:0"`
	Active           bool      `bun:"active,notnull,default:true"`
	CurrentStreak    int       `bun:"current_streak,notnull,default:0"`
	LongestStreak    int       `bun:"longest_streak,notnull,default:0"`
	TotalCompletions int64     `bun:"total_completions,notnull,default:0"`
	LastCompletedOn  string    `bun:"last_completed_on,notnull,default:''"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
