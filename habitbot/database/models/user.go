package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64     `bun:"id,pk,autoincrement"`
	DiscordID     string    `bun:"discord_id,notnull,unique"`
	Username      string    `bun:"username,notnull,default:''"`
	TotalXP       int64     `bun:"total_xp,notnull,default:0"`
	Level         int       `bun:"level,notnull,default:1"`
	CurrentStreak int       `bun:"current_streak,notnull,default:0"`
	LongestStreak int       `bun:"longest_streak,notnull,default:0"`
	LastActiveOn  string    `bun:"last_active_on,notnull,default:''"`
	DailyGoal     int       `bun:"daily_goal,notnull,default:3"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
