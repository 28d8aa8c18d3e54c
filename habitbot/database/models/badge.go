package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Badge struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull,unique:badges_user_code"`
	Code      string    `bun:"code,notnull,unique:badges_user_code"`
	Name      string    `bun:"name,notnull"`
	Icon      string    `bun:"icon,notnull,default:''"`
	IsRare    bool      `bun:"is_rare,notnull,default:false"`
	XPBonus   int64     `bun:"xp_bonus,notnull,default:0"`
	AwardedAt time.Time `bun:"awarded_at,notnull,default:current_timestamp"`
}
