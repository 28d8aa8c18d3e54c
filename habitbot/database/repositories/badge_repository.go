package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type BadgeRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Badge, error)
	ListByUserTx(ctx context.Context, tx bun.Tx, userID int64) ([]*models.Badge, error)
	AwardTx(ctx context.Context, tx bun.Tx, badge *models.Badge) (bool, error)
	GetBadges(ctx context.Context) ([]*models.Badge, error)
}

type badgeRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewBadgeRepository(db *bun.DB) BadgeRepository {
	return &badgeRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *badgeRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Badge, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()
	return r.list(ctx, r.db, userID)
}

func (r *badgeRepository) ListByUserTx(ctx context.Context, tx bun.Tx, userID int64) ([]*models.Badge, error) {
	return r.list(ctx, tx, userID)
}

func (r *badgeRepository) list(ctx context.Context, db bun.IDB, userID int64) ([]*models.Badge, error) {
	badges := make([]*models.Badge, 0)
	err := db.NewSelect().
		Model(&badges).
		Where("user_id = ?", userID).
		Order("awarded_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_by_user", "badge", err)
	}
	return badges, nil
}

// AwardTx inserts the badge unless the user already holds that code. It
// reports whether a row was written, so a bonus is granted at most once.
func (r *badgeRepository) AwardTx(ctx context.Context, tx bun.Tx, badge *models.Badge) (bool, error) {
	if badge.AwardedAt.IsZero() {
		badge.AwardedAt = time.Now()
	}
	res, err := tx.NewInsert().
		Model(badge).
		On("CONFLICT (user_id, code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("award", "badge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("award", "badge", err)
	}
	return n == 1, nil
}

func (r *badgeRepository) GetBadges(ctx context.Context) ([]*models.Badge, error) {
	var badges []*models.Badge
	err := r.db.NewSelect().Model(&badges).Order("id ASC").Scan(ctx)
	return badges, r.HandleError("list", "badge", err)
}
