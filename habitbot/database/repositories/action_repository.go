package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type ActionRepository interface {
	InsertTx(ctx context.Context, tx bun.Tx, action *models.ProcessedAction) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type actionRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewActionRepository(db *bun.DB) ActionRepository {
	return &actionRepository{BaseRepository: NewBaseRepository(db), db: db}
}

// InsertTx returns ConflictError when the action id was already recorded.
func (r *actionRepository) InsertTx(ctx context.Context, tx bun.Tx, action *models.ProcessedAction) error {
	_, err := tx.NewInsert().Model(action).Exec(ctx)
	return r.conflictOr("insert", "processed_action", "action_id", action.ActionID, err)
}

func (r *actionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewDelete().
		Model((*models.ProcessedAction)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, r.HandleError("purge", "processed_action", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
