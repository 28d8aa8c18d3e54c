package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type CompletionRepository interface {
	ExistsTx(ctx context.Context, tx bun.Tx, userID, habitID int64, day string) (bool, error)
	CreateTx(ctx context.Context, tx bun.Tx, completion *models.Completion) error
	CountByUser(ctx context.Context, userID int64) (int, error)
	CountByUserTx(ctx context.Context, tx bun.Tx, userID int64) (int, error)
	ListByUserDay(ctx context.Context, userID int64, day string) ([]*models.Completion, error)
	ListByUserDayTx(ctx context.Context, tx bun.Tx, userID int64, day string) ([]*models.Completion, error)
	GetCompletionsSince(ctx context.Context, since time.Time) ([]*models.Completion, error)
}

type completionRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewCompletionRepository(db *bun.DB) CompletionRepository {
	return &completionRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *completionRepository) ExistsTx(ctx context.Context, tx bun.Tx, userID, habitID int64, day string) (bool, error) {
	exists, err := tx.NewSelect().
		Model((*models.Completion)(nil)).
		Where("user_id = ?", userID).
		Where("habit_id = ?", habitID).
		Where("day = ?", day).
		Exists(ctx)
	return exists, r.HandleError("exists", "completion", err)
}

// CreateTx returns ConflictError when the (user, habit, day) slot is taken.
func (r *completionRepository) CreateTx(ctx context.Context, tx bun.Tx, completion *models.Completion) error {
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now()
	}
	_, err := tx.NewInsert().Model(completion).Exec(ctx)
	return r.conflictOr("create", "completion", "day", completion.Day, err)
}

func (r *completionRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	return r.Count(ctx, "completion", r.db.NewSelect().
		Model((*models.Completion)(nil)).
		Where("user_id = ?", userID))
}

func (r *completionRepository) CountByUserTx(ctx context.Context, tx bun.Tx, userID int64) (int, error) {
	n, err := tx.NewSelect().
		Model((*models.Completion)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	return n, r.HandleError("count", "completion", err)
}

func (r *completionRepository) ListByUserDay(ctx context.Context, userID int64, day string) ([]*models.Completion, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()
	return r.listDay(ctx, r.db, userID, day)
}

func (r *completionRepository) ListByUserDayTx(ctx context.Context, tx bun.Tx, userID int64, day string) ([]*models.Completion, error) {
	return r.listDay(ctx, tx, userID, day)
}

func (r *completionRepository) listDay(ctx context.Context, db bun.IDB, userID int64, day string) ([]*models.Completion, error) {
	completions := make([]*models.Completion, 0)
	err := db.NewSelect().
		Model(&completions).
		Where("user_id = ?", userID).
		Where("day = ?", day).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_by_day", "completion", err)
	}
	return completions, nil
}

func (r *completionRepository) GetCompletionsSince(ctx context.Context, since time.Time) ([]*models.Completion, error) {
	var completions []*models.Completion
	err := r.db.NewSelect().
		Model(&completions).
		Where("completed_at >= ?", since).
		Order("id ASC").
		Scan(ctx)
	return completions, r.HandleError("list_since", "completion", err)
}
