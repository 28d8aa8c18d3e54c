package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type HabitRepository interface {
	Create(ctx context.Context, habit *models.Habit) error
	CreateMany(ctx context.Context, habits []*models.Habit) error
	GetByID(ctx context.Context, id int64) (*models.Habit, error)
	GetForUserTx(ctx context.Context, tx bun.Tx, userID, habitID int64) (*models.Habit, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.Habit, error)
	ListByUserTx(ctx context.Context, tx bun.Tx, userID int64, activeOnly bool) ([]*models.Habit, error)
	CountActive(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, habit *models.Habit) error
	UpdateProgressTx(ctx context.Context, tx bun.Tx, habit *models.Habit) error
	ResetMissedStreaks(ctx context.Context, day string) (int64, error)
	GetHabits(ctx context.Context) ([]*models.Habit, error)
}

type habitRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewHabitRepository(db *bun.DB) HabitRepository {
	return &habitRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *habitRepository) Create(ctx context.Context, habit *models.Habit) error {
	return r.CreateMany(ctx, []*models.Habit{habit})
}

func (r *habitRepository) CreateMany(ctx context.Context, habits []*models.Habit) error {
	if len(habits) == 0 {
		return nil
	}
	now := time.Now()
	for _, h := range habits {
		h.Active = true
		h.CreatedAt = now
		h.UpdatedAt = now
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(&habits).Exec(ctx)
	return r.HandleError("create", "habit", err)
}

func (r *habitRepository) GetByID(ctx context.Context, id int64) (*models.Habit, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	habit := new(models.Habit)
	if err := r.db.NewSelect().Model(habit).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, r.HandleErrorWithID("get_by_id", "habit", id, err)
	}
	return habit, nil
}

// GetForUserTx returns NotFoundError both when the habit does not exist and
// when it belongs to another user.
func (r *habitRepository) GetForUserTx(ctx context.Context, tx bun.Tx, userID, habitID int64) (*models.Habit, error) {
	habit := new(models.Habit)
	err := tx.NewSelect().
		Model(habit).
		Where("id = ?", habitID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_for_user", "habit", habitID, err)
	}
	return habit, nil
}

func (r *habitRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.Habit, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()
	return r.list(ctx, r.db, userID, activeOnly)
}

func (r *habitRepository) ListByUserTx(ctx context.Context, tx bun.Tx, userID int64, activeOnly bool) ([]*models.Habit, error) {
	return r.list(ctx, tx, userID, activeOnly)
}

func (r *habitRepository) list(ctx context.Context, db bun.IDB, userID int64, activeOnly bool) ([]*models.Habit, error) {
	habits := make([]*models.Habit, 0)
	q := db.NewSelect().Model(&habits).Where("user_id = ?", userID).Order("id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, r.HandleError("list_by_user", "habit", err)
	}
	return habits, nil
}

func (r *habitRepository) CountActive(ctx context.Context, userID int64) (int, error) {
	return r.Count(ctx, "habit", r.db.NewSelect().
		Model((*models.Habit)(nil)).
		Where("user_id = ?", userID).
		Where("active = ?", true))
}

// Update writes the user-editable columns only; progress columns belong to the engine.
func (r *habitRepository) Update(ctx context.Context, habit *models.Habit) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	habit.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(habit).
		Column("name", "description", "xp_reward", "streak_bonus", "active", "updated_at").
		WherePK().
		Exec(ctx)
	return r.HandleErrorWithID("update", "habit", habit.ID, err)
}

func (r *habitRepository) UpdateProgressTx(ctx context.Context, tx bun.Tx, habit *models.Habit) error {
	habit.UpdatedAt = time.Now()
	_, err := tx.NewUpdate().
		Model(habit).
		Column("current_streak", "longest_streak", "total_completions", "last_completed_on", "updated_at").
		WherePK().
		Exec(ctx)
	return r.HandleErrorWithID("update_progress", "habit", habit.ID, err)
}

func (r *habitRepository) ResetMissedStreaks(ctx context.Context, day string) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.Habit)(nil)).
		Set("current_streak = 0").
		Set("updated_at = ?", time.Now()).
		Where("current_streak > 0").
		Where("last_completed_on < ?", day).
		Exec(ctx)
	if err != nil {
		return 0, r.HandleError("reset_missed_streaks", "habit", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *habitRepository) GetHabits(ctx context.Context) ([]*models.Habit, error) {
	var habits []*models.Habit
	err := r.db.NewSelect().Model(&habits).Order("id ASC").Scan(ctx)
	return habits, r.HandleError("list", "habit", err)
}
