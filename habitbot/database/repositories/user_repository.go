package repositories

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	GetForUpdateTx(ctx context.Context, tx bun.Tx, id int64) (*models.User, error)
	UpdateProgressTx(ctx context.Context, tx bun.Tx, user *models.User) error
	UpdateProfile(ctx context.Context, id int64, username string, dailyGoal int) error
	ResetMissedStreaks(ctx context.Context, day string) ([]int64, error)
	GetUsers(ctx context.Context) ([]*models.User, error)
}

type userRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Level == 0 {
		user.Level = 1
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return r.conflictOr("create", "user", "discord_id", user.DiscordID, err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.SelectOne(ctx, "get_by_id", id, func(ctx context.Context) error {
		return r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	slog.Debug("UserRepository.GetByDiscordID called",
		slog.String("type", "db"),
		slog.String("operation", "GetByDiscordID"),
		slog.String("discord_id", discordID))

	user := new(models.User)
	err := r.SelectOne(ctx, "get_by_discord_id", discordID, func(ctx context.Context) error {
		return r.db.NewSelect().Model(user).Where("discord_id = ?", discordID).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) SelectOne(ctx context.Context, operation string, id interface{}, query func(context.Context) error) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	return r.HandleErrorWithID(operation, "user", id, query(timeoutCtx))
}

// GetForUpdateTx loads the user row and, on PostgreSQL, locks it until the
// transaction ends so completions for one user apply one at a time.
func (r *userRepository) GetForUpdateTx(ctx context.Context, tx bun.Tx, id int64) (*models.User, error) {
	user := new(models.User)
	q := tx.NewSelect().Model(user).Where("id = ?", id)
	if err := forUpdate(tx, q).Scan(ctx); err != nil {
		return nil, r.HandleErrorWithID("get_for_update", "user", id, err)
	}
	return user, nil
}

func (r *userRepository) UpdateProgressTx(ctx context.Context, tx bun.Tx, user *models.User) error {
	user.UpdatedAt = time.Now()
	_, err := tx.NewUpdate().
		Model(user).
		Column("total_xp", "level", "current_streak", "longest_streak", "last_active_on", "updated_at").
		WherePK().
		Exec(ctx)
	return r.HandleErrorWithID("update_progress", "user", user.ID, err)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, username string, dailyGoal int) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id)
	if username != "" {
		q = q.Set("username = ?", username)
	}
	if dailyGoal > 0 {
		q = q.Set("daily_goal = ?", dailyGoal)
	}
	_, err := q.Exec(ctx)
	return r.HandleErrorWithID("update_profile", "user", id, err)
}

// ResetMissedStreaks zeroes the streak of every user with no completion on or
// after day and returns the ids it touched. Predicates and write must stay in
// one statement: a completion committed mid-sweep is never reset.
func (r *userRepository) ResetMissedStreaks(ctx context.Context, day string) ([]int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var ids []int64
	err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("current_streak = 0").
		Set("updated_at = ?", time.Now()).
		Where("current_streak > 0").
		Where("last_active_on < ?", day).
		Returning("id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, r.HandleError("reset_missed_streaks", "user", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *userRepository) GetUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().Model(&users).Order("id ASC").Scan(ctx)
	return users, r.HandleError("list", "user", err)
}
