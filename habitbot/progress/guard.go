package progress

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
)

// Guard admits each transport action id once. Detection is the primary key
// on processed_actions, never a read before the write.
type Guard struct {
	actions repositories.ActionRepository
}

func NewGuard(actions repositories.ActionRepository) *Guard {
	return &Guard{actions: actions}
}

// Admit records actionID inside tx. It returns DuplicateActionError for a
// replay and InfrastructureError for any other storage failure; in both cases
// the caller must not apply the reward.
func (g *Guard) Admit(ctx context.Context, tx bun.Tx, actionID string, userID int64, now time.Time) error {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return &ValidationError{Field: "action_id", Reason: "must not be empty"}
	}
	if len(actionID) > config.MaxIdempotencyKey+32 {
		return &ValidationError{Field: "action_id", Reason: "too long"}
	}

	err := g.actions.InsertTx(ctx, tx, &models.ProcessedAction{
		ActionID:  actionID,
		UserID:    userID,
		CreatedAt: now.UTC(),
	})
	switch {
	case err == nil:
		return nil
	case repositories.IsConflict(err):
		slog.Info("Duplicate action rejected",
			slog.String("type", "progress"),
			slog.String("action_id", actionID),
			slog.Int64("user_id", userID),
			slog.String("status", "duplicate"))
		return &DuplicateActionError{ActionID: actionID, Reason: ReasonReplayedAction}
	default:
		return &InfrastructureError{Op: "admit action", Err: err}
	}
}

// Purge deletes records older than retention and returns how many went.
func (g *Guard) Purge(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	n, err := g.actions.DeleteOlderThan(ctx, now.UTC().Add(-retention))
	if err != nil {
		return 0, &InfrastructureError{Op: "purge processed actions", Err: err}
	}
	return n, nil
}
