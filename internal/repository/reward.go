package repository

import (
	"context"
	"fmt"

	"swarm-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RewardRepository handles bonus grants
type RewardRepository struct {
	db *pgxpool.Pool
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *pgxpool.Pool) *RewardRepository {
	return &RewardRepository{db: db}
}

// ApplyGrant records the grant and credits the member's XP in one transaction.
// A grant that already exists for (swarm, trigger, user) is skipped and false
// is returned.
func (r *RewardRepository) ApplyGrant(ctx context.Context, grant *models.RewardGrant) (bool, error) {
	applied := false
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			INSERT INTO reward_grants (swarm_id, trigger_id, user_id, amount, granted_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (swarm_id, trigger_id, user_id) DO NOTHING
		`, grant.SwarmID, grant.TriggerID, grant.UserID, grant.Amount, grant.GrantedAt)
		if err != nil {
			return fmt.Errorf("failed to record grant: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil
		}

		result, err = tx.Exec(ctx, `UPDATE users SET xp = xp + $1 WHERE id = $2`, grant.Amount, grant.UserID)
		if err != nil {
			return fmt.Errorf("failed to credit xp: %w", err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrUserNotFound
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
