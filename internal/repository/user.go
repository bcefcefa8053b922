package repository

import (
	"context"
	"errors"
	"fmt"

	"swarm-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, avatar_seed, xp, swarm_id, joined_at, collected_ids, push_token, created_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Name, &user.AvatarSeed, &user.XP, &user.SwarmID,
		&user.JoinedAt, &user.CollectedIDs, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, avatar_seed, xp, collected_ids, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	collected := user.CollectedIDs
	if collected == nil {
		collected = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.AvatarSeed, user.XP, collected, user.PushToken, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListBySwarm returns the members of a swarm ordered by XP, highest first
func (r *UserRepository) ListBySwarm(ctx context.Context, swarmID string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE swarm_id = $1 ORDER BY xp DESC, id ASC`
	rows, err := r.db.Query(ctx, query, swarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list swarm members: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// AddCollectedItem adds an item to the user's collection. It reports false when
// the item was already collected.
func (r *UserRepository) AddCollectedItem(ctx context.Context, userID, itemID string) (bool, error) {
	query := `
		UPDATE users SET collected_ids = array_append(collected_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(collected_ids))
	`
	result, err := r.db.Exec(ctx, query, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to add collected item: %w", err)
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return false, models.ErrUserNotFound
	}
	return false, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
