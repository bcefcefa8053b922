package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swarm-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inviteCodeIndex = "swarms_invite_code_key"

const swarmColumns = `s.id, s.name, s.invite_code, s.founder_id, s.current_streak, s.longest_streak,
	s.last_activity_date, s.badges, s.emblem_url, s.created_at,
	(SELECT COUNT(*) FROM users u WHERE u.swarm_id = s.id)`

// SwarmRepository handles database operations for swarms and membership.
//
// Membership changes lock the user row first and the swarm row second, always
// in that order, so concurrent joins and leaves cannot deadlock each other.
type SwarmRepository struct {
	db *pgxpool.Pool
}

// NewSwarmRepository creates a new swarm repository
func NewSwarmRepository(db *pgxpool.Pool) *SwarmRepository {
	return &SwarmRepository{db: db}
}

func scanSwarm(row pgx.Row) (*models.Swarm, error) {
	var s models.Swarm
	err := row.Scan(
		&s.ID, &s.Name, &s.InviteCode, &s.FounderID, &s.CurrentStreak, &s.LongestStreak,
		&s.LastActivityDate, &s.Badges, &s.EmblemURL, &s.CreatedAt, &s.MemberCount,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CodeExists checks if an invite code is already in use
func (r *SwarmRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM swarms WHERE upper(invite_code) = upper(trim($1)))`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// lockUserSwarm locks the user row and returns its current swarm id
func lockUserSwarm(ctx context.Context, tx pgx.Tx, userID string) (*string, error) {
	var swarmID *string
	err := tx.QueryRow(ctx, `SELECT swarm_id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&swarmID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return swarmID, nil
}

// CreateWithFounder inserts the swarm and points the founder at it in a single
// transaction.
func (r *SwarmRepository) CreateWithFounder(ctx context.Context, swarm *models.Swarm) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockUserSwarm(ctx, tx, swarm.FounderID)
		if err != nil {
			return err
		}
		if current != nil {
			return models.ErrAlreadyMember
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO swarms (id, name, invite_code, founder_id, current_streak, longest_streak, badges, created_at)
			VALUES ($1, $2, $3, $4, 0, 0, '{}', $5)
		`, swarm.ID, swarm.Name, swarm.InviteCode, swarm.FounderID, swarm.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, inviteCodeIndex) {
				return models.ErrCodeTaken
			}
			return fmt.Errorf("failed to create swarm: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE users SET swarm_id = $1, joined_at = $2 WHERE id = $3`,
			swarm.ID, swarm.CreatedAt, swarm.FounderID)
		if err != nil {
			return fmt.Errorf("failed to set founder membership: %w", err)
		}

		swarm.CurrentStreak = 0
		swarm.LongestStreak = 0
		swarm.LastActivityDate = nil
		swarm.Badges = []string{}
		swarm.MemberCount = 1
		return nil
	})
}

// AddMember joins the user to the swarm with the given invite code. The swarm
// row stays locked between the member count and the membership write, so the
// cap holds under concurrent joins.
func (r *SwarmRepository) AddMember(ctx context.Context, userID, code string, maxMembers int, joinedAt time.Time) (*models.Swarm, error) {
	var swarm *models.Swarm
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockUserSwarm(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != nil {
			return models.ErrAlreadyMember
		}

		var swarmID string
		err = tx.QueryRow(ctx,
			`SELECT id FROM swarms WHERE upper(invite_code) = upper(trim($1)) FOR UPDATE`, code,
		).Scan(&swarmID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrInvalidCode
			}
			return fmt.Errorf("failed to lock swarm: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE swarm_id = $1`, swarmID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if count >= maxMembers {
			return models.ErrGroupFull
		}

		_, err = tx.Exec(ctx, `UPDATE users SET swarm_id = $1, joined_at = $2 WHERE id = $3`,
			swarmID, joinedAt, userID)
		if err != nil {
			return fmt.Errorf("failed to join swarm: %w", err)
		}

		swarm, err = scanSwarm(tx.QueryRow(ctx, `SELECT `+swarmColumns+` FROM swarms s WHERE s.id = $1`, swarmID))
		if err != nil {
			return fmt.Errorf("failed to load swarm: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swarm, nil
}

// RemoveMember clears the user's membership. If the user founded the swarm,
// the earliest remaining joiner (lowest id on ties) becomes founder. The swarm
// is deleted when nobody is left.
func (r *SwarmRepository) RemoveMember(ctx context.Context, userID string) (*models.LeaveResult, error) {
	result := &models.LeaveResult{}
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockUserSwarm(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return models.ErrNotAMember
		}
		swarmID := *current
		result.SwarmID = swarmID

		var founderID string
		err = tx.QueryRow(ctx, `SELECT founder_id FROM swarms WHERE id = $1 FOR UPDATE`, swarmID).Scan(&founderID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to lock swarm: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET swarm_id = NULL, joined_at = NULL WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("failed to leave swarm: %w", err)
		}

		var nextID string
		err = tx.QueryRow(ctx, `
			SELECT id FROM users WHERE swarm_id = $1
			ORDER BY joined_at ASC NULLS LAST, id ASC
			LIMIT 1
		`, swarmID).Scan(&nextID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to find remaining member: %w", err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM swarms WHERE id = $1`, swarmID); err != nil {
				return fmt.Errorf("failed to delete swarm: %w", err)
			}
			result.Deleted = true
			return nil
		}

		if founderID == userID {
			if _, err := tx.Exec(ctx, `UPDATE swarms SET founder_id = $1 WHERE id = $2`, nextID, swarmID); err != nil {
				return fmt.Errorf("failed to transfer founder: %w", err)
			}
			result.NewFounderID = nextID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rename renames the swarm if founderID is its founder
func (r *SwarmRepository) Rename(ctx context.Context, swarmID, founderID, name string) error {
	result, err := r.db.Exec(ctx, `UPDATE swarms SET name = $1 WHERE id = $2 AND founder_id = $3`,
		name, swarmID, founderID)
	if err != nil {
		return fmt.Errorf("failed to rename swarm: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	return r.founderMismatch(ctx, swarmID)
}

// SetEmblem stores the emblem URL if founderID is the swarm's founder
func (r *SwarmRepository) SetEmblem(ctx context.Context, swarmID, founderID, url string) error {
	result, err := r.db.Exec(ctx, `UPDATE swarms SET emblem_url = $1 WHERE id = $2 AND founder_id = $3`,
		url, swarmID, founderID)
	if err != nil {
		return fmt.Errorf("failed to set emblem: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	return r.founderMismatch(ctx, swarmID)
}

func (r *SwarmRepository) founderMismatch(ctx context.Context, swarmID string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM swarms WHERE id = $1)`, swarmID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check swarm existence: %w", err)
	}
	if !exists {
		return models.ErrSwarmNotFound
	}
	return models.ErrNotFounder
}

// GetByID retrieves a swarm by ID
func (r *SwarmRepository) GetByID(ctx context.Context, id string) (*models.Swarm, error) {
	swarm, err := scanSwarm(r.db.QueryRow(ctx, `SELECT `+swarmColumns+` FROM swarms s WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSwarmNotFound
		}
		return nil, fmt.Errorf("failed to get swarm: %w", err)
	}
	return swarm, nil
}

// GetByCode retrieves a swarm by invite code, ignoring case and surrounding space
func (r *SwarmRepository) GetByCode(ctx context.Context, code string) (*models.Swarm, error) {
	query := `SELECT ` + swarmColumns + ` FROM swarms s WHERE upper(s.invite_code) = upper(trim($1))`
	swarm, err := scanSwarm(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSwarmNotFound
		}
		return nil, fmt.Errorf("failed to get swarm by code: %w", err)
	}
	return swarm, nil
}

// UpdateStreak writes the new streak state only if last_activity_date still
// holds prevDate. It reports false when another writer got there first.
func (r *SwarmRepository) UpdateStreak(ctx context.Context, swarmID string, prevDate *time.Time, next models.StreakState) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE swarms
		SET current_streak = $1, longest_streak = $2, last_activity_date = $3
		WHERE id = $4 AND last_activity_date IS NOT DISTINCT FROM $5::date
	`, next.CurrentStreak, next.LongestStreak, next.LastActivityDate, swarmID, prevDate)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// AddBadges appends badge ids only if none of them is present yet. It reports
// false when a concurrent evaluation already awarded one of them.
func (r *SwarmRepository) AddBadges(ctx context.Context, swarmID string, badgeIDs []string) (bool, error) {
	if len(badgeIDs) == 0 {
		return true, nil
	}
	result, err := r.db.Exec(ctx, `
		UPDATE swarms SET badges = badges || $1::text[]
		WHERE id = $2 AND NOT (badges && $1::text[])
	`, badgeIDs, swarmID)
	if err != nil {
		return false, fmt.Errorf("failed to add badges: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CountActiveStreaks counts swarms with a running streak whose last activity
// is on or after since
func (r *SwarmRepository) CountActiveStreaks(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM swarms
		WHERE current_streak > 0 AND last_activity_date >= $1::date
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active streaks: %w", err)
	}
	return n, nil
}
