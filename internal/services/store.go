package services

import (
	"context"
	"time"

	"swarm-backend/internal/models"
)

// UserRepository is the user storage used by the services. It is implemented by
// repository.UserRepository (PostgreSQL) and the in-memory store.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListBySwarm(ctx context.Context, swarmID string) ([]*models.User, error)
	AddCollectedItem(ctx context.Context, userID, itemID string) (bool, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// SwarmRepository is the swarm storage used by the services. Membership writes
// and the streak/badge updates are atomic at this layer.
type SwarmRepository interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	CreateWithFounder(ctx context.Context, swarm *models.Swarm) error
	AddMember(ctx context.Context, userID, code string, maxMembers int, joinedAt time.Time) (*models.Swarm, error)
	RemoveMember(ctx context.Context, userID string) (*models.LeaveResult, error)
	Rename(ctx context.Context, swarmID, founderID, name string) error
	SetEmblem(ctx context.Context, swarmID, founderID, url string) error
	GetByID(ctx context.Context, id string) (*models.Swarm, error)
	GetByCode(ctx context.Context, code string) (*models.Swarm, error)
	UpdateStreak(ctx context.Context, swarmID string, prevDate *time.Time, next models.StreakState) (bool, error)
	AddBadges(ctx context.Context, swarmID string, badgeIDs []string) (bool, error)
	CountActiveStreaks(ctx context.Context, since time.Time) (int64, error)
}

// RewardRepository records bonus grants
type RewardRepository interface {
	ApplyGrant(ctx context.Context, grant *models.RewardGrant) (bool, error)
}
