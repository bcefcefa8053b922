package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"swarm-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultGrantConcurrency = 4

// RewardResult summarizes a bonus distribution
type RewardResult struct {
	TriggerID string `json:"trigger_id"`
	Credited  int    `json:"credited"`
	Duplicate int    `json:"duplicate"`
	Failed    int    `json:"failed"`
}

// ManualTrigger returns a fresh trigger id for an ad hoc bonus
func ManualTrigger() string {
	return "manual:" + uuid.New().String()
}

// RewardService credits bonus XP to every member of a swarm
type RewardService struct {
	rewards     RewardRepository
	users       UserRepository
	concurrency int
	events      *EventPublisher
	metrics     *Metrics
	now         func() time.Time
}

// NewRewardService creates a new reward service
func NewRewardService(rewards RewardRepository, users UserRepository, events *EventPublisher, metrics *Metrics) *RewardService {
	return &RewardService{
		rewards:     rewards,
		users:       users,
		concurrency: defaultGrantConcurrency,
		events:      events,
		metrics:     metrics,
		now:         time.Now,
	}
}

// DistributeBonus credits amount to every current member under a new manual
// trigger
func (s *RewardService) DistributeBonus(ctx context.Context, swarmID string, amount int64) (*RewardResult, error) {
	return s.DistributeGrant(ctx, swarmID, ManualTrigger(), amount)
}

// DistributeGrant credits amount to every current member. Each member is
// credited at most once per trigger id, so re-delivering the same trigger is
// safe. Failures for single members are logged and counted, not returned.
func (s *RewardService) DistributeGrant(ctx context.Context, swarmID, triggerID string, amount int64) (*RewardResult, error) {
	result := &RewardResult{TriggerID: triggerID}
	if amount <= 0 {
		return result, nil
	}

	members, err := s.users.ListBySwarm(ctx, swarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, m := range members {
		userID := m.ID
		g.Go(func() error {
			applied, err := s.rewards.ApplyGrant(ctx, &models.RewardGrant{
				SwarmID:   swarmID,
				TriggerID: triggerID,
				UserID:    userID,
				Amount:    amount,
				GrantedAt: s.now(),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				s.metrics.grant("failed", amount)
				log.Error().
					Err(err).
					Str("swarm_id", swarmID).
					Str("user_id", userID).
					Str("trigger_id", triggerID).
					Msg("Failed to credit bonus")
			case applied:
				result.Credited++
				s.metrics.grant("credited", amount)
			default:
				result.Duplicate++
				s.metrics.grant("duplicate", amount)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Str("swarm_id", swarmID).
		Str("trigger_id", triggerID).
		Int64("amount", amount).
		Int("credited", result.Credited).
		Int("duplicate", result.Duplicate).
		Int("failed", result.Failed).
		Msg("Bonus distributed")

	if result.Credited > 0 {
		s.events.Publish(ctx, swarmID, WSMessage{
			Type: EventBonusGranted,
			Data: map[string]interface{}{
				"trigger_id": triggerID,
				"amount":     amount,
			},
		}, nil)
	}

	return result, nil
}
