package services

import (
	"context"
	"fmt"
	"sort"

	"swarm-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// EvaluateBadges walks the badge table in order and returns every badge that is
// not yet awarded and whose threshold the count has reached, with their XP total.
func EvaluateBadges(count int, awarded []string, table []models.Badge) ([]models.Badge, int64) {
	have := make(map[string]bool, len(awarded))
	for _, id := range awarded {
		have[id] = true
	}

	var newBadges []models.Badge
	var total int64
	for _, b := range table {
		if have[b.ID] || count < b.Threshold {
			continue
		}
		newBadges = append(newBadges, b)
		total += b.XPReward
	}
	return newBadges, total
}

// CollectionIDs returns the sorted union of the members' non-vacation items
func CollectionIDs(members []*models.User) []string {
	seen := make(map[string]bool)
	ids := []string{}
	for _, m := range members {
		for _, id := range m.CollectedIDs {
			if models.IsVacationItem(id) || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// BadgeTrigger returns the reward trigger id for a badge
func BadgeTrigger(badgeID string) string {
	return "badge:" + badgeID
}

// BadgeService awards collection badges to swarms
type BadgeService struct {
	swarms  SwarmRepository
	users   UserRepository
	table   []models.Badge
	events  *EventPublisher
	metrics *Metrics
}

// NewBadgeService creates a new badge service
func NewBadgeService(swarms SwarmRepository, users UserRepository, table []models.Badge, events *EventPublisher, metrics *Metrics) *BadgeService {
	return &BadgeService{
		swarms:  swarms,
		users:   users,
		table:   table,
		events:  events,
		metrics: metrics,
	}
}

// Table returns the configured badge table
func (s *BadgeService) Table() []models.Badge {
	return s.table
}

// EvaluateSwarm counts the swarm's collection and awards any badge it has
// reached. The append only succeeds if none of the new badges was awarded in
// the meantime, otherwise the evaluation is repeated.
func (s *BadgeService) EvaluateSwarm(ctx context.Context, swarmID string) (*models.BadgeResult, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		swarm, err := s.swarms.GetByID(ctx, swarmID)
		if err != nil {
			return nil, fmt.Errorf("failed to get swarm: %w", err)
		}
		members, err := s.users.ListBySwarm(ctx, swarmID)
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}

		count := len(CollectionIDs(members))
		newBadges, total := EvaluateBadges(count, swarm.Badges, s.table)
		if len(newBadges) == 0 {
			return &models.BadgeResult{NewBadges: []models.Badge{}}, nil
		}

		ids := make([]string, len(newBadges))
		for i, b := range newBadges {
			ids[i] = b.ID
		}
		ok, err := s.swarms.AddBadges(ctx, swarmID, ids)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.metrics.casRetry("badges")
			continue
		}

		s.metrics.badges(len(newBadges))
		for _, b := range newBadges {
			log.Info().
				Str("swarm_id", swarmID).
				Str("badge_id", b.ID).
				Int("collection", count).
				Msg("Badge awarded")

			s.events.Publish(ctx, swarmID, WSMessage{
				Type: EventBadgeAwarded,
				Data: b,
			}, &Notification{
				Title: "New swarm badge",
				Body:  fmt.Sprintf("Your swarm earned %s.", b.Name),
				Data:  map[string]string{"swarm_id": swarmID, "badge_id": b.ID, "type": EventBadgeAwarded},
			})
		}

		return &models.BadgeResult{NewBadges: newBadges, TotalBonusXP: total}, nil
	}

	return nil, fmt.Errorf("failed to evaluate badges for swarm %s: %w", swarmID, models.ErrConflict)
}
