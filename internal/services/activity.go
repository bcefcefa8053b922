package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swarm-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// SightingResult is the outcome of a logged sighting
type SightingResult struct {
	ItemID    string               `json:"item_id"`
	Collected bool                 `json:"collected"`
	SwarmID   string               `json:"swarm_id,omitempty"`
	Day       string               `json:"day"`
	Streak    *models.StreakResult `json:"streak,omitempty"`
	Badges    *models.BadgeResult  `json:"badges,omitempty"`
}

// ActivityService turns sightings into collection, streak, badge and reward
// updates
type ActivityService struct {
	users   UserRepository
	streaks *StreakService
	badges  *BadgeService
	rewards *RewardService
	events  *EventPublisher
	loc     *time.Location
	now     func() time.Time
}

// NewActivityService creates a new activity service. Days are counted in loc.
func NewActivityService(
	users UserRepository,
	streaks *StreakService,
	badges *BadgeService,
	rewards *RewardService,
	events *EventPublisher,
	loc *time.Location,
) *ActivityService {
	if loc == nil {
		loc = time.UTC
	}
	return &ActivityService{
		users:   users,
		streaks: streaks,
		badges:  badges,
		rewards: rewards,
		events:  events,
		loc:     loc,
		now:     time.Now,
	}
}

// Today returns the current calendar date in the service's timezone
func (s *ActivityService) Today() time.Time {
	return models.DateOf(s.now(), s.loc)
}

// LogSighting adds itemID to the user's collection and, if the user is in a
// swarm, records the day's activity and evaluates badges. Milestones and new
// badges pay out to every member. A failed payout is logged and does not undo
// the streak or badge result. A sighting that leaves a milestone streak as it
// is delivers that milestone's grant again, so members a failed payout missed
// are credited on retry. A nil day means today.
func (s *ActivityService) LogSighting(ctx context.Context, userID, itemID string, day *time.Time) (*SightingResult, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, models.ErrInvalidItem
	}

	d := s.Today()
	if day != nil {
		d = models.DateOf(*day, nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	collected, err := s.users.AddCollectedItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to add collected item: %w", err)
	}

	result := &SightingResult{
		ItemID:    itemID,
		Collected: collected,
		Day:       d.Format(models.DateLayout),
	}
	if !user.InSwarm() {
		return result, nil
	}
	swarmID := *user.SwarmID
	result.SwarmID = swarmID

	streak, err := s.streaks.RecordActivity(ctx, swarmID, d)
	if err != nil {
		return nil, err
	}
	result.Streak = &streak

	switch {
	case streak.IsMilestone:
		s.grantStreakBonus(ctx, swarmID, StreakTrigger(d, streak.NewStreak), streak.StreakBonusXP)
	case s.streaks.isMilestone(streak.NewStreak):
		trigger, bonus, err := s.streaks.MilestoneGrant(ctx, swarmID)
		if err != nil {
			log.Error().Err(err).Str("swarm_id", swarmID).Msg("Failed to read streak milestone")
		} else if trigger != "" {
			s.grantStreakBonus(ctx, swarmID, trigger, bonus)
		}
	}

	if models.IsVacationItem(itemID) {
		return result, nil
	}

	if collected {
		s.events.Publish(ctx, swarmID, WSMessage{
			Type:   EventItemCollected,
			UserID: userID,
			Data:   map[string]string{"item_id": itemID},
		}, nil)
	}

	// Badge evaluation is idempotent, so a retried sighting of an item that is
	// already collected still gets a chance to award what the first try missed.
	badges, err := s.badges.EvaluateSwarm(ctx, swarmID)
	if err != nil {
		log.Error().Err(err).Str("swarm_id", swarmID).Msg("Failed to evaluate badges")
		return result, nil
	}
	result.Badges = badges

	for _, b := range badges.NewBadges {
		if _, err := s.rewards.DistributeGrant(ctx, swarmID, BadgeTrigger(b.ID), b.XPReward); err != nil {
			log.Error().Err(err).Str("swarm_id", swarmID).Str("badge_id", b.ID).Msg("Failed to distribute badge bonus")
		}
	}

	return result, nil
}

func (s *ActivityService) grantStreakBonus(ctx context.Context, swarmID, triggerID string, amount int64) {
	if _, err := s.rewards.DistributeGrant(ctx, swarmID, triggerID, amount); err != nil {
		log.Error().Err(err).Str("swarm_id", swarmID).Str("trigger_id", triggerID).Msg("Failed to distribute streak bonus")
	}
}
