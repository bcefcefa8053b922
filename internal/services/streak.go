package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"swarm-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// maxCASAttempts bounds the re-read and re-apply loop of optimistic updates
const maxCASAttempts = 5

// ApplyActivity applies a qualifying activity on day to a streak. It returns
// the new state, the result for the caller and whether the state changed.
//
// Activity on the last active day, or on an earlier day, leaves the streak
// as it is. Activity on the following day extends it. Any longer gap starts a
// new streak of 1.
func ApplyActivity(state models.StreakState, day time.Time, bonuses map[int]int64) (models.StreakState, models.StreakResult, bool) {
	day = models.DateOf(day, nil)

	if state.LastActivityDate != nil && models.DaysBetween(*state.LastActivityDate, day) <= 0 {
		return state, models.StreakResult{NewStreak: state.CurrentStreak}, false
	}

	next := models.StreakState{
		CurrentStreak: 1,
		LongestStreak: state.LongestStreak,
	}
	if state.LastActivityDate != nil && models.DaysBetween(*state.LastActivityDate, day) == 1 {
		next.CurrentStreak = state.CurrentStreak + 1
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	next.LastActivityDate = &day

	result := models.StreakResult{NewStreak: next.CurrentStreak}
	if bonus, ok := bonuses[next.CurrentStreak]; ok && bonus > 0 {
		result.StreakBonusXP = bonus
		result.IsMilestone = true
	}
	return next, result, true
}

// StreakTrigger returns the reward trigger id for a streak milestone
func StreakTrigger(day time.Time, length int) string {
	return fmt.Sprintf("streak:%s:%d", day.Format(models.DateLayout), length)
}

// StreakService keeps the swarm's daily streak
type StreakService struct {
	swarms  SwarmRepository
	bonuses map[int]int64
	events  *EventPublisher
	metrics *Metrics
}

// NewStreakService creates a new streak service
func NewStreakService(swarms SwarmRepository, bonuses map[int]int64, events *EventPublisher, metrics *Metrics) *StreakService {
	return &StreakService{
		swarms:  swarms,
		bonuses: bonuses,
		events:  events,
		metrics: metrics,
	}
}

// Milestones returns the streak bonus table ordered by length
func (s *StreakService) Milestones() []models.Milestone {
	milestones := make([]models.Milestone, 0, len(s.bonuses))
	for length, bonus := range s.bonuses {
		if bonus > 0 {
			milestones = append(milestones, models.Milestone{Length: length, BonusXP: bonus})
		}
	}
	sort.Slice(milestones, func(i, j int) bool {
		return milestones[i].Length < milestones[j].Length
	})
	return milestones
}

// MilestoneGrant returns the reward trigger and bonus of the milestone the
// stored streak is on. The trigger is empty when the streak is on none.
func (s *StreakService) MilestoneGrant(ctx context.Context, swarmID string) (string, int64, error) {
	swarm, err := s.swarms.GetByID(ctx, swarmID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get swarm: %w", err)
	}
	bonus := s.bonuses[swarm.CurrentStreak]
	if swarm.LastActivityDate == nil || bonus <= 0 {
		return "", 0, nil
	}
	return StreakTrigger(*swarm.LastActivityDate, swarm.CurrentStreak), bonus, nil
}

func (s *StreakService) isMilestone(length int) bool {
	return s.bonuses[length] > 0
}

// RecordActivity applies activity on day to the swarm's streak. The write is
// conditional on the last activity date read, so two members logging the
// first activity of a day at the same time extend the streak once.
func (s *StreakService) RecordActivity(ctx context.Context, swarmID string, day time.Time) (models.StreakResult, error) {
	day = models.DateOf(day, nil)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		swarm, err := s.swarms.GetByID(ctx, swarmID)
		if err != nil {
			return models.StreakResult{}, fmt.Errorf("failed to get swarm: %w", err)
		}

		prev := swarm.StreakState()
		next, result, changed := ApplyActivity(prev, day, s.bonuses)
		if !changed {
			s.metrics.streak("unchanged")
			return result, nil
		}

		ok, err := s.swarms.UpdateStreak(ctx, swarmID, prev.LastActivityDate, next)
		if err != nil {
			return models.StreakResult{}, err
		}
		if !ok {
			s.metrics.casRetry("streak")
			continue
		}

		outcome := "reset"
		if next.CurrentStreak > 1 {
			outcome = "extended"
		}
		s.metrics.streak(outcome)

		log.Info().
			Str("swarm_id", swarmID).
			Str("day", day.Format(models.DateLayout)).
			Int("streak", result.NewStreak).
			Bool("milestone", result.IsMilestone).
			Msg("Streak updated")

		var note *Notification
		if result.IsMilestone {
			note = &Notification{
				Title: fmt.Sprintf("%d day streak!", result.NewStreak),
				Body:  fmt.Sprintf("Your swarm earned %d bonus XP each.", result.StreakBonusXP),
				Data:  map[string]string{"swarm_id": swarmID, "type": EventStreakUpdated},
			}
		}
		s.events.Publish(ctx, swarmID, WSMessage{
			Type: EventStreakUpdated,
			Data: map[string]interface{}{
				"current_streak":     next.CurrentStreak,
				"longest_streak":     next.LongestStreak,
				"last_activity_date": day.Format(models.DateLayout),
				"streak_bonus_xp":    result.StreakBonusXP,
				"is_milestone":       result.IsMilestone,
			},
		}, note)

		return result, nil
	}

	return models.StreakResult{}, fmt.Errorf("failed to record activity for swarm %s: %w", swarmID, models.ErrConflict)
}
