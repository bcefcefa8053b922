package models

import (
	"strings"
	"time"
)

// VacationPrefix marks collected items logged away from home. They count for the
// user but never for the swarm collection.
const VacationPrefix = "vacation_"

// User represents a user in the system
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AvatarSeed   string     `json:"avatar_seed"`
	XP           int64      `json:"xp"`
	SwarmID      *string    `json:"swarm_id,omitempty"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
	CollectedIDs []string   `json:"collected_ids"`
	PushToken    *string    `json:"push_token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// InSwarm reports whether the user currently belongs to a swarm
func (u *User) InSwarm() bool {
	return u.SwarmID != nil && *u.SwarmID != ""
}

// LocalCollectedCount returns the number of non-vacation items the user collected
func (u *User) LocalCollectedCount() int {
	n := 0
	for _, id := range u.CollectedIDs {
		if !IsVacationItem(id) {
			n++
		}
	}
	return n
}

// IsVacationItem reports whether an item id is tagged as a vacation item
func IsVacationItem(itemID string) bool {
	return strings.HasPrefix(itemID, VacationPrefix)
}

// Swarm represents a group of users sharing streak, badge and XP bookkeeping
type Swarm struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	InviteCode       string     `json:"invite_code"`
	FounderID        string     `json:"founder_id"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	Badges           []string   `json:"badges"`
	EmblemURL        *string    `json:"emblem_url,omitempty"`
	MemberCount      int        `json:"member_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasBadge reports whether the badge was already awarded
func (s *Swarm) HasBadge(badgeID string) bool {
	for _, b := range s.Badges {
		if b == badgeID {
			return true
		}
	}
	return false
}

// ActiveStreak is the current streak as seen on today. It reads 0 once a full
// day has passed without activity; the stored streak is not changed.
func (s *Swarm) ActiveStreak(today time.Time) int {
	if s.LastActivityDate == nil || DaysBetween(*s.LastActivityDate, today) > 1 {
		return 0
	}
	return s.CurrentStreak
}

// StreakState returns the streak columns of the swarm
func (s *Swarm) StreakState() StreakState {
	return StreakState{
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
		LastActivityDate: s.LastActivityDate,
	}
}

// SwarmMember is the public view of a member inside swarm details
type SwarmMember struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AvatarSeed     string `json:"avatar_seed"`
	XP             int64  `json:"xp"`
	CollectedCount int    `json:"collected_count"`
	IsFounder      bool   `json:"is_founder"`
}

// StreakState is the streak part of a swarm row
type StreakState struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
}

// StreakResult is the outcome of a qualifying activity
type StreakResult struct {
	NewStreak     int   `json:"new_streak"`
	StreakBonusXP int64 `json:"streak_bonus_xp"`
	IsMilestone   bool  `json:"is_milestone"`
}

// Milestone is a streak length that pays a bonus to every member
type Milestone struct {
	Length  int   `json:"length"`
	BonusXP int64 `json:"bonus_xp"`
}

// Badge is one entry of the static badge table
type Badge struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Threshold int    `json:"threshold" yaml:"threshold"`
	XPReward  int64  `json:"xp_reward" yaml:"xp_reward"`
}

// BadgeResult is the outcome of a badge evaluation
type BadgeResult struct {
	NewBadges    []Badge `json:"new_badges"`
	TotalBonusXP int64   `json:"total_bonus_xp"`
}

// LeaveResult describes what happened to the swarm after a member left
type LeaveResult struct {
	SwarmID      string `json:"swarm_id"`
	Deleted      bool   `json:"deleted"`
	NewFounderID string `json:"new_founder_id,omitempty"`
}

// RewardGrant records one bonus credited to one member for one trigger
type RewardGrant struct {
	SwarmID   string    `json:"swarm_id"`
	TriggerID string    `json:"trigger_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	GrantedAt time.Time `json:"granted_at"`
}
