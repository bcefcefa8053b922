// Package memory provides an in-process store with the same contract as the
// PostgreSQL repositories. Each operation holds one lock for its whole
// duration, which gives it the atomicity the SQL versions get from
// transactions and conditional updates.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"swarm-backend/internal/models"
)

type grantKey struct {
	swarmID, triggerID, userID string
}

// Store holds users, swarms and reward grants
type Store struct {
	mu     sync.Mutex
	users  map[string]*models.User
	swarms map[string]*models.Swarm
	grants map[grantKey]models.RewardGrant
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:  make(map[string]*models.User),
		swarms: make(map[string]*models.Swarm),
		grants: make(map[grantKey]models.RewardGrant),
	}
}

// Users returns the user repository view
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Swarms returns the swarm repository view
func (s *Store) Swarms() *SwarmRepository { return &SwarmRepository{s: s} }

// Rewards returns the reward repository view
func (s *Store) Rewards() *RewardRepository { return &RewardRepository{s: s} }

// GrantCount returns the number of recorded grants
func (s *Store) GrantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.CollectedIDs = append([]string(nil), u.CollectedIDs...)
	if u.SwarmID != nil {
		id := *u.SwarmID
		c.SwarmID = &id
	}
	if u.JoinedAt != nil {
		t := *u.JoinedAt
		c.JoinedAt = &t
	}
	if u.PushToken != nil {
		p := *u.PushToken
		c.PushToken = &p
	}
	return &c
}

// swarmView copies the swarm and fills in the derived member count.
// Caller holds the lock.
func (s *Store) swarmView(sw *models.Swarm) *models.Swarm {
	c := *sw
	c.Badges = append([]string{}, sw.Badges...)
	if sw.LastActivityDate != nil {
		d := *sw.LastActivityDate
		c.LastActivityDate = &d
	}
	if sw.EmblemURL != nil {
		e := *sw.EmblemURL
		c.EmblemURL = &e
	}
	c.MemberCount = len(s.membersOf(sw.ID))
	return &c
}

// membersOf returns the members of a swarm. Caller holds the lock.
func (s *Store) membersOf(swarmID string) []*models.User {
	var members []*models.User
	for _, u := range s.users {
		if u.SwarmID != nil && *u.SwarmID == swarmID {
			members = append(members, u)
		}
	}
	return members
}

func (s *Store) swarmByCode(code string) *models.Swarm {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, sw := range s.swarms {
		if strings.ToUpper(sw.InviteCode) == code {
			return sw
		}
	}
	return nil
}

// UserRepository is the user view of the store
type UserRepository struct {
	s *Store
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = copyUser(user)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return copyUser(u), nil
}

// ListBySwarm returns the members of a swarm ordered by XP, highest first
func (r *UserRepository) ListBySwarm(ctx context.Context, swarmID string) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	members := r.s.membersOf(swarmID)
	out := make([]*models.User, 0, len(members))
	for _, u := range members {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddCollectedItem adds an item to the user's collection
func (r *UserRepository) AddCollectedItem(ctx context.Context, userID, itemID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return false, models.ErrUserNotFound
	}
	for _, id := range u.CollectedIDs {
		if id == itemID {
			return false, nil
		}
	}
	u.CollectedIDs = append(u.CollectedIDs, itemID)
	return true, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.PushToken = pushToken
	return nil
}

// SwarmRepository is the swarm view of the store
type SwarmRepository struct {
	s *Store
}

// CodeExists checks if an invite code is already in use
func (r *SwarmRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.swarmByCode(code) != nil, nil
}

// CreateWithFounder inserts the swarm and points the founder at it
func (r *SwarmRepository) CreateWithFounder(ctx context.Context, swarm *models.Swarm) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	founder, ok := r.s.users[swarm.FounderID]
	if !ok {
		return models.ErrUserNotFound
	}
	if founder.SwarmID != nil {
		return models.ErrAlreadyMember
	}
	if r.s.swarmByCode(swarm.InviteCode) != nil {
		return models.ErrCodeTaken
	}

	swarm.CurrentStreak = 0
	swarm.LongestStreak = 0
	swarm.LastActivityDate = nil
	swarm.Badges = []string{}
	stored := *swarm
	r.s.swarms[swarm.ID] = &stored

	id := swarm.ID
	joined := swarm.CreatedAt
	founder.SwarmID = &id
	founder.JoinedAt = &joined
	swarm.MemberCount = 1
	return nil
}

// AddMember joins the user to the swarm with the given invite code
func (r *SwarmRepository) AddMember(ctx context.Context, userID, code string, maxMembers int, joinedAt time.Time) (*models.Swarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if u.SwarmID != nil {
		return nil, models.ErrAlreadyMember
	}
	sw := r.s.swarmByCode(code)
	if sw == nil {
		return nil, models.ErrInvalidCode
	}
	if len(r.s.membersOf(sw.ID)) >= maxMembers {
		return nil, models.ErrGroupFull
	}

	id := sw.ID
	u.SwarmID = &id
	u.JoinedAt = &joinedAt
	return r.s.swarmView(sw), nil
}

// RemoveMember clears the user's membership, transferring or deleting the swarm
func (r *SwarmRepository) RemoveMember(ctx context.Context, userID string) (*models.LeaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if u.SwarmID == nil {
		return nil, models.ErrNotAMember
	}
	swarmID := *u.SwarmID
	u.SwarmID = nil
	u.JoinedAt = nil

	result := &models.LeaveResult{SwarmID: swarmID}
	remaining := r.s.membersOf(swarmID)
	if len(remaining) == 0 {
		delete(r.s.swarms, swarmID)
		result.Deleted = true
		return result, nil
	}

	sw, ok := r.s.swarms[swarmID]
	if ok && sw.FounderID == userID {
		sort.Slice(remaining, func(i, j int) bool {
			a, b := remaining[i], remaining[j]
			switch {
			case a.JoinedAt == nil && b.JoinedAt == nil:
				return a.ID < b.ID
			case a.JoinedAt == nil:
				return false
			case b.JoinedAt == nil:
				return true
			case !a.JoinedAt.Equal(*b.JoinedAt):
				return a.JoinedAt.Before(*b.JoinedAt)
			default:
				return a.ID < b.ID
			}
		})
		sw.FounderID = remaining[0].ID
		result.NewFounderID = sw.FounderID
	}
	return result, nil
}

// Rename renames the swarm if founderID is its founder
func (r *SwarmRepository) Rename(ctx context.Context, swarmID, founderID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swarms[swarmID]
	if !ok {
		return models.ErrSwarmNotFound
	}
	if sw.FounderID != founderID {
		return models.ErrNotFounder
	}
	sw.Name = name
	return nil
}

// SetEmblem stores the emblem URL if founderID is the swarm's founder
func (r *SwarmRepository) SetEmblem(ctx context.Context, swarmID, founderID, url string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swarms[swarmID]
	if !ok {
		return models.ErrSwarmNotFound
	}
	if sw.FounderID != founderID {
		return models.ErrNotFounder
	}
	sw.EmblemURL = &url
	return nil
}

// GetByID retrieves a swarm by ID
func (r *SwarmRepository) GetByID(ctx context.Context, id string) (*models.Swarm, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swarms[id]
	if !ok {
		return nil, models.ErrSwarmNotFound
	}
	return r.s.swarmView(sw), nil
}

// GetByCode retrieves a swarm by invite code
func (r *SwarmRepository) GetByCode(ctx context.Context, code string) (*models.Swarm, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw := r.s.swarmByCode(code)
	if sw == nil {
		return nil, models.ErrSwarmNotFound
	}
	return r.s.swarmView(sw), nil
}

// UpdateStreak writes the new streak state only if the last activity date
// still equals prevDate
func (r *SwarmRepository) UpdateStreak(ctx context.Context, swarmID string, prevDate *time.Time, next models.StreakState) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swarms[swarmID]
	if !ok {
		return false, nil
	}
	if !sameDate(sw.LastActivityDate, prevDate) {
		return false, nil
	}
	sw.CurrentStreak = next.CurrentStreak
	sw.LongestStreak = next.LongestStreak
	if next.LastActivityDate != nil {
		d := *next.LastActivityDate
		sw.LastActivityDate = &d
	} else {
		sw.LastActivityDate = nil
	}
	return true, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// AddBadges appends badge ids only if none of them is present yet
func (r *SwarmRepository) AddBadges(ctx context.Context, swarmID string, badgeIDs []string) (bool, error) {
	if len(badgeIDs) == 0 {
		return true, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swarms[swarmID]
	if !ok {
		return false, nil
	}
	for _, id := range badgeIDs {
		if sw.HasBadge(id) {
			return false, nil
		}
	}
	sw.Badges = append(sw.Badges, badgeIDs...)
	return true, nil
}

// CountActiveStreaks counts swarms with a running streak whose last activity
// is on or after since
func (r *SwarmRepository) CountActiveStreaks(ctx context.Context, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sw := range r.s.swarms {
		if sw.CurrentStreak > 0 && sw.LastActivityDate != nil && !sw.LastActivityDate.Before(since) {
			n++
		}
	}
	return n, nil
}

// RewardRepository is the reward view of the store
type RewardRepository struct {
	s *Store
}

// ApplyGrant records the grant and credits XP unless it was already applied
func (r *RewardRepository) ApplyGrant(ctx context.Context, grant *models.RewardGrant) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := grantKey{grant.SwarmID, grant.TriggerID, grant.UserID}
	if _, ok := r.s.grants[key]; ok {
		return false, nil
	}
	u, ok := r.s.users[grant.UserID]
	if !ok {
		return false, models.ErrUserNotFound
	}
	r.s.grants[key] = *grant
	u.XP += grant.Amount
	return true, nil
}
