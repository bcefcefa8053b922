package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"swarm-backend/internal/models"
	"swarm-backend/internal/repository"
	"swarm-backend/internal/repository/memory"
)

var (
	_ UserRepository   = (*repository.UserRepository)(nil)
	_ SwarmRepository  = (*repository.SwarmRepository)(nil)
	_ RewardRepository = (*repository.RewardRepository)(nil)
	_ UserRepository   = (*memory.UserRepository)(nil)
	_ SwarmRepository  = (*memory.SwarmRepository)(nil)
	_ RewardRepository = (*memory.RewardRepository)(nil)
)

var testBadges = []models.Badge{
	{ID: "swarm_2", Name: "Pair", Threshold: 2, XPReward: 20},
	{ID: "swarm_3", Name: "Trio", Threshold: 3, XPReward: 30},
	{ID: "swarm_5", Name: "Handful", Threshold: 5, XPReward: 50},
}

var testBonuses = map[int]int64{2: 15, 3: 50}

// testEnv wires every service over one in-memory store
type testEnv struct {
	store    *memory.Store
	users    *memory.UserRepository
	swarms   *memory.SwarmRepository
	rewards  *memory.RewardRepository
	swarm    *SwarmService
	streak   *StreakService
	badge    *BadgeService
	reward   *RewardService
	activity *ActivityService
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	env := &testEnv{
		store:   store,
		users:   store.Users(),
		swarms:  store.Swarms(),
		rewards: store.Rewards(),
		clock:   &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	}

	codes := NewCodeGenerator("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", 6, 10)
	env.swarm = NewSwarmService(env.swarms, env.users, codes, SwarmOptions{
		MaxMembers:    10,
		InviteBaseURL: "https://swarm.example/join/",
	}, nil, nil)
	env.swarm.now = env.clock.Next
	env.streak = NewStreakService(env.swarms, testBonuses, nil, nil)
	env.badge = NewBadgeService(env.swarms, env.users, testBadges, nil, nil)
	env.reward = NewRewardService(env.rewards, env.users, nil, nil)
	env.activity = NewActivityService(env.users, env.streak, env.badge, env.reward, nil, time.UTC)
	env.activity.now = env.clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, id string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		Name:         "user " + id,
		AvatarSeed:   "seed-" + id,
		CollectedIDs: []string{},
		CreatedAt:    e.clock.Now(),
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func (e *testEnv) createUsers(t *testing.T, prefix string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%02d", prefix, i)
		e.createUser(t, ids[i])
	}
	return ids
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u
}

// fakeClock hands out strictly increasing times
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
