package services

import (
	"context"
	"testing"

	"swarm-backend/internal/models"
)

func badgeIDs(badges []models.Badge) []string {
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.ID
	}
	return ids
}

func TestEvaluateBadges(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		awarded   []string
		wantIDs   []string
		wantTotal int64
	}{
		{name: "below every threshold", count: 1},
		{name: "first threshold", count: 2, wantIDs: []string{"swarm_2"}, wantTotal: 20},
		{name: "several at once in table order", count: 4, wantIDs: []string{"swarm_2", "swarm_3"}, wantTotal: 50},
		{name: "skips awarded", count: 5, awarded: []string{"swarm_2", "swarm_3"}, wantIDs: []string{"swarm_5"}, wantTotal: 50},
		{name: "all awarded", count: 99, awarded: []string{"swarm_2", "swarm_3", "swarm_5"}},
		{name: "never revokes", count: 0, awarded: []string{"swarm_5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := EvaluateBadges(tt.count, tt.awarded, testBadges)
			ids := badgeIDs(got)
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("badges = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("badges = %v, want %v", ids, tt.wantIDs)
				}
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestCollectionIDs(t *testing.T) {
	members := []*models.User{
		{ID: "a", CollectedIDs: []string{"wren", "robin", "vacation_kiwi"}},
		{ID: "b", CollectedIDs: []string{"robin", "owl"}},
		{ID: "c"},
	}
	got := CollectionIDs(members)
	want := []string{"owl", "robin", "wren"}
	if len(got) != len(want) {
		t.Fatalf("CollectionIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CollectionIDs = %v, want %v", got, want)
		}
	}
}

func TestEvaluateSwarmIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "a")
	env.createUser(t, "b")
	swarm, err := env.swarm.CreateSwarm(ctx, "a", "Flock")
	if err != nil {
		t.Fatalf("CreateSwarm: %v", err)
	}
	if _, err := env.swarm.JoinSwarm(ctx, "b", swarm.InviteCode); err != nil {
		t.Fatalf("JoinSwarm: %v", err)
	}

	env.users.AddCollectedItem(ctx, "a", "robin")
	env.users.AddCollectedItem(ctx, "b", "robin")
	env.users.AddCollectedItem(ctx, "b", "vacation_kiwi")

	result, err := env.badge.EvaluateSwarm(ctx, swarm.ID)
	if err != nil {
		t.Fatalf("EvaluateSwarm: %v", err)
	}
	if len(result.NewBadges) != 0 {
		t.Fatalf("badges for one distinct item: %v", badgeIDs(result.NewBadges))
	}

	env.users.AddCollectedItem(ctx, "b", "wren")
	env.users.AddCollectedItem(ctx, "a", "owl")

	result, err = env.badge.EvaluateSwarm(ctx, swarm.ID)
	if err != nil {
		t.Fatalf("EvaluateSwarm: %v", err)
	}
	if ids := badgeIDs(result.NewBadges); len(ids) != 2 || ids[0] != "swarm_2" || ids[1] != "swarm_3" {
		t.Fatalf("badges = %v, want swarm_2 and swarm_3", ids)
	}
	if result.TotalBonusXP != 50 {
		t.Errorf("TotalBonusXP = %d, want 50", result.TotalBonusXP)
	}

	result, err = env.badge.EvaluateSwarm(ctx, swarm.ID)
	if err != nil {
		t.Fatalf("EvaluateSwarm: %v", err)
	}
	if len(result.NewBadges) != 0 || result.TotalBonusXP != 0 {
		t.Errorf("second evaluation awarded %v", badgeIDs(result.NewBadges))
	}

	got, _ := env.swarms.GetByID(ctx, swarm.ID)
	if len(got.Badges) != 2 {
		t.Errorf("stored badges = %v", got.Badges)
	}
}

// racingBadgeRepo awards swarm_2 behind the evaluator's back on the first
// append attempt
type racingBadgeRepo struct {
	SwarmRepository
	raced bool
}

func (r *racingBadgeRepo) AddBadges(ctx context.Context, swarmID string, ids []string) (bool, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.SwarmRepository.AddBadges(ctx, swarmID, []string{"swarm_2"}); err != nil {
			return false, err
		}
	}
	return r.SwarmRepository.AddBadges(ctx, swarmID, ids)
}

func TestEvaluateSwarmRetriesAfterConcurrentAward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "a")
	swarm, err := env.swarm.CreateSwarm(ctx, "a", "Flock")
	if err != nil {
		t.Fatalf("CreateSwarm: %v", err)
	}
	for _, item := range []string{"robin", "wren", "owl"} {
		env.users.AddCollectedItem(ctx, "a", item)
	}

	env.badge.swarms = &racingBadgeRepo{SwarmRepository: env.swarms}
	result, err := env.badge.EvaluateSwarm(ctx, swarm.ID)
	if err != nil {
		t.Fatalf("EvaluateSwarm: %v", err)
	}
	if ids := badgeIDs(result.NewBadges); len(ids) != 1 || ids[0] != "swarm_3" {
		t.Errorf("badges = %v, want only swarm_3", ids)
	}

	got, _ := env.swarms.GetByID(ctx, swarm.ID)
	if len(got.Badges) != 2 {
		t.Errorf("stored badges = %v, want two without duplicates", got.Badges)
	}
}
