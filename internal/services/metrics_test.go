package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swarm-backend/internal/models"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.membership("join", nil)
	m.streak("extended")
	m.casRetry("streak")
	m.badges(2)
	m.grant("credited", 10)
	m.setActiveStreaks(3)
}

func TestMetricsCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := NewMetrics()
	env.swarm.metrics = m
	env.reward.metrics = m

	env.createUser(t, "a")
	env.createUser(t, "b")
	swarm, err := env.swarm.CreateSwarm(ctx, "a", "Flock")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.swarm.JoinSwarm(ctx, "b", swarm.InviteCode); err != nil {
		t.Fatal(err)
	}
	if _, err := env.swarm.JoinSwarm(ctx, "b", swarm.InviteCode); err == nil {
		t.Fatal("expected ErrAlreadyMember")
	}
	if _, err := env.reward.DistributeGrant(ctx, swarm.ID, "manual:1", 10); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`swarm_membership_operations_total{op="create",result="ok"} 1`,
		`swarm_membership_operations_total{op="join",result="ok"} 1`,
		`swarm_membership_operations_total{op="join",result="rejected"} 1`,
		`swarm_reward_grants_total{result="credited"} 2`,
		`swarm_bonus_xp_total 20`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output is missing %q", want)
		}
	}
}

func TestResultLabel(t *testing.T) {
	if got := resultLabel(models.ErrGroupFull); got != "rejected" {
		t.Errorf("resultLabel(ErrGroupFull) = %s", got)
	}
	if got := resultLabel(context.Canceled); got != "error" {
		t.Errorf("resultLabel(Canceled) = %s", got)
	}
}
