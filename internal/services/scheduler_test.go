package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStreakMonitorCollect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	days := map[string][]string{
		"west":  {"2024-01-01", "2024-01-02", "2024-01-03"},
		"fresh": {"2024-01-03", "2024-01-04"},
		"stale": {"2024-01-01"},
	}
	ids := make(map[string]string)
	for name, ds := range days {
		env.createUser(t, name)
		swarm, err := env.swarm.CreateSwarm(ctx, name, name)
		if err != nil {
			t.Fatalf("CreateSwarm: %v", err)
		}
		ids[name] = swarm.ID
		for _, d := range ds {
			if _, err := env.streak.RecordActivity(ctx, swarm.ID, date(d)); err != nil {
				t.Fatal(err)
			}
		}
	}

	metrics := NewMetrics()
	monitor := &StreakMonitor{
		swarms:  env.swarms,
		loc:     time.UTC,
		metrics: metrics,
		now:     func() time.Time { return time.Date(2024, 1, 5, 0, 5, 0, 0, time.UTC) },
	}
	n, err := monitor.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2", n)
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "swarm_active_streaks 2") {
		t.Errorf("gauge not exported:\n%s", rec.Body.String())
	}

	// counting never touches the stored streak
	stale, _ := env.swarms.GetByID(ctx, ids["stale"])
	if stale.CurrentStreak != 1 {
		t.Errorf("stale streak = %d, want 1", stale.CurrentStreak)
	}

	// a caller behind the server clock is still on its next day and extends
	result, err := env.streak.RecordActivity(ctx, ids["west"], date("2024-01-04"))
	if err != nil {
		t.Fatal(err)
	}
	if result.NewStreak != 4 {
		t.Errorf("NewStreak = %d, want 4", result.NewStreak)
	}
	west, _ := env.swarms.GetByID(ctx, ids["west"])
	if west.CurrentStreak != 4 || west.LongestStreak != 4 {
		t.Errorf("west streak = %d/%d, want 4/4", west.CurrentStreak, west.LongestStreak)
	}
}

func TestNewStreakMonitor(t *testing.T) {
	env := newTestEnv(t)
	monitor, err := NewStreakMonitor(env.swarms, time.UTC, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewStreakMonitor: %v", err)
	}
	monitor.Start()
	if err := monitor.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
