package models

import (
	"testing"
	"time"
)

func TestSwarmActiveStreak(t *testing.T) {
	last := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	s := &Swarm{CurrentStreak: 3, LongestStreak: 3, LastActivityDate: &last}

	tests := []struct {
		today string
		want  int
	}{
		{"2024-01-02", 3},
		{"2024-01-03", 3},
		{"2024-01-04", 3},
		{"2024-01-05", 0},
	}
	for _, tt := range tests {
		today, err := ParseDate(tt.today)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.ActiveStreak(today); got != tt.want {
			t.Errorf("ActiveStreak(%s) = %d, want %d", tt.today, got, tt.want)
		}
	}
	if s.CurrentStreak != 3 {
		t.Errorf("CurrentStreak changed to %d", s.CurrentStreak)
	}

	if got := (&Swarm{}).ActiveStreak(last); got != 0 {
		t.Errorf("ActiveStreak without activity = %d", got)
	}
}
