package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("jwt:\n  secret: test-secret\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port: expected 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver: expected postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Swarm.MaxMembers != 10 {
		t.Errorf("max_members: expected 10, got %d", cfg.Swarm.MaxMembers)
	}
	if cfg.Swarm.CodeLength != 6 || cfg.Swarm.CodeAttempts != 10 {
		t.Errorf("code rules: got length=%d attempts=%d", cfg.Swarm.CodeLength, cfg.Swarm.CodeAttempts)
	}
	if len(cfg.Swarm.Badges) != len(DefaultBadges()) {
		t.Errorf("badges: expected defaults, got %d", len(cfg.Swarm.Badges))
	}
	if cfg.Swarm.StreakBonuses[7] != 150 {
		t.Errorf("streak bonus for 7: expected 150, got %d", cfg.Swarm.StreakBonuses[7])
	}
}

func TestParse_SwarmRules(t *testing.T) {
	yml := `
jwt:
  secret: s
swarm:
  max_members: 4
  timezone: Europe/Berlin
  streak_bonuses:
    2: 20
  badges:
    - id: tiny
      name: Tiny
      threshold: 1
      xp_reward: 5
`
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Swarm.MaxMembers != 4 {
		t.Errorf("max_members: expected 4, got %d", cfg.Swarm.MaxMembers)
	}
	if len(cfg.Swarm.StreakBonuses) != 1 || cfg.Swarm.StreakBonuses[2] != 20 {
		t.Errorf("streak bonuses not taken from file: %v", cfg.Swarm.StreakBonuses)
	}
	if len(cfg.Swarm.Badges) != 1 || cfg.Swarm.Badges[0].ID != "tiny" {
		t.Errorf("badges not taken from file: %v", cfg.Swarm.Badges)
	}
	loc, err := cfg.Swarm.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("location: got %v, %v", loc, err)
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("SWARM_JWT_SECRET", "from-env")
	t.Setenv("SWARM_PORT", "9090")

	cfg, err := Parse([]byte("jwt:\n  secret: from-file\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("secret: expected env override, got %q", cfg.JWT.Secret)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: expected 9090, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		wantErr string
	}{
		{"missing secret", "server:\n  port: 1\n", "jwt.secret"},
		{"bad driver", "jwt:\n  secret: s\ndatabase:\n  driver: mysql\n", "unknown database driver"},
		{"negative members", "jwt:\n  secret: s\nswarm:\n  max_members: -1\n", "max_members"},
		{"short code", "jwt:\n  secret: s\nswarm:\n  code_length: 2\n", "code_length"},
		{"bad timezone", "jwt:\n  secret: s\nswarm:\n  timezone: Mars/Base\n", "timezone"},
		{"bad stats interval", "jwt:\n  secret: s\nswarm:\n  stats_interval: often\n", "stats_interval"},
		{"negative stats interval", "jwt:\n  secret: s\nswarm:\n  stats_interval: -1m\n", "stats_interval"},
		{"one character alphabet", "jwt:\n  secret: s\nswarm:\n  code_alphabet: A\n", "at least two"},
		{"lowercase alphabet", "jwt:\n  secret: s\nswarm:\n  code_alphabet: ABCabc\n", "lowercase"},
		{"non-ascii alphabet", "jwt:\n  secret: s\nswarm:\n  code_alphabet: ABCÄÖÜ\n", "ASCII"},
		{"repeated alphabet", "jwt:\n  secret: s\nswarm:\n  code_alphabet: ABCA\n", "repeats"},
		{"space in alphabet", "jwt:\n  secret: s\nswarm:\n  code_alphabet: \"AB C\"\n", "ASCII"},
		{"duplicate badge", "jwt:\n  secret: s\nswarm:\n  badges:\n    - {id: a, threshold: 1}\n    - {id: a, threshold: 2}\n", "duplicate badge"},
		{"zero threshold", "jwt:\n  secret: s\nswarm:\n  badges:\n    - {id: a, threshold: 0}\n", "invalid badge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse_StatsInterval(t *testing.T) {
	cfg, err := Parse([]byte("jwt:\n  secret: s\nswarm:\n  stats_interval: 90s\n  code_alphabet: 23456789ABCDEFGHJKMNPQRSTVWXYZ\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	d, err := cfg.Swarm.StatsEvery()
	if err != nil || d != 90*time.Second {
		t.Errorf("StatsEvery = %v, %v", d, err)
	}
}
