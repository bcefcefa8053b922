package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode"

	"swarm-backend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	APNs     APNsConfig     `yaml:"apns"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Swarm    SwarmConfig    `yaml:"swarm"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps everything in
	// process and is meant for local development.
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// AWSConfig holds S3 configuration for swarm emblems
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
}

// Enabled reports whether emblem uploads are configured
func (c *AWSConfig) Enabled() bool {
	return c.S3Bucket != ""
}

// APNsConfig holds Apple push configuration
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// Enabled reports whether push notifications are configured
func (c *APNsConfig) Enabled() bool {
	return c.KeyFile != "" && c.KeyID != "" && c.TeamID != ""
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// SwarmConfig holds the swarm rules
type SwarmConfig struct {
	MaxMembers    int            `yaml:"max_members"`
	CodeAlphabet  string         `yaml:"code_alphabet"`
	CodeLength    int            `yaml:"code_length"`
	CodeAttempts  int            `yaml:"code_attempts"`
	Timezone      string         `yaml:"timezone"`
	InviteBaseURL string         `yaml:"invite_base_url"`
	StatsInterval string         `yaml:"stats_interval"`
	StreakBonuses map[int]int64  `yaml:"streak_bonuses"`
	Badges        []models.Badge `yaml:"badges"`
}

// Location returns the configured timezone, UTC if unset
func (c *SwarmConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// StatsEvery parses StatsInterval, a Go duration such as "5m"
func (c *SwarmConfig) StatsEvery() (time.Duration, error) {
	d, err := time.ParseDuration(c.StatsInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid stats_interval %q: %w", c.StatsInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("stats_interval must be positive, got %s", d)
	}
	return d, nil
}

// DefaultStreakBonuses maps streak length to bonus XP
func DefaultStreakBonuses() map[int]int64 {
	return map[int]int64{
		3:   50,
		7:   150,
		14:  300,
		30:  1000,
		100: 5000,
	}
}

// DefaultBadges is the badge table used when none is configured
func DefaultBadges() []models.Badge {
	return []models.Badge{
		{ID: "swarm_10", Name: "Fledgling Flock", Threshold: 10, XPReward: 100},
		{ID: "swarm_25", Name: "Chirping Choir", Threshold: 25, XPReward: 250},
		{ID: "swarm_50", Name: "Feathered Fifty", Threshold: 50, XPReward: 500},
		{ID: "swarm_100", Name: "Century Swarm", Threshold: 100, XPReward: 1000},
		{ID: "swarm_200", Name: "Sky Atlas", Threshold: 200, XPReward: 2500},
	}
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. A .env file next to the binary is
// loaded first so that SWARM_* variables can override secrets.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a config from YAML bytes, applies env overrides and defaults,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SWARM_DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SWARM_DATABASE_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("SWARM_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("SWARM_AWS_SECRET_KEY"); v != "" {
		c.AWS.SecretKey = v
	}
	if v := os.Getenv("SWARM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Swarm.MaxMembers == 0 {
		c.Swarm.MaxMembers = 10
	}
	if c.Swarm.CodeAlphabet == "" {
		c.Swarm.CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	}
	if c.Swarm.CodeLength == 0 {
		c.Swarm.CodeLength = 6
	}
	if c.Swarm.CodeAttempts == 0 {
		c.Swarm.CodeAttempts = 10
	}
	if c.Swarm.StatsInterval == "" {
		c.Swarm.StatsInterval = "5m"
	}
	if c.Swarm.StreakBonuses == nil {
		c.Swarm.StreakBonuses = DefaultStreakBonuses()
	}
	if c.Swarm.Badges == nil {
		c.Swarm.Badges = DefaultBadges()
	}
}

// Validate checks the config for values the services cannot work with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Swarm.MaxMembers < 1 {
		return fmt.Errorf("swarm.max_members must be positive, got %d", c.Swarm.MaxMembers)
	}
	if err := validateAlphabet(c.Swarm.CodeAlphabet); err != nil {
		return err
	}
	if c.Swarm.CodeLength < 4 {
		return fmt.Errorf("swarm.code_length must be at least 4, got %d", c.Swarm.CodeLength)
	}
	if c.Swarm.CodeAttempts < 1 {
		return fmt.Errorf("swarm.code_attempts must be positive, got %d", c.Swarm.CodeAttempts)
	}
	if _, err := c.Swarm.Location(); err != nil {
		return fmt.Errorf("invalid swarm.timezone: %w", err)
	}
	if _, err := c.Swarm.StatsEvery(); err != nil {
		return err
	}
	for length, bonus := range c.Swarm.StreakBonuses {
		if length < 1 || bonus < 0 {
			return fmt.Errorf("invalid streak bonus %d: %d", length, bonus)
		}
	}

	seen := make(map[string]bool, len(c.Swarm.Badges))
	for _, b := range c.Swarm.Badges {
		if b.ID == "" {
			return errors.New("badge id must not be empty")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate badge id %q", b.ID)
		}
		seen[b.ID] = true
		if b.Threshold < 1 || b.XPReward < 0 {
			return fmt.Errorf("invalid badge %q", b.ID)
		}
	}
	return nil
}

// validateAlphabet checks that every character is a distinct printable ASCII
// character that upper-casing leaves alone, so no two codes collide under the
// case-insensitive code index.
func validateAlphabet(alphabet string) error {
	seen := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		if r > unicode.MaxASCII || !unicode.IsGraphic(r) || unicode.IsSpace(r) {
			return fmt.Errorf("swarm.code_alphabet must be printable ASCII, got %q", r)
		}
		if unicode.IsLower(r) {
			return fmt.Errorf("swarm.code_alphabet must not contain lowercase letters, got %q", r)
		}
		if seen[r] {
			return fmt.Errorf("swarm.code_alphabet repeats %q", r)
		}
		seen[r] = true
	}
	if len(seen) < 2 {
		return errors.New("swarm.code_alphabet needs at least two characters")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
