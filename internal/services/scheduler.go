package services

import (
	"context"
	"fmt"
	"time"

	"swarm-backend/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const monitorTimeout = 30 * time.Second

// StreakMonitor periodically counts swarms whose streak is still running and
// reports the number as a gauge. It only reads; streaks change through
// RecordActivity alone.
type StreakMonitor struct {
	swarms    SwarmRepository
	loc       *time.Location
	metrics   *Metrics
	scheduler gocron.Scheduler
	now       func() time.Time
}

// NewStreakMonitor creates the monitor and schedules it every interval
func NewStreakMonitor(swarms SwarmRepository, loc *time.Location, interval time.Duration, metrics *Metrics) (*StreakMonitor, error) {
	if loc == nil {
		loc = time.UTC
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	m := &StreakMonitor{
		swarms:    swarms,
		loc:       loc,
		metrics:   metrics,
		scheduler: scheduler,
		now:       time.Now,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.run),
		gocron.WithName("active-streaks"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule streak monitor: %w", err)
	}

	return m, nil
}

// Start starts the scheduler
func (m *StreakMonitor) Start() {
	m.scheduler.Start()
	log.Info().Str("timezone", m.loc.String()).Msg("Streak monitor started")
}

// Stop stops the scheduler and waits for a running count
func (m *StreakMonitor) Stop() error {
	return m.scheduler.Shutdown()
}

func (m *StreakMonitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), monitorTimeout)
	defer cancel()

	if _, err := m.Collect(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to count active streaks")
	}
}

// Collect counts running streaks and updates the gauge. A streak counts while
// its last activity is no older than two days before today in the monitor's
// timezone, which covers callers a day behind it.
func (m *StreakMonitor) Collect(ctx context.Context) (int64, error) {
	since := models.DateOf(m.now(), m.loc).AddDate(0, 0, -2)

	n, err := m.swarms.CountActiveStreaks(ctx, since)
	if err != nil {
		return 0, err
	}
	m.metrics.setActiveStreaks(n)

	log.Debug().
		Str("since", since.Format(models.DateLayout)).
		Int64("active", n).
		Msg("Active streaks counted")
	return n, nil
}
