package services

import (
	"errors"
	"net/http"

	"swarm-backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	membershipOps *prometheus.CounterVec
	streakUpdates *prometheus.CounterVec
	casRetries    *prometheus.CounterVec
	badgesAwarded prometheus.Counter
	grants        *prometheus.CounterVec
	bonusXP       prometheus.Counter
	activeStreaks prometheus.Gauge
}

// NewMetrics creates the counters on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		membershipOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "membership_operations_total",
			Help:      "Membership operations by operation and result.",
		}, []string{"op", "result"}),
		streakUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "streak_updates_total",
			Help:      "Streak writes by outcome.",
		}, []string{"outcome"}),
		casRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "cas_retries_total",
			Help:      "Conditional updates that lost to a concurrent writer.",
		}, []string{"kind"}),
		badgesAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "badges_awarded_total",
			Help:      "Badges awarded to swarms.",
		}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "reward_grants_total",
			Help:      "Per-member reward grants by result.",
		}, []string{"result"}),
		bonusXP: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "bonus_xp_total",
			Help:      "XP credited through reward grants.",
		}),
		activeStreaks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "active_streaks",
			Help:      "Swarms whose streak is still running.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.membershipOps,
		m.streakUpdates,
		m.casRetries,
		m.badgesAwarded,
		m.grants,
		m.bonusXP,
		m.activeStreaks,
	)
	return m
}

// Registry returns the registry holding the counters
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrAlreadyMember),
		errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrInvalidCode),
		errors.Is(err, models.ErrGroupFull),
		errors.Is(err, models.ErrNotAMember),
		errors.Is(err, models.ErrNotFounder),
		errors.Is(err, models.ErrSwarmNotFound),
		errors.Is(err, models.ErrUserNotFound):
		return "rejected"
	default:
		return "error"
	}
}

func (m *Metrics) membership(op string, err error) {
	if m == nil {
		return
	}
	m.membershipOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) streak(outcome string) {
	if m == nil {
		return
	}
	m.streakUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) casRetry(kind string) {
	if m == nil {
		return
	}
	m.casRetries.WithLabelValues(kind).Inc()
}

func (m *Metrics) badges(n int) {
	if m == nil {
		return
	}
	m.badgesAwarded.Add(float64(n))
}

func (m *Metrics) grant(result string, amount int64) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(result).Inc()
	if result == "credited" {
		m.bonusXP.Add(float64(amount))
	}
}

func (m *Metrics) setActiveStreaks(n int64) {
	if m == nil {
		return
	}
	m.activeStreaks.Set(float64(n))
}
