package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pashagolub/skillrank/pkg/tournament"
)

// Failure reasons reported by match_failures_total.
const (
	ReasonOracle             = "oracle"
	ReasonInsufficientLength = "insufficient_length"
	ReasonOther              = "other"
)

// Manager records tournament activity. It is a tournament.MatchObserver and a
// skill.ClampObserver, so it can be handed directly to both.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Match metrics
	matches       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	ratingUpdates prometheus.Counter
	matchLatency  prometheus.Histogram

	// Oracle metrics
	oracleLatency prometheus.Histogram
	oracleErrors  prometheus.Counter

	// Engine health
	sigmaClamps    prometheus.Counter
	populationSize prometheus.Gauge
	tournaments    *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skillrank",
		subsystem:        "tournament",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.matches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_total",
		Help:      "Total number of games rated, by outcome of the first player",
	}, []string{"outcome"})

	m.failures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_failures_total",
		Help:      "Total number of skipped or aborted matches by reason",
	}, []string{"reason"})

	m.ratingUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_updates_total",
		Help:      "Total number of player ratings replaced after a match",
	})

	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_duration_seconds",
		Help:      "Time spent simulating and rating one pair",
		Buckets:   m.histogramBuckets,
	})

	m.oracleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "oracle_latency_seconds",
		Help:      "Time spent by the oracle scoring one window",
		Buckets:   m.histogramBuckets,
	})

	m.oracleErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "oracle_errors_total",
		Help:      "Total number of oracle calls that returned an error",
	})

	m.sigmaClamps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sigma_clamps_total",
		Help:      "Total number of uncertainties clamped to the floor",
	})

	m.populationSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "population_size",
		Help:      "Number of players in the running tournament",
	})

	m.tournaments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tournaments_total",
		Help:      "Total number of finished tournaments by kind and status",
	}, []string{"kind", "status"})
}

// TournamentStarted records the population size.
func (m *Manager) TournamentStarted(_ context.Context, info tournament.TournamentInfo) {
	if !m.enabled {
		return
	}
	m.populationSize.Set(float64(info.Players))
}

// MatchCompleted counts every game of the match and the two rating updates.
func (m *Manager) MatchCompleted(_ context.Context, rec tournament.MatchRecord) {
	if !m.enabled {
		return
	}
	for _, o := range rec.Outcomes {
		m.matches.WithLabelValues(string(o)).Inc()
	}
	if rec.Kind == tournament.KindGauntlet {
		m.ratingUpdates.Inc()
	} else {
		m.ratingUpdates.Add(2)
	}
	m.matchLatency.Observe(rec.Duration.Seconds())
}

// MatchSkipped counts a failed match by reason.
func (m *Manager) MatchSkipped(_ context.Context, failure tournament.MatchError) {
	if !m.enabled {
		return
	}
	m.failures.WithLabelValues(Reason(failure)).Inc()
}

// TournamentCompleted counts the tournament by kind and status.
func (m *Manager) TournamentCompleted(_ context.Context, summary tournament.TournamentSummary) {
	if !m.enabled {
		return
	}
	status := "completed"
	if summary.Err != nil {
		status = "aborted"
	}
	m.tournaments.WithLabelValues(summary.Kind, status).Inc()
}

// ObserveSigmaClamp counts a clamped uncertainty.
func (m *Manager) ObserveSigmaClamp(float64) {
	if !m.enabled {
		return
	}
	m.sigmaClamps.Inc()
}

// ObserveOracle records the latency and result of one oracle call.
func (m *Manager) ObserveOracle(d time.Duration, err error) {
	if !m.enabled {
		return
	}
	m.oracleLatency.Observe(d.Seconds())
	if err != nil {
		m.oracleErrors.Inc()
	}
}

// Reason maps a match failure to a match_failures_total label.
func Reason(err error) string {
	switch {
	case errors.Is(err, tournament.ErrOracleFailure):
		return ReasonOracle
	case errors.Is(err, tournament.ErrInsufficientLength):
		return ReasonInsufficientLength
	default:
		return ReasonOther
	}
}

// Default returns the global manager registered on GetRegistry.
func Default() *Manager {
	return globalManager
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
