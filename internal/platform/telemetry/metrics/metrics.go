package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "sharedgamemode"

// Metrics holds the host collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	roundsStarted  prometheus.Counter
	roundsResolved *prometheus.CounterVec
	ballots        prometheus.Counter
	vetoes         prometheus.Counter

	activeScenarios  prometheus.Gauge
	stageTransitions prometheus.Counter
	scenariosEnded   *prometheus.CounterVec

	participants prometheus.Gauge
	saves        *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "gRPC requests by method and status code.",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "gRPC request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "rounds_started_total",
			Help:      "Voting rounds opened.",
		}),
		roundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "rounds_resolved_total",
			Help:      "Voting rounds closed by outcome.",
		}, []string{"outcome"}),
		ballots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "ballots_total",
			Help:      "Accepted ballots, including changed votes.",
		}),
		vetoes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "vetoes_total",
			Help:      "Accepted vetoes.",
		}),
		activeScenarios: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "active",
			Help:      "Scenarios currently activated.",
		}),
		stageTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "stage_transitions_total",
			Help:      "Stage changes across all instances.",
		}),
		scenariosEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "instances_ended_total",
			Help:      "Scenario instances ended by final state.",
		}, []string{"state"}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "participants",
			Help:      "Participants in the session roster.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "saves_total",
			Help:      "Statistics saves by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.roundsStarted,
		m.roundsResolved,
		m.ballots,
		m.vetoes,
		m.activeScenarios,
		m.stageTransitions,
		m.scenariosEnded,
		m.participants,
		m.saves,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor records request count and latency per method.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if m != nil {
			m.requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
			m.requestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// RoundStarted counts an opened voting round.
func (m *Metrics) RoundStarted() {
	if m != nil {
		m.roundsStarted.Inc()
	}
}

// RoundResolved counts a closed round; winner is false for rounds without one.
func (m *Metrics) RoundResolved(winner bool) {
	if m == nil {
		return
	}
	outcome := "winner"
	if !winner {
		outcome = "no_winner"
	}
	m.roundsResolved.WithLabelValues(outcome).Inc()
}

// BallotCast counts an accepted ballot.
func (m *Metrics) BallotCast() {
	if m != nil {
		m.ballots.Inc()
	}
}

// VetoCast counts an accepted veto.
func (m *Metrics) VetoCast() {
	if m != nil {
		m.vetoes.Inc()
	}
}

// SetActiveScenarios records the size of the active set.
func (m *Metrics) SetActiveScenarios(n int) {
	if m != nil {
		m.activeScenarios.Set(float64(n))
	}
}

// StageChanged counts a stage transition.
func (m *Metrics) StageChanged() {
	if m != nil {
		m.stageTransitions.Inc()
	}
}

// ScenarioEnded counts an instance ending in state.
func (m *Metrics) ScenarioEnded(state string) {
	if m != nil {
		m.scenariosEnded.WithLabelValues(state).Inc()
	}
}

// SetParticipants records the roster size.
func (m *Metrics) SetParticipants(n int) {
	if m != nil {
		m.participants.Set(float64(n))
	}
}

// ObserveSave counts a statistics write.
func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
}
