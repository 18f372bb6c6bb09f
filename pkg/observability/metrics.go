package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/pkg/domain"
)

// Metrics collects run, step and tool metrics.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runSteps     prometheus.Histogram
	stepLatency  *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	activeRuns   prometheus.Gauge

	pendingMu    sync.Mutex
	pendingCalls map[string]time.Time
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished workflow runs by dialect and status.",
		}, []string{"dialect", "status"}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Request/response exchanges per run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 20, 50},
		}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_latency_seconds",
			Help:      "Round trip latency of one orchestrator exchange.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stop_reason"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Local tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of local tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently in progress.",
		}),
		pendingCalls: make(map[string]time.Time),
	}
	reg.MustRegister(m.runsTotal, m.runSteps, m.stepLatency, m.toolCalls, m.toolDuration, m.activeRuns)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, _ *domain.RunEvent) {
			m.activeRuns.Inc()
		},
		OnStep: func(_ context.Context, e *domain.StepEvent) {
			m.stepLatency.WithLabelValues(e.StopReason).Observe(e.Latency.Seconds())
		},
		OnToolCall: func(_ context.Context, e *domain.ToolEvent) {
			m.pendingMu.Lock()
			m.pendingCalls[e.RunID+"/"+e.CallID] = e.Timestamp
			m.pendingMu.Unlock()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			key := e.RunID + "/" + e.CallID
			m.pendingMu.Lock()
			started, ok := m.pendingCalls[key]
			delete(m.pendingCalls, key)
			m.pendingMu.Unlock()

			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.toolCalls.WithLabelValues(e.ToolName, outcome).Inc()
			if ok {
				m.toolDuration.WithLabelValues(e.ToolName).Observe(e.Timestamp.Sub(started).Seconds())
			}
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.activeRuns.Dec()
			m.runsTotal.WithLabelValues(string(e.Dialect), string(e.Status)).Inc()
			m.runSteps.Observe(float64(e.Steps))
		},
	}
}
