package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ChatDigest/internal/domain"
)

const job = "chat_digest"

// RunMetrics mirrors RunStatus counters and pushes them to a Pushgateway
// after every run.
type RunMetrics struct {
	registry *prometheus.Registry
	pusher   *push.Pusher
	logger   *slog.Logger

	sources     *prometheus.GaugeVec
	messages    *prometheus.GaugeVec
	units       *prometheus.GaugeVec
	deliveries  *prometheus.GaugeVec
	sinkResults *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
	runs        *prometheus.CounterVec
}

// NewRunMetrics registers the collectors on a dedicated registry. An empty
// gatewayURL keeps the metrics local.
func NewRunMetrics(gatewayURL, instance string, logger *slog.Logger) *RunMetrics {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		sources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_digest_sources",
			Help: "Sources per state in the last run (listed, selected, read, unreadable)",
		}, []string{"state"}),
		messages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_digest_messages",
			Help: "Messages per state in the last run (collected, admitted)",
		}, []string{"state"}),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_digest_units",
			Help: "Summarization units per state in the last run (built, summarized, failed)",
		}, []string{"state"}),
		deliveries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_digest_deliveries",
			Help: "Report deliveries per status in the last run",
		}, []string{"status"}),
		sinkResults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_digest_sink_deliveries",
			Help: "Report deliveries per sink and status in the last run",
		}, []string{"sink", "status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_digest_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_digest_last_success_timestamp_seconds",
			Help: "Unix time of the last run that finished without a fatal error",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_digest_runs_total",
			Help: "Runs by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(m.sources, m.messages, m.units, m.deliveries, m.sinkResults, m.duration, m.lastSuccess, m.runs)

	if gatewayURL != "" {
		m.pusher = push.New(gatewayURL, job).Gatherer(m.registry)
		if instance != "" {
			m.pusher = m.pusher.Grouping("instance", instance)
		}
	}
	return m
}

// Registry exposes the collectors, mainly for tests.
func (m *RunMetrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one finished run. runErr is the error returned by the run.
func (m *RunMetrics) Observe(status domain.RunStatus, runErr error) {
	m.sources.WithLabelValues("listed").Set(float64(status.SourcesListed))
	m.sources.WithLabelValues("selected").Set(float64(status.SourcesSelected))
	m.sources.WithLabelValues("read").Set(float64(status.SourcesRead))
	m.sources.WithLabelValues("unreadable").Set(float64(status.SourcesUnreadable))

	m.messages.WithLabelValues("collected").Set(float64(status.MessagesCollected))
	m.messages.WithLabelValues("admitted").Set(float64(status.MessagesAdmitted))

	m.units.WithLabelValues("built").Set(float64(status.UnitsBuilt))
	m.units.WithLabelValues("summarized").Set(float64(status.UnitsSummarized))
	m.units.WithLabelValues("failed").Set(float64(status.SummarizeFailures))

	m.deliveries.WithLabelValues(string(domain.StatusDelivered)).Set(float64(status.DeliveriesSucceeded))
	m.deliveries.WithLabelValues(string(domain.StatusFailed)).Set(float64(status.DeliveriesFailed))

	m.sinkResults.Reset()
	for _, res := range status.Results {
		m.sinkResults.WithLabelValues(res.Sink, string(res.Status)).Inc()
	}

	if !status.FinishedAt.IsZero() {
		m.duration.Set(status.FinishedAt.Sub(status.StartedAt).Seconds())
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "fatal"
	} else if len(status.Errors) > 0 {
		outcome = "partial"
	}
	m.runs.WithLabelValues(outcome).Inc()
	if runErr == nil && !status.FinishedAt.IsZero() {
		m.lastSuccess.Set(float64(status.FinishedAt.Unix()))
	}
}

// Push sends the current values to the Pushgateway, if one is configured.
func (m *RunMetrics) Push(ctx context.Context) error {
	if m.pusher == nil {
		return nil
	}
	if err := m.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	m.logger.Debug("metrics pushed")
	return nil
}
