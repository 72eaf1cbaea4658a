// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the moderation
// service.
//
// # Description
//
// Metrics include:
//   - Verdict counters (by reason and heuristic strategy)
//   - Classifier batch counters, sizes and latency (by outcome)
//   - Relay counters (published, masked, dropped)
//   - HTTP request counters and latency (by route and status)
//   - Connected websocket subscribers
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint when enabled.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/AleutianAI/termolivre/services/chat"
	"github.com/AleutianAI/termolivre/services/moderation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "termolivre"

const (
	moderationSubsystem = "moderation"
	chatSubsystem       = "chat"
	httpSubsystem       = "http"
)

// Metrics holds all Prometheus collectors of the service.
//
// # Description
//
// Create once per registry with NewMetrics. Metrics implements
// moderation.Recorder, so it can be handed straight to the Filter and the
// AIModerator.
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// VerdictsTotal counts evaluated messages.
	// Labels: reason (blank, heuristic, classifier_flagged, classifier_safe),
	// strategy (exact, spaced, ... for heuristic; empty otherwise)
	VerdictsTotal *prometheus.CounterVec

	// BatchesTotal counts classifier batches.
	// Labels: outcome (ok, padded, truncated, error, timeout, canceled,
	// no_choices, over_length)
	BatchesTotal *prometheus.CounterVec

	// BatchSize observes messages per classifier batch.
	// Labels: outcome
	BatchSize *prometheus.HistogramVec

	// BatchDurationSeconds observes classifier latency.
	// Labels: outcome
	BatchDurationSeconds *prometheus.HistogramVec

	// RelayedTotal counts chat messages leaving the relay.
	// Labels: action (published, masked, dropped)
	RelayedTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP requests.
	// Labels: route, status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds observes HTTP latency.
	// Labels: route
	RequestDurationSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
}

// NewMetrics creates and registers all collectors on reg. A nil reg uses the
// Prometheus default registerer.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: moderationSubsystem,
				Name:      "verdicts_total",
				Help:      "Evaluated messages by verdict reason and heuristic strategy",
			},
			[]string{"reason", "strategy"},
		),

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: moderationSubsystem,
				Name:      "classifier_batches_total",
				Help:      "Classifier batches by outcome",
			},
			[]string{"outcome"},
		),

		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: moderationSubsystem,
				Name:      "classifier_batch_size",
				Help:      "Messages per classifier batch",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"outcome"},
		),

		BatchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: moderationSubsystem,
				Name:      "classifier_batch_duration_seconds",
				Help:      "Classifier round-trip time in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"outcome"},
		),

		RelayedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "relayed_total",
				Help:      "Chat messages leaving the relay by action",
			},
			[]string{"action"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		registerer: reg,
	}
}

// TrackSubscribers registers a gauge that reads the live subscriber count
// from count at scrape time.
func (m *Metrics) TrackSubscribers(count func() int) {
	promauto.With(m.registerer).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "subscribers",
			Help:      "Connected websocket subscribers",
		},
		func() float64 { return float64(count()) },
	)
}

// =============================================================================
// Helper Methods
// =============================================================================

// ObserveVerdict implements moderation.Recorder.
func (m *Metrics) ObserveVerdict(reason, detail string) {
	m.VerdictsTotal.WithLabelValues(reason, detail).Inc()
}

// ObserveBatch implements moderation.Recorder.
func (m *Metrics) ObserveBatch(outcome string, size int, elapsed time.Duration) {
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchSize.WithLabelValues(outcome).Observe(float64(size))
	if outcome != moderation.OutcomeOverLength {
		m.BatchDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

// ObserveRelay implements chat.RelayObserver.
func (m *Metrics) ObserveRelay(action string) {
	m.RelayedTotal.WithLabelValues(action).Inc()
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

var (
	_ moderation.Recorder = (*Metrics)(nil)
	_ chat.RelayObserver  = (*Metrics)(nil)
)
