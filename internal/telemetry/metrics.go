/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing
// for the control surface and the playback engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundbench_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration tracks API request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundbench_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections tracks currently open API connections.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soundbench_api_active_connections",
			Help: "Number of active API connections",
		},
	)

	// SwitchesTotal counts track switches by strategy.
	SwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundbench_switches_total",
			Help: "Total number of track switches",
		},
		[]string{"mode"},
	)

	// TransitionSeconds tracks the scheduled length of switch/seek fades.
	TransitionSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soundbench_transition_seconds",
			Help:    "Scheduled transition duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 8),
		},
	)

	// DecodeSeconds tracks how long media decoding takes per file.
	DecodeSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soundbench_decode_seconds",
			Help:    "Media decode duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// ActiveSessions tracks currently open listening sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soundbench_active_sessions",
			Help: "Number of active listening sessions",
		},
	)

	// TrialsTotal counts recorded trial answers by outcome.
	TrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundbench_trials_total",
			Help: "Total number of recorded trials",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
