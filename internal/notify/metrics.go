// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Metrics counts notification outcomes per channel.
type Metrics struct {
	Total    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers notification metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_notifications_total",
				Help: "Total number of forgot-password notifications by channel and result",
			},
			[]string{"channel", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_notification_duration_seconds",
				Help:    "Time spent delivering a notification by channel",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
	}
	reg.MustRegister(m.Total, m.Duration)
	return m
}

func (m *Metrics) observe(channel string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := ResultFailed
	if ok {
		result = ResultSent
	}
	m.Total.WithLabelValues(channel, result).Inc()
	m.Duration.WithLabelValues(channel).Observe(elapsed.Seconds())
}
