// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package middleware

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authentication outcomes.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
}

// NewMetrics creates and registers authentication metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_evaluations_total",
				Help: "Total number of request authentication evaluations by result",
			},
			[]string{"result"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_rejections_total",
				Help: "Total number of rejected requests by internal reason",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(m.Evaluations, m.Rejections)
	return m
}

func (m *Metrics) record(o Outcome) {
	if m == nil {
		return
	}
	switch {
	case o.State == StateRejected:
		m.Evaluations.WithLabelValues("rejected").Inc()
		m.Rejections.WithLabelValues(o.Reason).Inc()
	case o.Identity == nil:
		m.Evaluations.WithLabelValues("exempt").Inc()
	default:
		m.Evaluations.WithLabelValues("authenticated").Inc()
	}
}
