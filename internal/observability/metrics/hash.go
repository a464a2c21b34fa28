// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opentrusty/passhash/internal/hasher"
)

// Request outcomes
const (
	OutcomeIssued   = "issued"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

const namespace = "passhash"

// HashMetrics records hash workload measurements twice: to OpenTelemetry
// instruments, pushed over OTLP when enabled, and to Prometheus collectors
// served on /metrics. It implements hasher.Observer.
type HashMetrics struct {
	requests   metric.Int64Counter
	derivation metric.Float64Histogram
	delay      metric.Float64Histogram
	inFlight   metric.Int64UpDownCounter

	promRequests   *prometheus.CounterVec
	promDerivation prometheus.Histogram
	promDelay      prometheus.Histogram
	promInFlight   prometheus.Gauge
}

var _ hasher.Observer = (*HashMetrics)(nil)

// NewHashMetrics creates the hash instruments and registers the Prometheus
// collectors with reg.
func NewHashMetrics(m *Meter, reg prometheus.Registerer) (*HashMetrics, error) {
	requests, err := m.counter("passhash.requests", "Hash requests by outcome")
	if err != nil {
		return nil, err
	}
	derivation, err := m.histogram("passhash.derivation.duration", "Argon2id derivation time", "s")
	if err != nil {
		return nil, err
	}
	delay, err := m.histogram("passhash.delay.duration", "Simulated backend latency", "s")
	if err != nil {
		return nil, err
	}
	inFlight, err := m.upDownCounter("passhash.derivations.in_flight", "Derivations currently running")
	if err != nil {
		return nil, err
	}

	h := &HashMetrics{
		requests:   requests,
		derivation: derivation,
		delay:      delay,
		inFlight:   inFlight,

		promRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Hash requests by outcome.",
		}, []string{"outcome"}),
		promDerivation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derivation_duration_seconds",
			Help:      "Argon2id derivation time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		promDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delay_seconds",
			Help:      "Simulated backend latency applied before hashing.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		promInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "derivations_in_flight",
			Help:      "Argon2id derivations currently running.",
		}),
	}

	for _, c := range []prometheus.Collector{h.promRequests, h.promDerivation, h.promDelay, h.promInFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return h, nil
}

// RecordOutcome counts one finished hash request.
func (h *HashMetrics) RecordOutcome(ctx context.Context, outcome string) {
	h.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	h.promRequests.WithLabelValues(outcome).Inc()
}

func (h *HashMetrics) ObserveDelay(ctx context.Context, d time.Duration) {
	h.delay.Record(ctx, d.Seconds())
	h.promDelay.Observe(d.Seconds())
}

// ObserveDerivation records derivation time. Cost parameters are caller
// controlled, so they are not used as labels.
func (h *HashMetrics) ObserveDerivation(ctx context.Context, _ hasher.Params, d time.Duration) {
	h.derivation.Record(ctx, d.Seconds())
	h.promDerivation.Observe(d.Seconds())
}

func (h *HashMetrics) AddInFlight(ctx context.Context, delta int64) {
	h.inFlight.Add(ctx, delta)
	h.promInFlight.Add(float64(delta))
}
