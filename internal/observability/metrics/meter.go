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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config holds OpenTelemetry metrics configuration. The Prometheus registry
// is independent of it.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// ExportInterval defaults to the SDK's one minute.
	ExportInterval time.Duration
}

// Meter hands out OpenTelemetry instruments and owns the provider behind them.
type Meter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

// New creates the meter. When disabled, instruments are no-ops. When enabled,
// measurements are pushed over OTLP/HTTP, configured by the standard
// OTEL_EXPORTER_OTLP_* variables, and the provider becomes the global one.
func New(ctx context.Context, cfg Config) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(cfg.ServiceName)}, nil
	}

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	m := NewWithReader(cfg.ServiceName, sdkmetric.NewPeriodicReader(exporter, readerOpts...), sdkmetric.WithResource(res))
	otel.SetMeterProvider(m.provider)
	return m, nil
}

// NewWithReader builds a meter whose measurements are collected by reader.
func NewWithReader(serviceName string, reader sdkmetric.Reader, opts ...sdkmetric.Option) *Meter {
	provider := sdkmetric.NewMeterProvider(append(opts, sdkmetric.WithReader(reader))...)
	return &Meter{
		meter:    provider.Meter(serviceName),
		provider: provider,
	}
}

// Shutdown flushes and stops the provider. It is a no-op when disabled.
func (m *Meter) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func (m *Meter) counter(name, description string) (metric.Int64Counter, error) {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c, nil
}

func (m *Meter) histogram(name, description, unit string) (metric.Float64Histogram, error) {
	h, err := m.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return h, nil
}

func (m *Meter) upDownCounter(name, description string) (metric.Int64UpDownCounter, error) {
	c, err := m.meter.Int64UpDownCounter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create up/down counter %s: %w", name, err)
	}
	return c, nil
}
