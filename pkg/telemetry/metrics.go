/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

type MetricOptions struct {
	Name        string
	Description string
	Unit        string
}

// Counter is a monotonically increasing int64 instrument. A nil Counter is a no-op.
type Counter struct {
	counter otelmetric.Int64Counter
}

func NewCounter(meter otelmetric.Meter, opts MetricOptions) (*Counter, error) {
	counter, err := meter.Int64Counter(
		opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, value, otelmetric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram records float64 distributions such as latencies
type Histogram struct {
	histogram otelmetric.Float64Histogram
}

func NewHistogram(meter otelmetric.Meter, opts MetricOptions) (*Histogram, error) {
	histogram, err := meter.Float64Histogram(
		opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.histogram.Record(ctx, value, otelmetric.WithAttributes(attrs...))
}

// Observation is one value reported by a gauge callback
type Observation struct {
	Value float64
	Attrs []attribute.KeyValue
}

// GaugeCallback returns every observation of a gauge at collection time
type GaugeCallback func(context.Context) []Observation

type Gauge struct {
	gauge otelmetric.Float64ObservableGauge
}

func NewGauge(meter otelmetric.Meter, opts MetricOptions, callback GaugeCallback) (*Gauge, error) {
	gauge, err := meter.Float64ObservableGauge(
		opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.Unit),
		otelmetric.WithFloat64Callback(func(ctx context.Context, observer otelmetric.Float64Observer) error {
			for _, o := range callback(ctx) {
				observer.Observe(o.Value, otelmetric.WithAttributes(o.Attrs...))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Gauge{gauge: gauge}, nil
}

// UpDownCounter tracks values that rise and fall, e.g. queue depth
type UpDownCounter struct {
	counter otelmetric.Int64UpDownCounter
}

func NewUpDownCounter(meter otelmetric.Meter, opts MetricOptions) (*UpDownCounter, error) {
	counter, err := meter.Int64UpDownCounter(
		opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{counter: counter}, nil
}

func (u *UpDownCounter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if u == nil {
		return
	}
	u.counter.Add(ctx, value, otelmetric.WithAttributes(attrs...))
}
