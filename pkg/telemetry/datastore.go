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
	"sync"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	datastoreMetrics     *DatastoreMetrics
	datastoreMetricsOnce sync.Once
)

// DatastoreMetrics groups every instrument of the multi-backend store.
// All methods are safe on a nil receiver so components work before Init.
type DatastoreMetrics struct {
	OperationTotal      *Counter
	OperationErrorTotal *Counter
	OperationDuration   *Histogram
	FailoverTotal       *Counter
	InteractionTotal    *Counter
	InteractionDropped  *Counter
	InteractionFailed   *Counter
	InteractionQueued   *UpDownCounter
	PrunedTotal         *Counter
	CacheLookupTotal    *Counter
	FetchTotal          *Counter
}

func InitDatastoreMetrics(meter otelmetric.Meter) error {
	var initErr error
	datastoreMetricsOnce.Do(func() {
		m := &DatastoreMetrics{}
		counters := []struct {
			target **Counter
			opts   MetricOptions
		}{
			{&m.OperationTotal, MetricOptions{
				Name:        BuildMetricName("backend_operation", MetricNameSuffixTotal),
				Description: "backend operations by backend and operation name",
				Unit:        "1",
			}},
			{&m.OperationErrorTotal, MetricOptions{
				Name: BuildMetricName("backend_operation_error", MetricNameSuffixTotal),
				Description: "failed backend operations. " +
					"error rate = iplstore_backend_operation_error_total / iplstore_backend_operation_total",
				Unit: "1",
			}},
			{&m.FailoverTotal, MetricOptions{
				Name:        BuildMetricName("failover", MetricNameSuffixTotal),
				Description: "active backend switches, labelled with the target backend and reason",
				Unit:        "1",
			}},
			{&m.InteractionTotal, MetricOptions{
				Name:        BuildMetricName("interaction_recorded", MetricNameSuffixTotal),
				Description: "interactions persisted to a backend",
				Unit:        "1",
			}},
			{&m.InteractionDropped, MetricOptions{
				Name:        BuildMetricName("interaction_dropped", MetricNameSuffixTotal),
				Description: "interactions dropped because the record queue was full",
				Unit:        "1",
			}},
			{&m.InteractionFailed, MetricOptions{
				Name:        BuildMetricName("interaction_failed", MetricNameSuffixTotal),
				Description: "interactions that could not be written to any backend",
				Unit:        "1",
			}},
			{&m.PrunedTotal, MetricOptions{
				Name:        BuildMetricName("interaction_pruned", MetricNameSuffixTotal),
				Description: "interactions removed by pruning",
				Unit:        "1",
			}},
			{&m.CacheLookupTotal, MetricOptions{
				Name:        BuildMetricName("reference_cache_lookup", MetricNameSuffixTotal),
				Description: "reference cache reads labelled hit or miss",
				Unit:        "1",
			}},
			{&m.FetchTotal, MetricOptions{
				Name:        BuildMetricName("reference_fetch", MetricNameSuffixTotal),
				Description: "external dataset fetches",
				Unit:        "1",
			}},
		}
		for _, c := range counters {
			counter, err := NewCounter(meter, c.opts)
			if err != nil {
				initErr = err
				return
			}
			*c.target = counter
		}

		duration, err := NewHistogram(meter, MetricOptions{
			Name:        BuildMetricName("backend_operation", MetricNameSuffixDuration),
			Description: "latency of backend operations",
			Unit:        "s",
		})
		if err != nil {
			initErr = err
			return
		}
		m.OperationDuration = duration

		queued, err := NewUpDownCounter(meter, MetricOptions{
			Name:        BuildMetricName("interaction_queue_depth", ""),
			Description: "interactions waiting to be written",
			Unit:        "1",
		})
		if err != nil {
			initErr = err
			return
		}
		m.InteractionQueued = queued

		datastoreMetrics = m
	})
	return initErr
}

func GetDatastoreMetrics() *DatastoreMetrics {
	return datastoreMetrics
}

// ObserveBackendUsage registers the usage ratio gauge; cb reports one observation per backend
func ObserveBackendUsage(meter otelmetric.Meter, cb GaugeCallback) error {
	_, err := NewGauge(meter, MetricOptions{
		Name:        BuildMetricName("backend_usage", MetricNameSuffixRatio),
		Description: "fraction of the backend quota consumed",
		Unit:        "1",
	}, cb)
	return err
}

func (m *DatastoreMetrics) RecordOperation(ctx context.Context, backend, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.OperationTotal.Inc(ctx, WithBackend(backend), WithOperation(operation))
	m.OperationDuration.Record(ctx, elapsed.Seconds(), WithBackend(backend), WithOperation(operation), StatusOf(err))
	if err != nil {
		m.OperationErrorTotal.Inc(ctx, WithBackend(backend), WithOperation(operation))
	}
}

func (m *DatastoreMetrics) RecordFailover(ctx context.Context, to, reason string) {
	if m == nil {
		return
	}
	m.FailoverTotal.Inc(ctx, WithBackend(to), WithReason(reason))
}

func (m *DatastoreMetrics) RecordInteraction(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.InteractionFailed.Inc(ctx)
		return
	}
	m.InteractionTotal.Inc(ctx)
}

func (m *DatastoreMetrics) RecordInteractionDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.InteractionDropped.Inc(ctx)
}

func (m *DatastoreMetrics) RecordQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.InteractionQueued.Add(ctx, delta)
}

func (m *DatastoreMetrics) RecordPruned(ctx context.Context, backend string, removed int) {
	if m == nil {
		return
	}
	m.PrunedTotal.Add(ctx, int64(removed), WithBackend(backend))
}

func (m *DatastoreMetrics) RecordCacheLookup(ctx context.Context, entityType string, hit bool) {
	if m == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	m.CacheLookupTotal.Inc(ctx, WithEntityType(entityType), WithStatus(status))
}

func (m *DatastoreMetrics) RecordFetch(ctx context.Context, entityType string, err error) {
	if m == nil {
		return
	}
	m.FetchTotal.Inc(ctx, WithEntityType(entityType), StatusOf(err))
}
