package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOTLPHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "collector:4318", want: "collector:4318"},
		{in: "https://collector:4318/v1/metrics", want: "collector:4318"},
		{in: "http://otel.local:4318?x=1", want: "otel.local:4318"},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := otlpHost(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDatastoreMetrics_NilSafe(t *testing.T) {
	var m *DatastoreMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordOperation(ctx, "primary", "put", time.Millisecond, errors.New("boom"))
		m.RecordFailover(ctx, "secondary", "usage")
		m.RecordInteractionDropped(ctx)
		m.RecordCacheLookup(ctx, "team", true)
	})
}

func TestDatastoreMetrics_Records(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter("test")

	require.NoError(t, InitDatastoreMetrics(meter))
	m := GetDatastoreMetrics()
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordFailover(ctx, "secondary", "usage")
	m.RecordInteractionDropped(ctx)
	m.RecordInteractionDropped(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), totals["iplstore_failover_total"])
	assert.Equal(t, int64(2), totals["iplstore_interaction_dropped_total"])
}
