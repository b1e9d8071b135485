package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "cache"),
		attribute.String("product_ref", "p-123"),
		attribute.String("basis", "history"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("source"))
	assert.Contains(t, keys, attribute.Key("basis"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPrediction(ctx, "history")
	m.RecordReferenceLookup(ctx, "cache", "present")
	m.RecordObservation(ctx, "http", "recorded")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "harvestprice"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordRecommendation(context.Background(), "raise")
	m.RecordReferenceFetchError(context.Background(), "timeout")
}
