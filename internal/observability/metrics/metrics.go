package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the pricing counters exported over OTLP. A nil value records
// nothing, so services take it as an optional dependency.
type Metrics struct {
	referenceLookups    metric.Int64Counter
	referenceFetchError metric.Int64Counter
	predictions         metric.Int64Counter
	observations        metric.Int64Counter
	recommendations     metric.Int64Counter
}

const exportInterval = 15 * time.Second

// NewProvider installs the global meter provider: a noop one when export is
// disabled, otherwise a periodic OTLP reader.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("otlp metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "harvestprice"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.referenceLookups, "harvestprice_reference_lookups_total", "Reference price lookups by source and result state."},
		{&m.referenceFetchError, "harvestprice_reference_fetch_errors_total", "Failed calls to the reference price source."},
		{&m.predictions, "harvestprice_predictions_total", "Price predictions by basis."},
		{&m.observations, "harvestprice_observations_total", "Sale observations by channel and outcome."},
		{&m.recommendations, "harvestprice_recommendations_total", "Seller recommendations by action."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// RecordReferenceLookup counts reference price lookups by where the answer came from.
func (m *Metrics) RecordReferenceLookup(ctx context.Context, source, state string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("state", strings.TrimSpace(state)),
	)
	m.referenceLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReferenceFetchError(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.referenceFetchError.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPrediction counts predictions by basis (history or reference).
func (m *Metrics) RecordPrediction(ctx context.Context, basis string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("basis", strings.TrimSpace(basis)))
	m.predictions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordObservation counts sale observations by channel and outcome.
func (m *Metrics) RecordObservation(ctx context.Context, channel, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.observations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRecommendation(ctx context.Context, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.recommendations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":  {},
	"state":   {},
	"reason":  {},
	"basis":   {},
	"channel": {},
	"outcome": {},
	"action":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
