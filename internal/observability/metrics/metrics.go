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

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	providerRequests  metric.Int64Counter
	providerRetries   metric.Int64Counter
	snapshotSyncs     metric.Int64Counter
	diffRows          metric.Int64Counter
	coverageRows      metric.Int64Counter
	claimTransitions  metric.Int64Counter
	reconciledRemoved metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "hmsinsure"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.providerRequests, err = meter.Int64Counter("hmsinsure_provider_requests_total"); err != nil {
		return nil, err
	}
	if m.providerRetries, err = meter.Int64Counter("hmsinsure_provider_retries_total"); err != nil {
		return nil, err
	}
	if m.snapshotSyncs, err = meter.Int64Counter("hmsinsure_snapshot_syncs_total"); err != nil {
		return nil, err
	}
	if m.diffRows, err = meter.Int64Counter("hmsinsure_snapshot_diff_rows_total"); err != nil {
		return nil, err
	}
	if m.coverageRows, err = meter.Int64Counter("hmsinsure_coverage_rows_materialized_total"); err != nil {
		return nil, err
	}
	if m.claimTransitions, err = meter.Int64Counter("hmsinsure_claim_transitions_total"); err != nil {
		return nil, err
	}
	if m.reconciledRemoved, err = meter.Int64Counter("hmsinsure_claim_items_merged_total"); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordProviderRequest counts provider API calls by request type and HTTP status.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, requestType string, statusCode int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("request_type", strings.TrimSpace(requestType)),
		attribute.Int("status_code", statusCode),
	)
	m.providerRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderRetry counts network retries against a provider.
func (m *Metrics) RecordProviderRetry(ctx context.Context, provider, requestType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("request_type", strings.TrimSpace(requestType)),
	)
	m.providerRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSnapshotSync counts completed or failed price package syncs.
func (m *Metrics) RecordSnapshotSync(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.snapshotSyncs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDiffRows counts persisted diff rows by change type.
func (m *Metrics) RecordDiffRows(ctx context.Context, provider, changeType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("change_type", strings.TrimSpace(changeType)),
	)
	m.diffRows.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordCoverageRows counts auto-generated coverage rows written.
func (m *Metrics) RecordCoverageRows(ctx context.Context, provider string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.coverageRows.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordClaimTransition counts claim state machine transitions.
func (m *Metrics) RecordClaimTransition(ctx context.Context, provider, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("from", from),
		attribute.String("to", to),
	)
	m.claimTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMergedClaimItems counts claim item rows deleted by reconciliation.
func (m *Metrics) RecordMergedClaimItems(ctx context.Context, provider string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.reconciledRemoved.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
	"provider":     {},
	"request_type": {},
	"status_code":  {},
	"outcome":      {},
	"change_type":  {},
	"from":         {},
	"to":           {},
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
