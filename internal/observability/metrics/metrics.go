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

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

type counter int

const (
	invites counter = iota
	webhookEvents
	billingSessions
	auditFailures
	rateLimitAllowed
	rateLimitDenied
	counterCount
)

var counterDefs = [counterCount]struct {
	name string
	desc string
}{
	invites:          {"teamspace_invites_total", "Invite issuance by outcome."},
	webhookEvents:    {"teamspace_billing_webhook_events_total", "Stripe webhook events by mode, type and outcome."},
	billingSessions:  {"teamspace_billing_sessions_total", "Checkout and portal sessions by mode."},
	auditFailures:    {"teamspace_audit_write_failures_total", "Audit entries that could not be persisted."},
	rateLimitAllowed: {"teamspace_rate_limit_allowed_total", "Mutations admitted by the rate limiter."},
	rateLimitDenied:  {"teamspace_rate_limit_denied_total", "Mutations rejected by the rate limiter."},
}

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	counters [counterCount]metric.Int64Counter
}

// NewProvider installs the global meter provider. With telemetry disabled a
// noop provider is used so instruments stay valid.
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
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Named("metrics").Info("otlp metrics exporting",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New registers the domain counters on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	scope := strings.TrimSpace(cfg.ServiceName)
	if scope == "" {
		scope = "teamspace"
	}
	meter := provider.Meter(scope)

	m := &Metrics{}
	for i, def := range counterDefs {
		c, err := meter.Int64Counter(def.name, metric.WithDescription(def.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.name, err)
		}
		m.counters[i] = c
	}
	return m, nil
}

// NewNoop returns counters backed by the noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) add(ctx context.Context, c counter, attrs ...attribute.KeyValue) {
	if m == nil || m.counters[c] == nil {
		return
	}
	m.counters[c].Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

// RecordInvite counts created, reused, delivered and undelivered invites.
func (m *Metrics) RecordInvite(ctx context.Context, outcome string) {
	m.add(ctx, invites, label("outcome", outcome))
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, mode, eventType, outcome string) {
	m.add(ctx, webhookEvents, label("mode", mode), label("event_type", eventType), label("outcome", outcome))
}

func (m *Metrics) RecordBillingSession(ctx context.Context, kind, mode string) {
	m.add(ctx, billingSessions, label("kind", kind), label("mode", mode))
}

// RecordAuditDegraded counts audit writes that failed after the main write
// committed.
func (m *Metrics) RecordAuditDegraded(ctx context.Context, action string) {
	m.add(ctx, auditFailures, label("action", action))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	m.add(ctx, rateLimitAllowed, label("endpoint", endpoint))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	m.add(ctx, rateLimitDenied, label("endpoint", endpoint), label("reason", reason))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Workspace, user and email identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"endpoint":   true,
	"event_type": true,
	"outcome":    true,
	"mode":       true,
	"kind":       true,
	"action":     true,
	"reason":     true,
}

// FilterAttributes drops any label not in the low-cardinality allow list.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			kept = append(kept, attr)
		}
	}
	return kept
}
