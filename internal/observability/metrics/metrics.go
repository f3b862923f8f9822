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

// Metrics exposes redemption-protocol instruments.
type Metrics struct {
	tokensIssued     metric.Int64Counter
	tokensReaped     metric.Int64Counter
	scanOutcomes     metric.Int64Counter
	quotaExhausted   metric.Int64Counter
	referralRedeemed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New builds the application instruments from the registered provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("tapsave/redemption")

	tokensIssued, err := meter.Int64Counter("redemption_tokens_issued_total",
		metric.WithDescription("Redemption tokens minted"))
	if err != nil {
		return nil, err
	}
	tokensReaped, err := meter.Int64Counter("redemption_tokens_reaped_total",
		metric.WithDescription("Stale active tokens marked expired by the reaper"))
	if err != nil {
		return nil, err
	}
	scanOutcomes, err := meter.Int64Counter("redemption_scan_outcomes_total",
		metric.WithDescription("Scan validations by outcome and reason"))
	if err != nil {
		return nil, err
	}
	quotaExhausted, err := meter.Int64Counter("quota_exhausted_total",
		metric.WithDescription("Issuance attempts rejected for exhausted quota"))
	if err != nil {
		return nil, err
	}
	referralRedeemed, err := meter.Int64Counter("referral_redeemed_total",
		metric.WithDescription("Referral codes redeemed"))
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("rate_limit_denied_total",
		metric.WithDescription("Requests denied by the abuse limiter"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tokensIssued:     tokensIssued,
		tokensReaped:     tokensReaped,
		scanOutcomes:     scanOutcomes,
		quotaExhausted:   quotaExhausted,
		referralRedeemed: referralRedeemed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

func (m *Metrics) RecordTokenIssued(ctx context.Context) {
	if m == nil || m.tokensIssued == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1)
}

func (m *Metrics) RecordTokensReaped(ctx context.Context, count int64) {
	if m == nil || m.tokensReaped == nil || count <= 0 {
		return
	}
	m.tokensReaped.Add(ctx, count)
}

func (m *Metrics) RecordScanOutcome(ctx context.Context, accepted bool, reason string) {
	if m == nil || m.scanOutcomes == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.scanOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordQuotaExhausted(ctx context.Context) {
	if m == nil || m.quotaExhausted == nil {
		return
	}
	m.quotaExhausted.Add(ctx, 1)
}

func (m *Metrics) RecordReferralRedeemed(ctx context.Context) {
	if m == nil || m.referralRedeemed == nil {
		return
	}
	m.referralRedeemed.Add(ctx, 1)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil || m.rateLimitDenied == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}
