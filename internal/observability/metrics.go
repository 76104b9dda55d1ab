package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages pipeline metrics exposed for Prometheus scraping.
type MetricsCollector struct {
	meter metric.Meter

	// Episode metrics
	episodes      metric.Int64Counter
	rewardHist    metric.Float64Histogram
	qualityHist   metric.Float64Histogram

	// Grader metrics
	oracleCalls    metric.Int64Counter
	oracleLatency  metric.Float64Histogram
	cacheHits      metric.Int64Counter
	parseFallbacks metric.Int64Counter

	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port" mapstructure:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector. Disabled collectors
// are valid no-ops so call sites never need nil checks.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("coderl")

	mc := &MetricsCollector{meter: meter}

	if mc.episodes, err = meter.Int64Counter(
		"coderl.episodes.total",
		metric.WithDescription("Total number of scored episodes"),
		metric.WithUnit("{episode}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create episodes counter: %w", err)
	}

	if mc.rewardHist, err = meter.Float64Histogram(
		"coderl.reward",
		metric.WithDescription("Distribution of combined rewards"),
	); err != nil {
		return nil, fmt.Errorf("failed to create reward histogram: %w", err)
	}

	if mc.qualityHist, err = meter.Float64Histogram(
		"coderl.quality.score",
		metric.WithDescription("Distribution of oracle quality scores"),
	); err != nil {
		return nil, fmt.Errorf("failed to create quality histogram: %w", err)
	}

	if mc.oracleCalls, err = meter.Int64Counter(
		"coderl.oracle.calls.total",
		metric.WithDescription("Total number of grading oracle invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle calls counter: %w", err)
	}

	if mc.oracleLatency, err = meter.Float64Histogram(
		"coderl.oracle.latency",
		metric.WithDescription("Grading oracle call latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle latency histogram: %w", err)
	}

	if mc.cacheHits, err = meter.Int64Counter(
		"coderl.grader.cache.hits.total",
		metric.WithDescription("Grader cache hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	if mc.parseFallbacks, err = meter.Int64Counter(
		"coderl.grader.parse.fallbacks.total",
		metric.WithDescription("Oracle responses that needed a parse fallback"),
	); err != nil {
		return nil, fmt.Errorf("failed to create parse fallbacks counter: %w", err)
	}

	if config.PrometheusPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promclient.Handler())
		mc.prometheusServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", config.PrometheusPort),
			Handler: mux,
		}
		go func() {
			_ = mc.prometheusServer.ListenAndServe()
		}()
	}

	return mc, nil
}

// RecordEpisode records one scored episode.
func (mc *MetricsCollector) RecordEpisode(ctx context.Context, passed, wellFormed bool, reward float64) {
	if mc.episodes == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("passed", passed),
		attribute.Bool("well_formed", wellFormed),
	)
	mc.episodes.Add(ctx, 1, attrs)
	mc.rewardHist.Record(ctx, reward)
}

// RecordQuality records a quality score from the grader.
func (mc *MetricsCollector) RecordQuality(ctx context.Context, score float64, parseOK bool) {
	if mc.qualityHist == nil {
		return
	}
	mc.qualityHist.Record(ctx, score)
	if !parseOK {
		mc.parseFallbacks.Add(ctx, 1)
	}
}

// RecordOracleCall records an oracle invocation and its latency.
func (mc *MetricsCollector) RecordOracleCall(ctx context.Context, duration time.Duration, failed bool) {
	if mc.oracleCalls == nil {
		return
	}
	mc.oracleCalls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("failed", failed)))
	mc.oracleLatency.Record(ctx, duration.Seconds())
}

// RecordCacheHit records a grader cache hit.
func (mc *MetricsCollector) RecordCacheHit(ctx context.Context) {
	if mc.cacheHits == nil {
		return
	}
	mc.cacheHits.Add(ctx, 1)
}

// Shutdown stops the Prometheus scrape server if one was started.
func (mc *MetricsCollector) Shutdown(ctx context.Context) error {
	if mc.prometheusServer == nil {
		return nil
	}
	return mc.prometheusServer.Shutdown(ctx)
}
