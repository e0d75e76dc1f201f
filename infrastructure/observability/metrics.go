package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jukebox/config"
	"jukebox/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the player
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	reader        sdkmetric.Reader
	initialized   bool
	mu            sync.RWMutex

	tracksStartedCounter         metric.Int64Counter
	tracksEndedCounter           metric.Int64Counter
	playersActiveGauge           metric.Int64UpDownCounter
	playersDestroyedCounter      metric.Int64Counter
	searchesCounter              metric.Int64Counter
	searchDurationHist           metric.Float64Histogram
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// newMetricsProviderWithReader skips exporter setup and collects into reader
func newMetricsProviderWithReader(cfg *config.Config, reader sdkmetric.Reader) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
		reader: reader,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	reader := mp.reader
	if reader == nil {
		var exporter sdkmetric.Exporter
		switch mp.config.OTelExporterType {
		case "console":
			exporter, err = stdoutmetric.New()
			if err != nil {
				return fmt.Errorf("failed to create console exporter: %w", err)
			}
			log.Info("Using console metric exporter")

		case "otlp":
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			exporter, err = otlpmetricgrpc.New(dialCtx,
				otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
				otlpmetricgrpc.WithInsecure(),
			)
			if err != nil {
				return fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

		case "none":
			log.Info("Metrics export disabled (exporter_type='none')")
			mp.initialized = true
			return nil

		default:
			return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
		}

		reader = sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
		)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("jukebox")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.tracksStartedCounter, err = mp.meter.Int64Counter(
		TracksStartedTotal,
		metric.WithDescription("Total number of tracks that started streaming"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tracks started counter: %w", err)
	}

	mp.tracksEndedCounter, err = mp.meter.Int64Counter(
		TracksEndedTotal,
		metric.WithDescription("Total number of tracks that left the player, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tracks ended counter: %w", err)
	}

	mp.playersActiveGauge, err = mp.meter.Int64UpDownCounter(
		PlayersActive,
		metric.WithDescription("Current number of live guild players"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create players active gauge: %w", err)
	}

	mp.playersDestroyedCounter, err = mp.meter.Int64Counter(
		PlayersDestroyedTotal,
		metric.WithDescription("Total number of destroyed players, by reason"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create players destroyed counter: %w", err)
	}

	mp.searchesCounter, err = mp.meter.Int64Counter(
		SearchesTotal,
		metric.WithDescription("Total number of track searches, by platform and result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create searches counter: %w", err)
	}

	mp.searchDurationHist, err = mp.meter.Float64Histogram(
		SearchDuration,
		metric.WithDescription("Duration of track searches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create search duration histogram: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// RegisterHandlers derives playback metrics from bus events
func (mp *MetricsProvider) RegisterHandlers(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		mp.RecordEvent(event)
	})
}

// RecordEvent updates the instruments for one bus event
func (mp *MetricsProvider) RecordEvent(event events.Event) {
	if !mp.isEnabled() {
		return
	}
	ctx := context.Background()

	switch e := event.(type) {
	case events.PlayerCreatedEvent:
		mp.playersActiveGauge.Add(ctx, 1)
	case events.TrackStartedEvent:
		mp.tracksStartedCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelSource, e.Track.Info.SourceName)),
		)
	case events.TrackEndedEvent:
		mp.tracksEndedCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelOutcome, string(e.Outcome))),
		)
	case events.PlayerDestroyedEvent:
		mp.playersActiveGauge.Add(ctx, -1)
		mp.playersDestroyedCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelReason, e.Reason)),
		)
	}
}

// RecordSearch records a resolver lookup
func (mp *MetricsProvider) RecordSearch(platform, result string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelPlatform, platform),
		attribute.String(LabelResult, result),
	)
	mp.searchesCounter.Add(context.Background(), 1, attrs)
	mp.searchDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType events.EventType) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, string(eventType))),
	)
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// isEnabled is false until instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
