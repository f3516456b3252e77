// Package app wires the adapters and the pipeline from configuration. It is
// shared by every entry point so the service, the Lambda, and the one-shot
// CLI run identical pipelines.
package app

import (
	"log/slog"

	"github.com/couchcryptid/station-telemetry-ingest/internal/adapter/graphql"
	kafkaadapter "github.com/couchcryptid/station-telemetry-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/station-telemetry-ingest/internal/adapter/smhi"
	"github.com/couchcryptid/station-telemetry-ingest/internal/config"
	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
	"github.com/couchcryptid/station-telemetry-ingest/internal/pipeline"
)

// App holds the wired pipeline and the resources that need closing.
type App struct {
	Pipeline *pipeline.Pipeline
	writer   *kafkaadapter.Writer
	logger   *slog.Logger
}

// New builds the pipeline described by cfg.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *App {
	source := smhi.NewClient(cfg.SMHIBaseURL, cfg.SMHIPeriod, cfg.SMHITimeout, logger)
	fetcher := pipeline.NewFetcher(source, domain.Parameters(), cfg.SMHITimeout, logger, metrics)

	client := graphql.NewClient(cfg.BackendEndpoint, cfg.BackendAPIKey, cfg.BackendTimeout, cfg.BackendMaxRetries, logger, metrics)

	a := &App{logger: logger}

	// Publishing is feature-flagged via KAFKA_ENABLED.
	var publisher domain.TelemetryPublisher
	if cfg.KafkaEnabled {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = a.writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	a.Pipeline = pipeline.New(fetcher, graphql.NewDevices(client), graphql.NewTelemetry(client), publisher,
		pipeline.Settings{
			DefaultStationID: cfg.DefaultStationID,
			Station: domain.StationInfo{
				DeviceType: cfg.DeviceType,
				Name:       cfg.StationName,
			},
		}, logger, metrics)
	return a
}

// Close releases the Kafka writer, if any.
func (a *App) Close() {
	if a.writer == nil {
		return
	}
	if err := a.writer.Close(); err != nil {
		a.logger.Error("kafka writer close error", "error", err)
	}
}
