package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
)

// ObservationFetcher gathers one observation per parameter for a station.
type ObservationFetcher interface {
	Fetch(ctx context.Context, stationID string) ([]domain.Observation, error)
}

// Settings are the static inputs of every run.
type Settings struct {
	DefaultStationID string
	Station          domain.StationInfo
}

// Pipeline runs fetch, aggregate, resolve owner, commit, and classify for
// one station per call. Runs are independent and may execute concurrently.
type Pipeline struct {
	fetcher   ObservationFetcher
	directory domain.DeviceDirectory
	store     domain.TelemetryStore
	publisher domain.TelemetryPublisher
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
	degraded  atomic.Bool
}

// New creates a Pipeline. publisher may be nil to disable Kafka fan-out.
func New(f ObservationFetcher, dir domain.DeviceDirectory, store domain.TelemetryStore, publisher domain.TelemetryPublisher, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		directory: dir,
		store:     store,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness reports an error while the most recent run ended in an
// unexpected failure.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.degraded.Load() {
		return errors.New("last ingestion run failed unexpectedly")
	}
	return nil
}

// Run ingests one reading for stationID, falling back to the configured
// default station when it is empty. It always returns an Outcome; panics are
// recovered and reported as unexpected failures.
func (p *Pipeline) Run(ctx context.Context, stationID string) (out domain.Outcome) {
	if stationID == "" {
		stationID = p.settings.DefaultStationID
	}
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "station_id", stationID)

	start := domain.Now()
	p.metrics.RunsInFlight.Inc()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion run panicked", "panic", r, "stack", string(debug.Stack()))
			out = domain.Failure(fmt.Errorf("panic: %v", r))
		}
		p.metrics.RunsInFlight.Dec()
		p.finish(logger, out, domain.Since(start))
	}()

	logger.Info("ingestion run started")
	committed, err := p.execute(ctx, logger, runID, stationID)
	return domain.Classify(committed, err)
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, runID, stationID string) (domain.TelemetryRecord, error) {
	observations, err := p.fetcher.Fetch(ctx, stationID)
	if err != nil {
		return domain.TelemetryRecord{}, err
	}

	reading, err := domain.AggregateReading(stationID, p.settings.Station, observations)
	if err != nil {
		return domain.TelemetryRecord{}, err
	}
	logger.Info("reading aggregated", "reading", reading)

	owner, err := p.resolveOwner(ctx, stationID)
	if err != nil {
		return domain.TelemetryRecord{}, err
	}

	// The owner may change between the lookup above and this write; the
	// backend offers no conditional create to guard against it.
	committed, err := p.store.CreateTelemetry(ctx, domain.NewTelemetryRecord(reading, owner))
	if err != nil {
		return domain.TelemetryRecord{}, fmt.Errorf("commit telemetry: %w", err)
	}
	logger.Info("telemetry committed", "owner", owner)

	p.publish(ctx, logger, committed, runID)
	return committed, nil
}

func (p *Pipeline) resolveOwner(ctx context.Context, deviceID string) (string, error) {
	ownership, err := p.directory.GetDevice(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("resolve owner: %w", err)
	}
	if ownership.Owner == nil || *ownership.Owner == "" {
		return "", &domain.NotFoundError{DeviceID: deviceID}
	}
	return *ownership.Owner, nil
}

// publish is best effort: a failure is logged and counted but does not
// change the outcome of a committed run.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, record domain.TelemetryRecord, runID string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, record, runID); err != nil {
		logger.Warn("publish committed telemetry failed", "error", err)
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.Published.Inc()
}

func (p *Pipeline) finish(logger *slog.Logger, out domain.Outcome, elapsed time.Duration) {
	p.metrics.RunsTotal.WithLabelValues(out.Label).Inc()
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.degraded.Store(out.StatusCode == http.StatusInternalServerError)

	attrs := []any{"outcome", out.Label, "status", out.StatusCode, "duration", elapsed}
	switch out.StatusCode {
	case http.StatusOK:
		p.metrics.LastSuccessTimestamp.Set(float64(domain.Now().Unix()))
		logger.Info("ingestion run finished", attrs...)
	case http.StatusInternalServerError:
		logger.Error("ingestion run failed", append(attrs, "body", out.Body)...)
	default:
		logger.Warn("ingestion run rejected", append(attrs, "body", out.Body)...)
	}
}
