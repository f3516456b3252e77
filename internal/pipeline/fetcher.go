package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
)

// Fetcher retrieves one observation per parameter concurrently.
type Fetcher struct {
	source  domain.MeasurementSource
	specs   []domain.ParameterSpec
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher over specs. Each request is bounded by
// timeout; zero disables the per-request deadline.
func NewFetcher(source domain.MeasurementSource, specs []domain.ParameterSpec, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		source:  source,
		specs:   specs,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch issues all parameter requests for stationID and waits for every one
// of them. The result has one observation per parameter, in input order. A failed
// or empty parameter yields an observation with nil fields; only a request
// that could not be built is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, stationID string) ([]domain.Observation, error) {
	observations := make([]domain.Observation, len(f.specs))
	fatal := make([]error, len(f.specs))

	var wg sync.WaitGroup
	for i, spec := range f.specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fatal[i] = fmt.Errorf("parameter %s: panic: %v", spec.Key, r)
				}
			}()
			observations[i], fatal[i] = f.fetchOne(ctx, spec, stationID)
		}()
	}
	wg.Wait()

	if err := errors.Join(fatal...); err != nil {
		return nil, fmt.Errorf("fetch parameters for station %s: %w", stationID, err)
	}
	return observations, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, spec domain.ParameterSpec, stationID string) (domain.Observation, error) {
	obs := domain.Observation{Key: spec.Key}
	param := string(spec.Key)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := domain.Now()
	sample, ok, err := f.source.LatestSample(ctx, spec.ExternalID, stationID)
	f.metrics.ParameterFetchDuration.WithLabelValues(param).Observe(domain.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrRequestBuild) {
			return obs, err
		}
		f.warn(spec, stationID, err)
		return obs, nil
	}
	if !ok {
		f.logger.Warn("parameter series empty",
			"parameter", param,
			"parameter_id", spec.ExternalID,
			"station_id", stationID,
		)
		f.metrics.ParameterFetches.WithLabelValues(param, "empty").Inc()
		return obs, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(sample.Value), 64)
	if err != nil {
		f.warn(spec, stationID, fmt.Errorf("parse value %q: %w", sample.Value, err))
		return obs, nil
	}
	// NaN and Inf parse but cannot be encoded as JSON.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		f.warn(spec, stationID, fmt.Errorf("parse value %q: not a finite number", sample.Value))
		return obs, nil
	}

	ts := sample.Date
	obs.Timestamp = &ts
	obs.Value = &value
	obs.Quality = sample.Quality

	f.logger.Debug("parameter fetched",
		"parameter", param,
		"station_id", stationID,
		"value", value,
		"quality", sample.Quality,
		"timestamp", ts,
	)
	f.metrics.ParameterFetches.WithLabelValues(param, "success").Inc()
	return obs, nil
}

func (f *Fetcher) warn(spec domain.ParameterSpec, stationID string, err error) {
	f.logger.Warn("parameter fetch failed",
		"parameter", string(spec.Key),
		"parameter_id", spec.ExternalID,
		"station_id", stationID,
		"error", err,
	)
	f.metrics.ParameterFetches.WithLabelValues(string(spec.Key), "error").Inc()
}
