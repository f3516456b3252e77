package graphql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
)

const createTelemetryMutation = `mutation CreateTelemetry($input: CreateTelemetryInput!) {
  createTelemetry(input: $input) {
    device_id
    owner
    timestamp
    temperature
    wind_direction
    wind_speed
    wind_gust_max
    visibility
  }
}`

// Telemetry implements domain.TelemetryStore on top of the GraphQL backend.
type Telemetry struct {
	client *Client
}

// NewTelemetry creates a telemetry store backed by client.
func NewTelemetry(client *Client) *Telemetry {
	return &Telemetry{client: client}
}

// telemetryWire is the backend shape of a record; timestamp is epoch milliseconds.
type telemetryWire struct {
	DeviceID      string   `json:"device_id"`
	Owner         string   `json:"owner"`
	Timestamp     *int64   `json:"timestamp"`
	Temperature   *float64 `json:"temperature"`
	WindDirection *float64 `json:"wind_direction"`
	WindSpeed     *float64 `json:"wind_speed"`
	WindGustMax   *float64 `json:"wind_gust_max"`
	Visibility    *float64 `json:"visibility"`
}

type createTelemetryData struct {
	CreateTelemetry *telemetryWire `json:"createTelemetry"`
}

// CreateTelemetry submits record once and returns the stored copy.
func (t *Telemetry) CreateTelemetry(ctx context.Context, record domain.TelemetryRecord) (domain.TelemetryRecord, error) {
	var data createTelemetryData
	vars := map[string]any{"input": toWire(record)}
	if err := t.client.Mutate(ctx, "create_telemetry", createTelemetryMutation, vars, &data); err != nil {
		return domain.TelemetryRecord{}, fmt.Errorf("create telemetry for %s: %w", record.DeviceID, err)
	}
	if data.CreateTelemetry == nil {
		return domain.TelemetryRecord{}, errors.New("create telemetry: backend returned no record")
	}
	return fromWire(*data.CreateTelemetry), nil
}

func toWire(r domain.TelemetryRecord) telemetryWire {
	w := telemetryWire{
		DeviceID:      r.DeviceID,
		Owner:         r.Owner,
		Temperature:   r.Temperature,
		WindDirection: r.WindDirection,
		WindSpeed:     r.WindSpeed,
		WindGustMax:   r.WindGustMax,
		Visibility:    r.Visibility,
	}
	if r.Timestamp != nil {
		ms := r.Timestamp.UnixMilli()
		w.Timestamp = &ms
	}
	return w
}

func fromWire(w telemetryWire) domain.TelemetryRecord {
	r := domain.TelemetryRecord{
		DeviceID:      w.DeviceID,
		Owner:         w.Owner,
		Temperature:   w.Temperature,
		WindDirection: w.WindDirection,
		WindSpeed:     w.WindSpeed,
		WindGustMax:   w.WindGustMax,
		Visibility:    w.Visibility,
	}
	if w.Timestamp != nil {
		ts := time.UnixMilli(*w.Timestamp).UTC()
		r.Timestamp = &ts
	}
	return r
}
