package domain

import "context"

// MeasurementSource returns the newest sample of one parameter series for a
// station. ok is false when the series is empty.
type MeasurementSource interface {
	LatestSample(ctx context.Context, parameterID, stationID string) (sample Sample, ok bool, err error)
}

// DeviceDirectory looks up a device and its owner.
type DeviceDirectory interface {
	// GetDevice returns a nil Owner when the device does not exist or has none.
	GetDevice(ctx context.Context, deviceID string) (DeviceOwnership, error)
}

// TelemetryStore persists telemetry records.
type TelemetryStore interface {
	// CreateTelemetry writes record and returns it as stored.
	CreateTelemetry(ctx context.Context, record TelemetryRecord) (TelemetryRecord, error)
}

// TelemetryPublisher announces committed records to downstream consumers.
type TelemetryPublisher interface {
	Publish(ctx context.Context, record TelemetryRecord, runID string) error
}
