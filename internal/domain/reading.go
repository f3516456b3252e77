package domain

import (
	"log/slog"
	"time"
)

// Sample is the newest value of one SMHI series as delivered upstream.
type Sample struct {
	Date    time.Time
	Value   string
	Quality string
}

// Observation is the fetch result for one parameter. Timestamp and Value are
// nil when the fetch failed or the series was empty.
type Observation struct {
	Key       ParameterKey
	Timestamp *time.Time
	Value     *float64
	Quality   string
}

// Reading is one aggregated snapshot of all parameters for a device.
type Reading struct {
	DeviceID      string     `json:"device_id"`
	DeviceType    string     `json:"device_type"`
	Name          string     `json:"name"`
	Timestamp     *time.Time `json:"timestamp"`
	Temperature   *float64   `json:"temperature"`
	WindDirection *float64   `json:"wind_direction"`
	WindSpeed     *float64   `json:"wind_speed"`
	WindGustMax   *float64   `json:"wind_gust_max"`
	Visibility    *float64   `json:"visibility"`
}

// LogValue renders the reading with dereferenced fields. Absent values are
// omitted.
func (r Reading) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("device_id", r.DeviceID),
		slog.String("device_type", r.DeviceType),
		slog.String("name", r.Name),
	}
	if r.Timestamp != nil {
		attrs = append(attrs, slog.Time("timestamp", *r.Timestamp))
	}
	for _, f := range []struct {
		key   string
		value *float64
	}{
		{"temperature", r.Temperature},
		{"wind_direction", r.WindDirection},
		{"wind_speed", r.WindSpeed},
		{"wind_gust_max", r.WindGustMax},
		{"visibility", r.Visibility},
	} {
		if f.value != nil {
			attrs = append(attrs, slog.Float64(f.key, *f.value))
		}
	}
	return slog.GroupValue(attrs...)
}

// DeviceOwnership is the directory's answer for a device id. Owner is nil
// when the device is unknown or has no owner.
type DeviceOwnership struct {
	DeviceID string
	Owner    *string
}

// TelemetryRecord is the record written to the telemetry store.
type TelemetryRecord struct {
	DeviceID      string     `json:"device_id"`
	Owner         string     `json:"owner"`
	Timestamp     *time.Time `json:"timestamp"`
	Temperature   *float64   `json:"temperature"`
	WindDirection *float64   `json:"wind_direction"`
	WindSpeed     *float64   `json:"wind_speed"`
	WindGustMax   *float64   `json:"wind_gust_max"`
	Visibility    *float64   `json:"visibility"`
}

// NewTelemetryRecord attributes a reading to owner.
func NewTelemetryRecord(r Reading, owner string) TelemetryRecord {
	return TelemetryRecord{
		DeviceID:      r.DeviceID,
		Owner:         owner,
		Timestamp:     r.Timestamp,
		Temperature:   r.Temperature,
		WindDirection: r.WindDirection,
		WindSpeed:     r.WindSpeed,
		WindGustMax:   r.WindGustMax,
		Visibility:    r.Visibility,
	}
}
